package disk

const (
	PAGE_SIZE             = 4096
	DEFAULT_PAGE_CAPACITY = 16
)

const INVALID_PAGE_ID int64 = -1
