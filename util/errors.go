package util

type BandariError struct {
	Message string
	Err     error
}

func (e *BandariError) Error() string {
	return e.Message
}

func (e *BandariError) Unwrap() error {
	return e.Err
}

func NewBufferpoolExhaustedError() *BufferpoolExhaustedError {
	return &BufferpoolExhaustedError{&BandariError{Message: "no evictable frame in the buffer pool"}}
}

type BufferpoolExhaustedError struct {
	*BandariError
}
