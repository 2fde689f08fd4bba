package index

import (
	"github.com/jobala/bandari/storage/disk"
)

// hashHeaderPage routes a hash to one of 2^MaxDepth directory pages using
// the topmost MaxDepth bits.
type hashHeaderPage struct {
	MaxDepth         uint32
	DirectoryPageIds []int64
}

func (h *hashHeaderPage) init(maxDepth uint32) {
	h.MaxDepth = maxDepth
	h.DirectoryPageIds = make([]int64, 1<<maxDepth)
	for i := range h.DirectoryPageIds {
		h.DirectoryPageIds[i] = disk.INVALID_PAGE_ID
	}
}

func (h *hashHeaderPage) hashToDirectoryIndex(hash uint32) uint32 {
	if h.MaxDepth == 0 {
		return 0
	}

	return hash >> (32 - h.MaxDepth)
}

func (h *hashHeaderPage) directoryPageId(directoryIdx uint32) int64 {
	return h.DirectoryPageIds[directoryIdx]
}

func (h *hashHeaderPage) setDirectoryPageId(directoryIdx uint32, pageId int64) {
	h.DirectoryPageIds[directoryIdx] = pageId
}

func (h *hashHeaderPage) maxSize() uint32 {
	return 1 << h.MaxDepth
}
