package buffer

import (
	"sync/atomic"

	"github.com/jobala/bandari/storage/disk"
	"github.com/sasha-s/go-deadlock"
)

func newFrame(id int) *Frame {
	return &Frame{
		id:     id,
		data:   make([]byte, disk.PAGE_SIZE),
		pageId: disk.INVALID_PAGE_ID,
	}
}

func (f *Frame) pin() {
	f.pins.Add(1)
}

func (f *Frame) unpin() int32 {
	return f.pins.Add(-1)
}

func (f *Frame) reset() {
	f.dirty = false
	f.pins.Store(0)
	f.pageId = disk.INVALID_PAGE_ID
	clear(f.data)
}

func (f *Frame) PageId() int64 {
	return f.pageId
}

func (f *Frame) PinCount() int32 {
	return f.pins.Load()
}

func (f *Frame) IsDirty() bool {
	return f.dirty
}

func (f *Frame) Data() []byte {
	return f.data
}

// Frame is a buffer pool slot holding one page. The latch serializes
// access to data; everything else is protected by the pool's mutex.
type Frame struct {
	mu     deadlock.RWMutex
	id     int
	data   []byte
	pins   atomic.Int32
	dirty  bool
	pageId int64
}
