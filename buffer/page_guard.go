package buffer

import (
	"github.com/jobala/bandari/storage/disk"
)

// Guards are scoped handles over a pinned frame. Dropping a guard unpins
// the page exactly once; Read/Write guards also hold the frame latch for
// their lifetime. A guard whose frame is nil is empty: Drop on it is a
// no-op and PageId returns INVALID_PAGE_ID, while GetData, GetDataMut and
// the upgrades dereference the frame and panic.

func newBasicPageGuard(frame *Frame, bpm *BufferpoolManager) *BasicPageGuard {
	if frame == nil {
		return &BasicPageGuard{}
	}

	return &BasicPageGuard{pageGuard{frame: frame, bpm: bpm}}
}

func (pg *pageGuard) PageId() int64 {
	if pg.frame == nil {
		return disk.INVALID_PAGE_ID
	}

	return pg.frame.pageId
}

func (pg *pageGuard) IsEmpty() bool {
	return pg.frame == nil
}

func (pg *pageGuard) GetData() []byte {
	return pg.frame.data
}

func (pg *pageGuard) clear() {
	pg.frame = nil
	pg.bpm = nil
	pg.dirty = false
}

func (pg *BasicPageGuard) Drop() {
	if pg == nil || pg.frame == nil {
		return
	}

	pg.bpm.UnpinPage(pg.frame.pageId, pg.dirty)
	pg.clear()
}

func (pg *BasicPageGuard) GetDataMut() []byte {
	pg.dirty = true
	return pg.frame.data
}

// MoveFrom drops whatever pg holds and takes over the other guard's
// frame, leaving it empty.
func (pg *BasicPageGuard) MoveFrom(that *BasicPageGuard) {
	pg.Drop()
	pg.pageGuard = that.pageGuard
	that.clear()
}

// UpgradeRead latches the frame for shared access and hands ownership to
// the returned read guard. The basic guard is left empty.
func (pg *BasicPageGuard) UpgradeRead() *ReadPageGuard {
	pg.frame.mu.RLock()
	guard := &ReadPageGuard{pg.pageGuard}
	pg.clear()

	return guard
}

// UpgradeWrite latches the frame for exclusive access and hands ownership
// to the returned write guard. The basic guard is left empty.
func (pg *BasicPageGuard) UpgradeWrite() *WritePageGuard {
	pg.frame.mu.Lock()
	guard := &WritePageGuard{pg.pageGuard}
	pg.clear()

	return guard
}

func (pg *ReadPageGuard) Drop() {
	if pg == nil || pg.frame == nil {
		return
	}

	frame := pg.frame
	pg.bpm.UnpinPage(frame.pageId, pg.dirty)
	pg.clear()
	frame.mu.RUnlock()
}

func (pg *ReadPageGuard) MoveFrom(that *ReadPageGuard) {
	pg.Drop()
	pg.pageGuard = that.pageGuard
	that.clear()
}

func (pg *WritePageGuard) Drop() {
	if pg == nil || pg.frame == nil {
		return
	}

	frame := pg.frame
	pg.bpm.UnpinPage(frame.pageId, pg.dirty)
	pg.clear()
	frame.mu.Unlock()
}

func (pg *WritePageGuard) MoveFrom(that *WritePageGuard) {
	pg.Drop()
	pg.pageGuard = that.pageGuard
	that.clear()
}

func (pg *WritePageGuard) GetDataMut() []byte {
	pg.dirty = true
	return pg.frame.data
}

type pageGuard struct {
	frame *Frame
	bpm   *BufferpoolManager
	dirty bool
}

type BasicPageGuard struct {
	pageGuard
}

type ReadPageGuard struct {
	pageGuard
}

type WritePageGuard struct {
	pageGuard
}
