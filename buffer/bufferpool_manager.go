package buffer

import (
	"sync/atomic"

	"github.com/jobala/bandari/storage/disk"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

func NewBufferpoolManager(size int, replacer *lrukReplacer, diskScheduler *disk.DiskScheduler, logger *zap.Logger) *BufferpoolManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	frames := make([]*Frame, size)
	freeFrames := make([]int, size)

	for i := range size {
		frames[i] = newFrame(i)
		freeFrames[i] = i
	}

	return &BufferpoolManager{
		frames:        frames,
		pageTable:     make(map[int64]int),
		replacer:      replacer,
		diskScheduler: diskScheduler,
		freeFrames:    freeFrames,
		logger:        logger,
	}
}

// NewPage allocates a fresh zeroed page pinned in a frame. Returns
// (nil, INVALID_PAGE_ID) when every frame is pinned.
func (b *BufferpoolManager) NewPage() (*Frame, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame := b.getAvailableFrame()
	if frame == nil {
		return nil, disk.INVALID_PAGE_ID
	}

	pageId := b.allocatePage()
	frame.reset()
	frame.pin()
	frame.pageId = pageId

	b.pageTable[pageId] = frame.id
	b.replacer.recordAccess(frame.id)
	b.replacer.setEvictable(frame.id, false)

	return frame, pageId
}

// FetchPage returns the requested page pinned in a frame, reading it from
// disk on a miss. Returns nil when every frame is pinned.
func (b *BufferpoolManager) FetchPage(pageId int64) *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.pageTable[pageId]; ok {
		frame := b.frames[id]
		frame.pin()

		b.replacer.recordAccess(frame.id)
		b.replacer.setEvictable(frame.id, false)
		return frame
	}

	frame := b.getAvailableFrame()
	if frame == nil {
		return nil
	}

	frame.reset()
	frame.pin()
	frame.pageId = pageId

	b.pageTable[pageId] = frame.id
	b.replacer.recordAccess(frame.id)
	b.replacer.setEvictable(frame.id, false)

	resp := <-b.diskScheduler.Schedule(disk.NewRequest(pageId, nil, false))
	copy(frame.data, resp.Data)

	return frame
}

func (b *BufferpoolManager) UnpinPage(pageId int64, isDirty bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.pageTable[pageId]
	if !ok {
		return false
	}

	frame := b.frames[id]
	if frame.pins.Load() == 0 {
		return false
	}

	frame.dirty = frame.dirty || isDirty
	if frame.unpin() == 0 {
		b.replacer.setEvictable(frame.id, true)
	}

	return true
}

// FlushPage writes the page through the disk scheduler and clears its
// dirty flag, pinned or not. Pin state is untouched.
func (b *BufferpoolManager) FlushPage(pageId int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.pageTable[pageId]
	if !ok {
		return false
	}

	frame := b.frames[id]
	<-b.diskScheduler.Schedule(disk.NewRequest(frame.pageId, frame.data, true))
	frame.dirty = false
	return true
}

func (b *BufferpoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.pageTable {
		frame := b.frames[id]
		<-b.diskScheduler.Schedule(disk.NewRequest(frame.pageId, frame.data, true))
		frame.dirty = false
	}
}

// DeletePage drops a page from the pool. A page that isn't resident is
// already deleted; a pinned page can't be.
func (b *BufferpoolManager) DeletePage(pageId int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.pageTable[pageId]
	if !ok {
		return true
	}

	frame := b.frames[id]
	if frame.pins.Load() > 0 {
		return false
	}

	if err := b.replacer.remove(frame.id); err != nil {
		b.logger.Warn("replacer remove failed", zap.Int64("pageId", pageId), zap.Error(err))
	}

	delete(b.pageTable, pageId)
	frame.reset()
	b.freeFrames = append(b.freeFrames, frame.id)

	b.diskScheduler.Deallocate(pageId)

	return true
}

func (b *BufferpoolManager) NewPageGuarded() *BasicPageGuard {
	frame, _ := b.NewPage()
	return newBasicPageGuard(frame, b)
}

func (b *BufferpoolManager) FetchPageBasic(pageId int64) *BasicPageGuard {
	return newBasicPageGuard(b.FetchPage(pageId), b)
}

func (b *BufferpoolManager) FetchPageRead(pageId int64) *ReadPageGuard {
	frame := b.FetchPage(pageId)
	if frame == nil {
		return &ReadPageGuard{}
	}

	frame.mu.RLock()
	return &ReadPageGuard{pageGuard{frame: frame, bpm: b}}
}

func (b *BufferpoolManager) FetchPageWrite(pageId int64) *WritePageGuard {
	frame := b.FetchPage(pageId)
	if frame == nil {
		return &WritePageGuard{}
	}

	frame.mu.Lock()
	return &WritePageGuard{pageGuard{frame: frame, bpm: b}}
}

// getAvailableFrame pops a free frame, falling back to eviction. Dirty
// victims are written out before their frame is reused. Caller holds b.mu.
func (b *BufferpoolManager) getAvailableFrame() *Frame {
	if len(b.freeFrames) > 0 {
		id := b.freeFrames[0]
		b.freeFrames = b.freeFrames[1:]
		return b.frames[id]
	}

	id, ok := b.replacer.evict()
	if !ok {
		return nil
	}

	frame := b.frames[id]
	b.logger.Debug("evicting page", zap.Int64("pageId", frame.pageId), zap.Int("frameId", frame.id), zap.Bool("dirty", frame.dirty))
	b.flush(frame)
	delete(b.pageTable, frame.pageId)

	return frame
}

func (b *BufferpoolManager) allocatePage() int64 {
	return b.nextPageId.Add(1) - 1
}

func (b *BufferpoolManager) flush(frame *Frame) {
	if frame.dirty {
		// block until data is written to disk
		<-b.diskScheduler.Schedule(disk.NewRequest(frame.pageId, frame.data, true))
	}
}

type BufferpoolManager struct {
	mu            deadlock.Mutex
	frames        []*Frame
	pageTable     map[int64]int
	nextPageId    atomic.Int64
	diskScheduler *disk.DiskScheduler
	replacer      *lrukReplacer
	freeFrames    []int
	logger        *zap.Logger
}
