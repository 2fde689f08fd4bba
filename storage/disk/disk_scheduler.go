package disk

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

func NewScheduler(diskManager DiskManager, logger *zap.Logger) *DiskScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	ds := &DiskScheduler{
		reqCh:       make(chan DiskReq, 100),
		pageQueue:   make(map[int64]chan DiskReq),
		diskManager: diskManager,
		logger:      logger,
	}

	go ds.handleDiskReq()
	return ds
}

// NewRequest builds a request carrying its own completion channel.
func NewRequest(pageId int64, data []byte, isWrite bool) DiskReq {
	respCh := make(chan DiskResp, 1)
	return DiskReq{
		PageId: pageId,
		Data:   data,
		Write:  isWrite,
		RespCh: respCh,
	}
}

func (ds *DiskScheduler) Schedule(req DiskReq) <-chan DiskResp {
	ds.reqCh <- req
	return req.RespCh
}

// Deallocate returns the page's disk slot to the free list. It waits for
// a request that is in progress on the disk manager, but does not wait for
// requests still queued for the page.
func (ds *DiskScheduler) Deallocate(pageId int64) {
	ds.dmMu.Lock()
	defer ds.dmMu.Unlock()

	ds.diskManager.DeletePage(pageId)
}

func (ds *DiskScheduler) ShutDown() {
	close(ds.reqCh)
}

func (ds *DiskScheduler) handleDiskReq() {
	for req := range ds.reqCh {
		ds.pageQueueMu.Lock()
		queue, ok := ds.pageQueue[req.PageId]
		if !ok {
			queue = make(chan DiskReq, 10)
			ds.pageQueue[req.PageId] = queue
		}
		queue <- req
		ds.pageQueueMu.Unlock()

		// !ok means we created a new page queue, therefore we should start a
		// new worker to handle the queue's page requests
		if !ok {
			go ds.pageWorker(req.PageId, queue)
		}
	}
}

func (ds *DiskScheduler) pageWorker(pageId int64, reqQueue chan DiskReq) {
	for {
		select {
		case req := <-reqQueue:
			ds.dmMu.Lock()
			if req.Write {
				if err := ds.diskManager.WritePage(req.PageId, req.Data); err != nil {
					ds.logger.Error("page write failed", zap.Int64("pageId", req.PageId), zap.Error(err))
					req.RespCh <- DiskResp{Success: false}
				} else {
					req.RespCh <- DiskResp{Success: true}
				}
			} else {
				if data, err := ds.diskManager.ReadPage(req.PageId); err != nil {
					ds.logger.Error("page read failed", zap.Int64("pageId", req.PageId), zap.Error(err))
					req.RespCh <- DiskResp{Success: false}
				} else {
					req.RespCh <- DiskResp{Success: true, Data: data}
				}
			}
			ds.dmMu.Unlock()

		default:
			// done handling requests for this page, retire the queue unless the
			// dispatcher slipped another request in
			ds.pageQueueMu.Lock()
			if len(reqQueue) == 0 {
				delete(ds.pageQueue, pageId)
				ds.pageQueueMu.Unlock()
				return
			}
			ds.pageQueueMu.Unlock()
		}
	}
}

type DiskScheduler struct {
	reqCh       chan DiskReq
	diskManager DiskManager
	logger      *zap.Logger

	pageQueue   map[int64]chan DiskReq
	pageQueueMu deadlock.Mutex
	dmMu        deadlock.Mutex
}

type DiskReq struct {
	PageId int64
	Data   []byte
	Write  bool
	RespCh chan DiskResp
}

type DiskResp struct {
	Success bool
	Data    []byte
}
