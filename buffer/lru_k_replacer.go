package buffer

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
)

// lrukReplacer keeps two MRU->LRU lists: frames with fewer than k recorded
// accesses (young) and frames with at least k (mature). Victims are taken
// from the tail of the young list first, so frames without a full access
// history fall back to plain LRU.
func NewLrukReplacer(capacity, k int) *lrukReplacer {
	youngHead, youngTail := newNodeList()
	matureHead, matureTail := newNodeList()

	return &lrukReplacer{
		k:            k,
		nodeStore:    map[int]*lrukNode{},
		replacerSize: capacity,
		youngHead:    youngHead,
		youngTail:    youngTail,
		matureHead:   matureHead,
		matureTail:   matureTail,
	}
}

func newNodeList() (*lrukNode, *lrukNode) {
	head := &lrukNode{frameId: INVALID_FRAME_ID}
	tail := &lrukNode{frameId: INVALID_FRAME_ID}

	head.next = tail
	tail.prev = head

	return head, tail
}

func (lru *lrukReplacer) recordAccess(frameId int) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	lru.checkFrameId(frameId)

	node, ok := lru.nodeStore[frameId]
	if !ok {
		node = &lrukNode{frameId: frameId, k: lru.k}
		lru.nodeStore[frameId] = node
	} else {
		lru.unlink(node)
	}

	node.addTimestamp(lru.currTimestamp)
	lru.currTimestamp += 1

	if node.hasKAccess() {
		lru.pushFront(lru.matureHead, node)
	} else {
		lru.pushFront(lru.youngHead, node)
	}
}

func (lru *lrukReplacer) setEvictable(frameId int, evictable bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	lru.checkFrameId(frameId)

	node, ok := lru.nodeStore[frameId]
	if !ok || node.isEvictable == evictable {
		return
	}

	if evictable {
		lru.currSize += 1
	} else {
		lru.currSize -= 1
	}
	node.isEvictable = evictable
}

// evict removes and returns the victim frame, or (INVALID_FRAME_ID, false)
// when no frame is evictable.
func (lru *lrukReplacer) evict() (int, bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	for _, tail := range []*lrukNode{lru.youngTail, lru.matureTail} {
		for node := tail.prev; node.frameId != INVALID_FRAME_ID; node = node.prev {
			if !node.isEvictable {
				continue
			}

			lru.unlink(node)
			delete(lru.nodeStore, node.frameId)
			lru.currSize -= 1
			return node.frameId, true
		}
	}

	return INVALID_FRAME_ID, false
}

func (lru *lrukReplacer) remove(frameId int) error {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	lru.checkFrameId(frameId)

	node, ok := lru.nodeStore[frameId]
	if !ok {
		return nil
	}

	if !node.isEvictable {
		return fmt.Errorf("removing a non-evictable frame")
	}

	lru.unlink(node)
	delete(lru.nodeStore, frameId)
	lru.currSize -= 1

	return nil
}

func (lru *lrukReplacer) size() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	return lru.currSize
}

func (lru *lrukReplacer) unlink(node *lrukNode) {
	back := node.prev
	front := node.next

	back.next = front
	front.prev = back
}

func (lru *lrukReplacer) pushFront(head, node *lrukNode) {
	tmp := head.next
	head.next = node
	node.prev = head
	node.next = tmp
	tmp.prev = node
}

func (lru *lrukReplacer) checkFrameId(frameId int) {
	if frameId < 0 || frameId >= lru.replacerSize {
		panic(fmt.Sprintf("frame id %d out of range [0, %d)", frameId, lru.replacerSize))
	}
}

type lrukReplacer struct {
	mu            deadlock.Mutex
	nodeStore     map[int]*lrukNode
	replacerSize  int
	currSize      int
	currTimestamp int
	k             int

	youngHead *lrukNode
	youngTail *lrukNode

	matureHead *lrukNode
	matureTail *lrukNode
}
