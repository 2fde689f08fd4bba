package index

import (
	"fmt"

	"github.com/jobala/bandari/buffer"
	"github.com/jobala/bandari/storage/disk"
	"github.com/jobala/bandari/util"
	"go.uber.org/zap"
)

// NewExtendibleHashTable creates a disk-backed extendible hash table rooted
// at a freshly allocated header page. Hashes route through three page
// levels: the header's top headerMaxDepth bits select a directory, the
// directory's low globalDepth bits select a bucket.
func NewExtendibleHashTable[K comparable, V any](
	name string,
	bpm *buffer.BufferpoolManager,
	hashFn HashFn[K],
	headerMaxDepth uint32,
	directoryMaxDepth uint32,
	bucketMaxSize uint32,
	logger *zap.Logger,
) (*ExtendibleHashTable[K, V], error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	guard := bpm.NewPageGuarded()
	if guard.IsEmpty() {
		return nil, util.NewBufferpoolExhaustedError()
	}

	wguard := guard.UpgradeWrite()
	defer wguard.Drop()

	header := &hashHeaderPage{}
	header.init(headerMaxDepth)
	if err := writePage(wguard.GetDataMut(), header); err != nil {
		return nil, fmt.Errorf("initializing header page: %w", err)
	}

	return &ExtendibleHashTable[K, V]{
		name:              name,
		bpm:               bpm,
		hashFn:            hashFn,
		headerPageId:      wguard.PageId(),
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
		logger:            logger,
	}, nil
}

// GetValue looks key up, latch-crabbing read guards from header to
// directory to bucket. A missing key yields an empty slice.
func (h *ExtendibleHashTable[K, V]) GetValue(key K, txn *Transaction) ([]V, error) {
	hash := h.hashFn(key)

	headerGuard := h.bpm.FetchPageRead(h.headerPageId)
	if headerGuard.IsEmpty() {
		return nil, util.NewBufferpoolExhaustedError()
	}

	header, err := util.ToStruct[hashHeaderPage](headerGuard.GetData())
	if err != nil {
		headerGuard.Drop()
		return nil, fmt.Errorf("decoding header page: %w", err)
	}

	directoryPageId := header.directoryPageId(header.hashToDirectoryIndex(hash))
	if directoryPageId == disk.INVALID_PAGE_ID {
		headerGuard.Drop()
		return []V{}, nil
	}

	directoryGuard := h.bpm.FetchPageRead(directoryPageId)
	headerGuard.Drop()
	if directoryGuard.IsEmpty() {
		return nil, util.NewBufferpoolExhaustedError()
	}

	directory, err := util.ToStruct[hashDirectoryPage](directoryGuard.GetData())
	if err != nil {
		directoryGuard.Drop()
		return nil, fmt.Errorf("decoding directory page: %w", err)
	}

	bucketPageId := directory.bucketPageId(directory.hashToBucketIndex(hash))
	if bucketPageId == disk.INVALID_PAGE_ID {
		directoryGuard.Drop()
		return []V{}, nil
	}

	bucketGuard := h.bpm.FetchPageRead(bucketPageId)
	directoryGuard.Drop()
	if bucketGuard.IsEmpty() {
		return nil, util.NewBufferpoolExhaustedError()
	}
	defer bucketGuard.Drop()

	bucket, err := util.ToStruct[hashBucketPage[K, V]](bucketGuard.GetData())
	if err != nil {
		return nil, fmt.Errorf("decoding bucket page: %w", err)
	}

	if value, ok := bucket.lookup(key); ok {
		return []V{value}, nil
	}

	return []V{}, nil
}

// Insert adds a key/value pair, splitting buckets and growing the
// directory as needed. Duplicate keys are rejected. Returns false when the
// key is present or the directory cannot grow past its max depth.
func (h *ExtendibleHashTable[K, V]) Insert(key K, value V, txn *Transaction) (bool, error) {
	hash := h.hashFn(key)

	headerGuard := h.bpm.FetchPageWrite(h.headerPageId)
	if headerGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}

	header, err := util.ToStruct[hashHeaderPage](headerGuard.GetData())
	if err != nil {
		headerGuard.Drop()
		return false, fmt.Errorf("decoding header page: %w", err)
	}

	directoryIdx := header.hashToDirectoryIndex(hash)
	directoryPageId := header.directoryPageId(directoryIdx)
	if directoryPageId == disk.INVALID_PAGE_ID {
		return h.insertToNewDirectory(headerGuard, &header, directoryIdx, hash, key, value)
	}

	directoryGuard := h.bpm.FetchPageWrite(directoryPageId)
	headerGuard.Drop()
	if directoryGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}
	defer directoryGuard.Drop()

	directory, err := util.ToStruct[hashDirectoryPage](directoryGuard.GetData())
	if err != nil {
		return false, fmt.Errorf("decoding directory page: %w", err)
	}

	bucketIdx := directory.hashToBucketIndex(hash)
	bucketPageId := directory.bucketPageId(bucketIdx)
	if bucketPageId == disk.INVALID_PAGE_ID {
		return h.insertToNewBucket(directoryGuard, &directory, bucketIdx, key, value)
	}

	bucketGuard := h.bpm.FetchPageWrite(bucketPageId)
	if bucketGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}

	bucket, err := util.ToStruct[hashBucketPage[K, V]](bucketGuard.GetData())
	if err != nil {
		bucketGuard.Drop()
		return false, fmt.Errorf("decoding bucket page: %w", err)
	}

	if _, ok := bucket.lookup(key); ok {
		bucketGuard.Drop()
		return false, nil
	}

	for bucket.isFull() {
		localDepth := directory.localDepth(bucketIdx)
		if localDepth == directory.GlobalDepth {
			if directory.GlobalDepth == directory.MaxDepth {
				bucketGuard.Drop()
				// earlier iterations may have split buckets and moved entries
				if err := writePage(directoryGuard.GetDataMut(), &directory); err != nil {
					return false, fmt.Errorf("encoding directory page: %w", err)
				}
				return false, nil
			}

			directory.incrGlobalDepth()
			h.logger.Debug("directory grew",
				zap.String("index", h.name),
				zap.Uint32("globalDepth", directory.GlobalDepth))
		}

		newBucketGuard := h.bpm.NewPageGuarded()
		if newBucketGuard.IsEmpty() {
			bucketGuard.Drop()
			return false, util.NewBufferpoolExhaustedError()
		}

		newGuard := newBucketGuard.UpgradeWrite()
		newBucket := &hashBucketPage[K, V]{}
		newBucket.init(h.bucketMaxSize)

		newLocalDepth := localDepth + 1
		oldBit := (bucketIdx >> (newLocalDepth - 1)) & 1
		newBit := oldBit ^ 1
		lowMask := uint32(1<<(newLocalDepth-1)) - 1
		newBucketIdx := (bucketIdx & lowMask) | (newBit << (newLocalDepth - 1))

		h.updateDirectoryMapping(&directory, bucketIdx, newGuard.PageId(), newLocalDepth, newBit)
		h.migrateEntries(&bucket, newBucket, newBucketIdx, newLocalDepth)

		h.logger.Debug("bucket split",
			zap.String("index", h.name),
			zap.Int64("bucketPageId", bucketPageId),
			zap.Int64("newBucketPageId", newGuard.PageId()),
			zap.Uint32("localDepth", newLocalDepth))

		if err := writePage(bucketGuard.GetDataMut(), &bucket); err != nil {
			bucketGuard.Drop()
			newGuard.Drop()
			return false, fmt.Errorf("encoding bucket page: %w", err)
		}
		if err := writePage(newGuard.GetDataMut(), newBucket); err != nil {
			bucketGuard.Drop()
			newGuard.Drop()
			return false, fmt.Errorf("encoding bucket page: %w", err)
		}

		bucketGuard.Drop()
		newGuard.Drop()

		bucketIdx = directory.hashToBucketIndex(hash)
		bucketPageId = directory.bucketPageId(bucketIdx)

		bucketGuard = h.bpm.FetchPageWrite(bucketPageId)
		if bucketGuard.IsEmpty() {
			return false, util.NewBufferpoolExhaustedError()
		}

		bucket, err = util.ToStruct[hashBucketPage[K, V]](bucketGuard.GetData())
		if err != nil {
			bucketGuard.Drop()
			return false, fmt.Errorf("decoding bucket page: %w", err)
		}
	}

	bucket.insert(key, value)
	if err := writePage(bucketGuard.GetDataMut(), &bucket); err != nil {
		bucketGuard.Drop()
		return false, fmt.Errorf("encoding bucket page: %w", err)
	}
	bucketGuard.Drop()

	if err := writePage(directoryGuard.GetDataMut(), &directory); err != nil {
		return false, fmt.Errorf("encoding directory page: %w", err)
	}

	return true, nil
}

// Remove deletes key if present, then merges empty buckets with their
// split images and shrinks the directory while it can.
func (h *ExtendibleHashTable[K, V]) Remove(key K, txn *Transaction) (bool, error) {
	hash := h.hashFn(key)

	headerGuard := h.bpm.FetchPageRead(h.headerPageId)
	if headerGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}

	header, err := util.ToStruct[hashHeaderPage](headerGuard.GetData())
	if err != nil {
		headerGuard.Drop()
		return false, fmt.Errorf("decoding header page: %w", err)
	}

	directoryPageId := header.directoryPageId(header.hashToDirectoryIndex(hash))
	if directoryPageId == disk.INVALID_PAGE_ID {
		headerGuard.Drop()
		return false, nil
	}

	directoryGuard := h.bpm.FetchPageWrite(directoryPageId)
	headerGuard.Drop()
	if directoryGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}
	defer directoryGuard.Drop()

	directory, err := util.ToStruct[hashDirectoryPage](directoryGuard.GetData())
	if err != nil {
		return false, fmt.Errorf("decoding directory page: %w", err)
	}

	bucketIdx := directory.hashToBucketIndex(hash)
	bucketPageId := directory.bucketPageId(bucketIdx)
	if bucketPageId == disk.INVALID_PAGE_ID {
		return false, nil
	}

	bucketGuard := h.bpm.FetchPageWrite(bucketPageId)
	if bucketGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}

	bucket, err := util.ToStruct[hashBucketPage[K, V]](bucketGuard.GetData())
	if err != nil {
		bucketGuard.Drop()
		return false, fmt.Errorf("decoding bucket page: %w", err)
	}

	if !bucket.remove(key) {
		bucketGuard.Drop()
		return false, nil
	}

	if err := writePage(bucketGuard.GetDataMut(), &bucket); err != nil {
		bucketGuard.Drop()
		return false, fmt.Errorf("encoding bucket page: %w", err)
	}
	bucketGuard.Drop()

	if err := h.mergeAndShrink(&directory, bucketIdx); err != nil {
		return false, err
	}

	if err := writePage(directoryGuard.GetDataMut(), &directory); err != nil {
		return false, fmt.Errorf("encoding directory page: %w", err)
	}

	return true, nil
}

func (h *ExtendibleHashTable[K, V]) insertToNewDirectory(
	headerGuard *buffer.WritePageGuard,
	header *hashHeaderPage,
	directoryIdx uint32,
	hash uint32,
	key K,
	value V,
) (bool, error) {
	defer headerGuard.Drop()

	directoryPageGuard := h.bpm.NewPageGuarded()
	if directoryPageGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}

	directoryGuard := directoryPageGuard.UpgradeWrite()
	defer directoryGuard.Drop()

	directory := &hashDirectoryPage{}
	directory.init(h.directoryMaxDepth)

	header.setDirectoryPageId(directoryIdx, directoryGuard.PageId())
	if err := writePage(headerGuard.GetDataMut(), header); err != nil {
		return false, fmt.Errorf("encoding header page: %w", err)
	}

	ok, err := h.insertToNewBucket(directoryGuard, directory, directory.hashToBucketIndex(hash), key, value)
	if err != nil {
		return false, err
	}

	h.logger.Debug("directory created",
		zap.String("index", h.name),
		zap.Int64("directoryPageId", directoryGuard.PageId()))

	return ok, nil
}

func (h *ExtendibleHashTable[K, V]) insertToNewBucket(
	directoryGuard *buffer.WritePageGuard,
	directory *hashDirectoryPage,
	bucketIdx uint32,
	key K,
	value V,
) (bool, error) {
	bucketPageGuard := h.bpm.NewPageGuarded()
	if bucketPageGuard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}

	bucketGuard := bucketPageGuard.UpgradeWrite()
	defer bucketGuard.Drop()

	bucket := &hashBucketPage[K, V]{}
	bucket.init(h.bucketMaxSize)
	bucket.insert(key, value)

	if err := writePage(bucketGuard.GetDataMut(), bucket); err != nil {
		return false, fmt.Errorf("encoding bucket page: %w", err)
	}

	directory.setBucketPageId(bucketIdx, bucketGuard.PageId())
	if err := writePage(directoryGuard.GetDataMut(), directory); err != nil {
		return false, fmt.Errorf("encoding directory page: %w", err)
	}

	return true, nil
}

// updateDirectoryMapping walks every slot sharing the split bucket's low
// newLocalDepth-1 bits, repointing the slots on the new bucket's bit
// branch and raising the local depth on both branches.
func (h *ExtendibleHashTable[K, V]) updateDirectoryMapping(
	directory *hashDirectoryPage,
	bucketIdx uint32,
	newBucketPageId int64,
	newLocalDepth uint32,
	newBit uint32,
) {
	base := bucketIdx & ((1 << (newLocalDepth - 1)) - 1)
	for i := base; i < directory.size(); i += 1 << (newLocalDepth - 1) {
		if (i>>(newLocalDepth-1))&1 == newBit {
			directory.setBucketPageId(i, newBucketPageId)
		}
		directory.setLocalDepth(i, uint8(newLocalDepth))
	}
}

// migrateEntries moves the pairs whose hashes route to the new bucket
// under the deeper local mask.
func (h *ExtendibleHashTable[K, V]) migrateEntries(
	oldBucket *hashBucketPage[K, V],
	newBucket *hashBucketPage[K, V],
	newBucketIdx uint32,
	newLocalDepth uint32,
) {
	mask := uint32(1<<newLocalDepth) - 1

	i := uint32(0)
	for i < oldBucket.size() {
		key := oldBucket.keyAt(i)
		if h.hashFn(key)&mask == newBucketIdx&mask {
			newBucket.insert(key, oldBucket.valueAt(i))
			oldBucket.removeAt(i)
			continue
		}
		i++
	}
}

// mergeAndShrink folds empty buckets into their split images while both
// sides share a local depth, then lowers the global depth as far as the
// remaining local depths allow.
func (h *ExtendibleHashTable[K, V]) mergeAndShrink(directory *hashDirectoryPage, bucketIdx uint32) error {
	curIdx := bucketIdx
	for {
		depth := directory.localDepth(curIdx)
		if depth == 0 {
			break
		}

		splitIdx := directory.splitImageIndex(curIdx)
		if directory.localDepth(splitIdx) != depth {
			break
		}

		curPageId := directory.bucketPageId(curIdx)
		splitPageId := directory.bucketPageId(splitIdx)

		curEmpty, err := h.bucketIsEmpty(curPageId)
		if err != nil {
			return err
		}
		splitEmpty, err := h.bucketIsEmpty(splitPageId)
		if err != nil {
			return err
		}
		if !curEmpty && !splitEmpty {
			break
		}

		keepPageId, dropPageId := splitPageId, curPageId
		if !curEmpty {
			keepPageId, dropPageId = curPageId, splitPageId
		}

		newDepth := depth - 1
		base := curIdx & ((1 << newDepth) - 1)
		for i := base; i < directory.size(); i += 1 << newDepth {
			directory.setBucketPageId(i, keepPageId)
			directory.setLocalDepth(i, uint8(newDepth))
		}

		h.bpm.DeletePage(dropPageId)
		h.logger.Debug("buckets merged",
			zap.String("index", h.name),
			zap.Int64("keptPageId", keepPageId),
			zap.Int64("droppedPageId", dropPageId),
			zap.Uint32("localDepth", newDepth))

		curIdx = base
	}

	for directory.canShrink() {
		directory.decrGlobalDepth()
		h.logger.Debug("directory shrank",
			zap.String("index", h.name),
			zap.Uint32("globalDepth", directory.GlobalDepth))
	}

	return nil
}

func (h *ExtendibleHashTable[K, V]) bucketIsEmpty(pageId int64) (bool, error) {
	guard := h.bpm.FetchPageRead(pageId)
	if guard.IsEmpty() {
		return false, util.NewBufferpoolExhaustedError()
	}
	defer guard.Drop()

	bucket, err := util.ToStruct[hashBucketPage[K, V]](guard.GetData())
	if err != nil {
		return false, fmt.Errorf("decoding bucket page: %w", err)
	}

	return bucket.isEmpty(), nil
}

func writePage[T any](dst []byte, page T) error {
	data, err := util.ToByteSlice(page)
	if err != nil {
		return err
	}

	copy(dst, data)
	return nil
}

// Transaction carries per-operation context for callers that run index
// operations inside a larger unit of work. The index itself only threads
// it through.
type Transaction struct{}

type ExtendibleHashTable[K comparable, V any] struct {
	name              string
	bpm               *buffer.BufferpoolManager
	hashFn            HashFn[K]
	headerPageId      int64
	headerMaxDepth    uint32
	directoryMaxDepth uint32
	bucketMaxSize     uint32
	logger            *zap.Logger
}
