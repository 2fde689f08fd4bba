package index

import (
	"github.com/jobala/bandari/storage/disk"
)

// hashDirectoryPage maps the low GlobalDepth bits of a hash to a bucket
// page. Multiple slots may point at the same bucket when that bucket's
// local depth is below the global depth.
type hashDirectoryPage struct {
	MaxDepth      uint32
	GlobalDepth   uint32
	LocalDepths   []uint8
	BucketPageIds []int64
}

func (d *hashDirectoryPage) init(maxDepth uint32) {
	d.MaxDepth = maxDepth
	d.GlobalDepth = 0
	d.LocalDepths = make([]uint8, 1<<maxDepth)
	d.BucketPageIds = make([]int64, 1<<maxDepth)
	for i := range d.BucketPageIds {
		d.BucketPageIds[i] = disk.INVALID_PAGE_ID
	}
}

func (d *hashDirectoryPage) hashToBucketIndex(hash uint32) uint32 {
	return hash & d.globalDepthMask()
}

func (d *hashDirectoryPage) bucketPageId(bucketIdx uint32) int64 {
	return d.BucketPageIds[bucketIdx]
}

func (d *hashDirectoryPage) setBucketPageId(bucketIdx uint32, pageId int64) {
	d.BucketPageIds[bucketIdx] = pageId
}

func (d *hashDirectoryPage) localDepth(bucketIdx uint32) uint32 {
	return uint32(d.LocalDepths[bucketIdx])
}

func (d *hashDirectoryPage) setLocalDepth(bucketIdx uint32, depth uint8) {
	d.LocalDepths[bucketIdx] = depth
}

func (d *hashDirectoryPage) incrLocalDepth(bucketIdx uint32) {
	d.LocalDepths[bucketIdx]++
}

func (d *hashDirectoryPage) decrLocalDepth(bucketIdx uint32) {
	d.LocalDepths[bucketIdx]--
}

func (d *hashDirectoryPage) globalDepthMask() uint32 {
	return (1 << d.GlobalDepth) - 1
}

func (d *hashDirectoryPage) localDepthMask(bucketIdx uint32) uint32 {
	return (1 << d.localDepth(bucketIdx)) - 1
}

// splitImageIndex is the slot that differs from bucketIdx only in the
// highest local-depth bit.
func (d *hashDirectoryPage) splitImageIndex(bucketIdx uint32) uint32 {
	depth := d.localDepth(bucketIdx)
	if depth == 0 {
		return 0
	}

	return (bucketIdx & d.localDepthMask(bucketIdx)) ^ (1 << (depth - 1))
}

// incrGlobalDepth doubles the directory. The new upper half mirrors the
// lower half so every existing bucket stays reachable.
func (d *hashDirectoryPage) incrGlobalDepth() {
	oldSize := d.size()
	for i := uint32(0); i < oldSize; i++ {
		d.BucketPageIds[oldSize+i] = d.BucketPageIds[i]
		d.LocalDepths[oldSize+i] = d.LocalDepths[i]
	}

	d.GlobalDepth++
}

func (d *hashDirectoryPage) decrGlobalDepth() {
	d.GlobalDepth--
}

// canShrink reports whether every bucket's local depth is strictly below
// the global depth.
func (d *hashDirectoryPage) canShrink() bool {
	if d.GlobalDepth == 0 {
		return false
	}

	for i := uint32(0); i < d.size(); i++ {
		if d.localDepth(i) == d.GlobalDepth {
			return false
		}
	}

	return true
}

func (d *hashDirectoryPage) size() uint32 {
	return 1 << d.GlobalDepth
}

func (d *hashDirectoryPage) maxSize() uint32 {
	return 1 << d.MaxDepth
}
