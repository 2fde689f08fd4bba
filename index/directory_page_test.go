package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashDirectoryPage(t *testing.T) {
	t.Run("routes a hash by its low bits", func(t *testing.T) {
		dir := &hashDirectoryPage{}
		dir.init(3)

		// global depth 0, everything maps to slot 0
		assert.Equal(t, uint32(0), dir.hashToBucketIndex(0xdeadbeef))

		dir.GlobalDepth = 2
		assert.Equal(t, uint32(3), dir.hashToBucketIndex(0xdeadbeef))
		assert.Equal(t, uint32(2), dir.hashToBucketIndex(0x00000006))
	})

	t.Run("growing mirrors the lower half into the upper half", func(t *testing.T) {
		dir := &hashDirectoryPage{}
		dir.init(3)
		dir.GlobalDepth = 1

		dir.setBucketPageId(0, 10)
		dir.setBucketPageId(1, 11)
		dir.setLocalDepth(0, 1)
		dir.setLocalDepth(1, 1)

		dir.incrGlobalDepth()

		assert.Equal(t, uint32(2), dir.GlobalDepth)
		assert.Equal(t, int64(10), dir.bucketPageId(2))
		assert.Equal(t, int64(11), dir.bucketPageId(3))
		assert.Equal(t, uint32(1), dir.localDepth(2))
		assert.Equal(t, uint32(1), dir.localDepth(3))
	})

	t.Run("split image flips the highest local depth bit", func(t *testing.T) {
		dir := &hashDirectoryPage{}
		dir.init(3)
		dir.GlobalDepth = 2

		dir.setLocalDepth(1, 2)
		assert.Equal(t, uint32(3), dir.splitImageIndex(1))

		dir.setLocalDepth(2, 1)
		assert.Equal(t, uint32(1), dir.splitImageIndex(2))

		dir.setLocalDepth(0, 0)
		assert.Equal(t, uint32(0), dir.splitImageIndex(0))
	})

	t.Run("can shrink only when no bucket is at the global depth", func(t *testing.T) {
		dir := &hashDirectoryPage{}
		dir.init(3)
		dir.GlobalDepth = 2

		dir.setLocalDepth(0, 1)
		dir.setLocalDepth(1, 2)
		dir.setLocalDepth(2, 1)
		dir.setLocalDepth(3, 2)
		assert.False(t, dir.canShrink())

		dir.setLocalDepth(1, 1)
		dir.setLocalDepth(3, 1)
		assert.True(t, dir.canShrink())

		dir.decrGlobalDepth()
		assert.Equal(t, uint32(1), dir.GlobalDepth)

		dir.GlobalDepth = 0
		assert.False(t, dir.canShrink())
	})

	t.Run("depth masks", func(t *testing.T) {
		dir := &hashDirectoryPage{}
		dir.init(3)
		dir.GlobalDepth = 3

		assert.Equal(t, uint32(0b111), dir.globalDepthMask())

		dir.setLocalDepth(5, 2)
		assert.Equal(t, uint32(0b11), dir.localDepthMask(5))
	})
}
