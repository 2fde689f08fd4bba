package index

import (
	"testing"

	"github.com/jobala/bandari/storage/disk"
	"github.com/stretchr/testify/assert"
)

func TestHashHeaderPage(t *testing.T) {
	t.Run("init marks every directory slot invalid", func(t *testing.T) {
		header := &hashHeaderPage{}
		header.init(2)

		assert.Equal(t, uint32(4), header.maxSize())
		for i := uint32(0); i < header.maxSize(); i++ {
			assert.Equal(t, disk.INVALID_PAGE_ID, header.directoryPageId(i))
		}
	})

	t.Run("routes a hash by its top bits", func(t *testing.T) {
		header := &hashHeaderPage{}
		header.init(2)

		assert.Equal(t, uint32(0), header.hashToDirectoryIndex(0x00000000))
		assert.Equal(t, uint32(1), header.hashToDirectoryIndex(0x40000000))
		assert.Equal(t, uint32(2), header.hashToDirectoryIndex(0x80000000))
		assert.Equal(t, uint32(3), header.hashToDirectoryIndex(0xc0000000))
	})

	t.Run("depth zero routes everything to slot zero", func(t *testing.T) {
		header := &hashHeaderPage{}
		header.init(0)

		assert.Equal(t, uint32(0), header.hashToDirectoryIndex(0xffffffff))
	})

	t.Run("stores directory page ids", func(t *testing.T) {
		header := &hashHeaderPage{}
		header.init(1)

		header.setDirectoryPageId(1, 42)
		assert.Equal(t, int64(42), header.directoryPageId(1))
	})
}
