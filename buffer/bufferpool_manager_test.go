package buffer

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/jobala/bandari/storage/disk"
	"github.com/stretchr/testify/assert"
)

func TestBufferPoolManager(t *testing.T) {
	t.Run("reads a page from disk", func(t *testing.T) {
		bufferMgr, diskScheduler := createBufferpool(t, 5, 2)

		pageId := int64(1)
		data := make([]byte, disk.PAGE_SIZE)
		copy(data, []byte("hello, world!"))
		syncWrite(pageId, data, diskScheduler)

		pageGuard := bufferMgr.FetchPageRead(pageId)
		defer pageGuard.Drop()
		assert.False(t, pageGuard.IsEmpty())

		assert.Equal(t, data, pageGuard.GetData())
		assert.Equal(t, data, bufferMgr.frames[0].data)
	})

	t.Run("new page fails when every frame is pinned", func(t *testing.T) {
		bufferMgr, _ := createBufferpool(t, 2, 2)

		frame1, pageId1 := bufferMgr.NewPage()
		assert.NotNil(t, frame1)

		frame2, _ := bufferMgr.NewPage()
		assert.NotNil(t, frame2)

		frame3, pageId3 := bufferMgr.NewPage()
		assert.Nil(t, frame3)
		assert.Equal(t, disk.INVALID_PAGE_ID, pageId3)

		guard := bufferMgr.NewPageGuarded()
		assert.True(t, guard.IsEmpty())

		// unpinning a page frees a frame for the next allocation
		assert.True(t, bufferMgr.UnpinPage(pageId1, false))
		frame4, _ := bufferMgr.NewPage()
		assert.NotNil(t, frame4)
	})

	t.Run("evicts least recently used page", func(t *testing.T) {
		bufferMgr, diskScheduler := createBufferpool(t, 2, 2)

		content := []string{"1", "2", "3"}
		for pageId, d := range content {
			data := make([]byte, disk.PAGE_SIZE)
			copy(data, []byte(d))
			syncWrite(int64(pageId+1), data, diskScheduler)
		}

		// access page 2 many times
		for range 5 {
			pageGuard := bufferMgr.FetchPageRead(int64(2))
			assert.False(t, pageGuard.IsEmpty())
			pageGuard.Drop()
		}

		// access page 1 to make page 2 least recently used
		pageGuard := bufferMgr.FetchPageRead(int64(1))
		assert.False(t, pageGuard.IsEmpty())
		pageGuard.Drop()

		// accessing page 3 should evict page 1
		for i := range len(content) {
			pageGuard := bufferMgr.FetchPageRead(int64(i + 1))

			assert.False(t, pageGuard.IsEmpty())
			assert.Equal(t, string(bytes.Trim(pageGuard.GetData(), "\x00")), content[i])
			pageGuard.Drop()
		}

		assert.Equal(t, bufferMgr.frames[0].pageId, int64(2))
		assert.Equal(t, bufferMgr.frames[1].pageId, int64(3))

		// buffermanager's pagetable shouldn't have evicted pageId
		_, ok := bufferMgr.pageTable[1]
		assert.Equal(t, false, ok)
	})

	t.Run("dirty evicted pages are flushed to disk", func(t *testing.T) {
		bufferMgr, diskScheduler := createBufferpool(t, 2, 2)

		content := []string{"1", "2", "3"}
		for pageId, d := range content {
			data := make([]byte, disk.PAGE_SIZE)
			copy(data, []byte(d))

			pageGuard := bufferMgr.FetchPageWrite(int64(pageId + 1))
			assert.False(t, pageGuard.IsEmpty())
			copy(pageGuard.GetDataMut(), data)
			pageGuard.Drop()
		}

		// page 1 should have been evicted and flushed to disk
		res := syncRead(1, diskScheduler)
		assert.Equal(t, content[0], string(bytes.Trim(res, "\x00")))
	})

	t.Run("flush writes through and clears the dirty flag", func(t *testing.T) {
		bufferMgr, diskScheduler := createBufferpool(t, 5, 2)

		data := make([]byte, disk.PAGE_SIZE)
		copy(data, []byte("hello, world!"))

		pageGuard := bufferMgr.FetchPageWrite(int64(1))
		copy(pageGuard.GetDataMut(), data)
		pageGuard.Drop()
		assert.True(t, bufferMgr.frames[0].dirty)

		assert.True(t, bufferMgr.FlushPage(int64(1)))
		assert.False(t, bufferMgr.frames[0].dirty)

		res := syncRead(1, diskScheduler)
		assert.Equal(t, data, res)

		// flushing a page that isn't resident fails
		assert.False(t, bufferMgr.FlushPage(int64(9)))
	})

	t.Run("unpin accounting", func(t *testing.T) {
		bufferMgr, _ := createBufferpool(t, 5, 2)

		// not resident
		assert.False(t, bufferMgr.UnpinPage(int64(7), false))

		frame := bufferMgr.FetchPage(int64(1))
		assert.Equal(t, int32(1), frame.PinCount())

		assert.True(t, bufferMgr.UnpinPage(int64(1), true))
		assert.True(t, frame.IsDirty())
		assert.Equal(t, int32(0), frame.PinCount())

		// already at zero pins
		assert.False(t, bufferMgr.UnpinPage(int64(1), false))
	})

	t.Run("delete page", func(t *testing.T) {
		bufferMgr, _ := createBufferpool(t, 5, 2)

		// a page that isn't resident is already deleted
		assert.True(t, bufferMgr.DeletePage(int64(3)))

		guard := bufferMgr.FetchPageBasic(int64(1))
		assert.False(t, bufferMgr.DeletePage(int64(1)))

		guard.Drop()
		assert.True(t, bufferMgr.DeletePage(int64(1)))

		_, ok := bufferMgr.pageTable[1]
		assert.False(t, ok)
	})

	t.Run("round trips binary data with embedded zeroes", func(t *testing.T) {
		bufferMgr, diskScheduler := createBufferpool(t, 5, 2)

		data := make([]byte, disk.PAGE_SIZE)
		copy(data, []byte{0xde, 0xad, 0x00, 0x00, 0xbe, 0xef, 0x00, 0x01})
		data[disk.PAGE_SIZE-1] = 0xff

		pageGuard := bufferMgr.FetchPageWrite(int64(1))
		copy(pageGuard.GetDataMut(), data)
		pageGuard.Drop()

		assert.True(t, bufferMgr.FlushPage(int64(1)))
		assert.Equal(t, data, syncRead(1, diskScheduler))
	})

	t.Run("can read and write", func(t *testing.T) {
		bufferMgr, _ := createBufferpool(t, 2, 2)

		content := []string{"1", "2", "3"}
		for pageId, d := range content {
			data := make([]byte, disk.PAGE_SIZE)
			copy(data, []byte(d))

			pageGuard := bufferMgr.FetchPageWrite(int64(pageId + 1))
			assert.False(t, pageGuard.IsEmpty())
			copy(pageGuard.GetDataMut(), data)
			pageGuard.Drop()
		}

		for pageId, data := range content {
			pageGuard := bufferMgr.FetchPageRead(int64(pageId + 1))

			assert.False(t, pageGuard.IsEmpty())
			assert.Equal(t, data, string(bytes.Trim(pageGuard.GetData(), "\x00")))
			pageGuard.Drop()
		}
	})
}

func createBufferpool(t *testing.T, size, k int) (*BufferpoolManager, *disk.DiskScheduler) {
	t.Helper()

	file := CreateDbFile(t)
	t.Cleanup(func() {
		_ = os.Remove(file.Name())
	})

	replacer := NewLrukReplacer(size, k)
	diskMgr := disk.NewManager(file)
	diskScheduler := disk.NewScheduler(diskMgr, nil)

	return NewBufferpoolManager(size, replacer, diskScheduler, nil), diskScheduler
}

func CreateDbFile(t *testing.T) *os.File {
	t.Helper()
	dbFile := path.Join(t.TempDir(), "test.db")

	file, err := os.OpenFile(dbFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		panic(fmt.Sprintf("failed creating db file\n%v", err))
	}

	// create 4kb file
	_ = os.Truncate(file.Name(), disk.PAGE_SIZE)
	fileInfo, err := os.Stat(file.Name())
	assert.NoError(t, err)
	assert.Equal(t, int64(disk.PAGE_SIZE), fileInfo.Size())
	return file
}

func syncWrite(pageId int64, data []byte, diskScheduler *disk.DiskScheduler) {
	<-diskScheduler.Schedule(disk.NewRequest(pageId, data, true))
}

func syncRead(pageId int64, diskScheduler *disk.DiskScheduler) []byte {
	res := <-diskScheduler.Schedule(disk.NewRequest(pageId, nil, false))
	return res.Data
}
