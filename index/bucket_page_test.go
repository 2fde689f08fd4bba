package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashBucketPage(t *testing.T) {
	t.Run("inserts and looks up entries", func(t *testing.T) {
		bucket := &hashBucketPage[string, int]{}
		bucket.init(4)

		assert.True(t, bucket.insert("a", 1))
		assert.True(t, bucket.insert("b", 2))

		v, ok := bucket.lookup("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = bucket.lookup("c")
		assert.False(t, ok)
	})

	t.Run("rejects inserts when full", func(t *testing.T) {
		bucket := &hashBucketPage[string, int]{}
		bucket.init(2)

		assert.True(t, bucket.insert("a", 1))
		assert.True(t, bucket.insert("b", 2))
		assert.True(t, bucket.isFull())
		assert.False(t, bucket.insert("c", 3))
	})

	t.Run("removes entries", func(t *testing.T) {
		bucket := &hashBucketPage[string, int]{}
		bucket.init(4)

		bucket.insert("a", 1)
		bucket.insert("b", 2)
		bucket.insert("c", 3)

		assert.True(t, bucket.remove("b"))
		assert.False(t, bucket.remove("b"))
		assert.Equal(t, uint32(2), bucket.size())

		v, ok := bucket.lookup("c")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
	})

	t.Run("empty bucket", func(t *testing.T) {
		bucket := &hashBucketPage[string, int]{}
		bucket.init(4)
		assert.True(t, bucket.isEmpty())

		bucket.insert("a", 1)
		assert.False(t, bucket.isEmpty())

		bucket.remove("a")
		assert.True(t, bucket.isEmpty())
	})
}
