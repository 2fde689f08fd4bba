package index

import (
	"github.com/spaolacci/murmur3"
	"github.com/vmihailenco/msgpack"
)

// HashFn maps a key to the 32-bit hash the table routes on.
type HashFn[K comparable] func(K) uint32

func DefaultHashFn[K comparable](key K) uint32 {
	data, err := msgpack.Marshal(key)
	if err != nil {
		panic(err)
	}

	return murmur3.Sum32(data)
}
