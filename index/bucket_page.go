package index

// hashBucketPage stores key/value pairs in insertion order. Lookups are
// linear scans; MaxSize is fixed at init and never grows.
type hashBucketPage[K comparable, V any] struct {
	MaxSize uint32
	Keys    []K
	Values  []V
}

func (b *hashBucketPage[K, V]) init(maxSize uint32) {
	b.MaxSize = maxSize
	b.Keys = make([]K, 0, maxSize)
	b.Values = make([]V, 0, maxSize)
}

func (b *hashBucketPage[K, V]) lookup(key K) (V, bool) {
	for i, k := range b.Keys {
		if k == key {
			return b.Values[i], true
		}
	}

	var zero V
	return zero, false
}

func (b *hashBucketPage[K, V]) insert(key K, value V) bool {
	if b.isFull() {
		return false
	}

	b.Keys = append(b.Keys, key)
	b.Values = append(b.Values, value)
	return true
}

func (b *hashBucketPage[K, V]) remove(key K) bool {
	for i, k := range b.Keys {
		if k == key {
			b.removeAt(uint32(i))
			return true
		}
	}

	return false
}

func (b *hashBucketPage[K, V]) removeAt(idx uint32) {
	b.Keys = append(b.Keys[:idx], b.Keys[idx+1:]...)
	b.Values = append(b.Values[:idx], b.Values[idx+1:]...)
}

func (b *hashBucketPage[K, V]) keyAt(idx uint32) K {
	return b.Keys[idx]
}

func (b *hashBucketPage[K, V]) valueAt(idx uint32) V {
	return b.Values[idx]
}

func (b *hashBucketPage[K, V]) size() uint32 {
	return uint32(len(b.Keys))
}

func (b *hashBucketPage[K, V]) isFull() bool {
	return b.size() == b.MaxSize
}

func (b *hashBucketPage[K, V]) isEmpty() bool {
	return b.size() == 0
}
