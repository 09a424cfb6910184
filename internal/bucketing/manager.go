package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Manager assigns stable buckets to storage keys so session entries spread
// evenly across the keyspace. The same key always lands in the same bucket.
type Manager struct {
	buckets    int
	hasherPool sync.Pool
}

func NewManager(buckets int) *Manager {
	if buckets <= 0 {
		buckets = 16
	}
	return &Manager{
		buckets: buckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// KeyBucket returns the bucket for a storage key, in [0, buckets).
func (m *Manager) KeyBucket(key string) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return int(hasher.Sum64() % uint64(m.buckets))
}

// Buckets returns the configured bucket count.
func (m *Manager) Buckets() int {
	return m.buckets
}
