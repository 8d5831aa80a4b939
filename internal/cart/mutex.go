package cart

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes cart mutations per customer. Shard count trades
// memory against cross-customer contention; collisions only cost latency.
type keyedMutex struct {
	shards []sync.Mutex
}

func newKeyedMutex(shards int) *keyedMutex {
	if shards <= 0 {
		shards = 64
	}
	return &keyedMutex{shards: make([]sync.Mutex, shards)}
}

func (m *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	shard := &m.shards[h.Sum32()%uint32(len(m.shards))]
	shard.Lock()
	return shard.Unlock
}
