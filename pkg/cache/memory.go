package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"okx-trader/internal/risk"
)

const numShards = 16

// MemoryStore is an in-process risk.ThrottleStore sharded by key, for running
// several controllers in one process without an external backend.
type MemoryStore struct {
	shards [numShards]*stateShard
}

type stateShard struct {
	mu    sync.RWMutex
	items map[string]stateEntry
}

type stateEntry struct {
	state     risk.ThrottleState
	updatedAt time.Time
}

var _ risk.ThrottleStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &stateShard{items: make(map[string]stateEntry)}
	}
	return s
}

func (s *MemoryStore) shard(key string) *stateShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%numShards]
}

// LoadThrottle returns the state stored for key.
func (s *MemoryStore) LoadThrottle(_ context.Context, key string) (risk.ThrottleState, bool, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	e, ok := sh.items[key]
	sh.mu.RUnlock()
	return e.state, ok, nil
}

// SaveThrottle replaces the state for key.
func (s *MemoryStore) SaveThrottle(_ context.Context, key string, st risk.ThrottleState) error {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.items[key] = stateEntry{state: st, updatedAt: time.Now()}
	sh.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.items)
		sh.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries not written within maxAge.
func (s *MemoryStore) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.items {
			if e.updatedAt.Before(cutoff) {
				delete(sh.items, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
