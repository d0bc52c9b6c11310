package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore. It serves tests and
// single-replica deployments without Redis; the quota does not hold
// across replicas.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memCounter

	// now is swappable in tests.
	now func() time.Time
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memCounter),
		now:      time.Now,
	}
}

var _ CounterStore = (*MemoryStore)(nil)

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !c.expiresAt.After(s.now()) {
		c = &memCounter{expiresAt: s.now().Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	ttl := c.expiresAt.Sub(s.now())
	if ttl < 0 {
		ttl = 0
	}
	return ttl, nil
}
