package lineage

import (
	"sync"
	"time"
)

// sweepInterval is the number of writes between opportunistic scans for
// expired entries. Expired entries are also dropped lazily on Get.
const sweepInterval = 256

type entry struct {
	ctx       *Context
	expiresAt time.Time
}

// InMemoryStore is a volatile Store implementation holding context records
// in a process local map. It is safe for concurrent access and best suited
// for tests, examples and single-process deployments. Each returned context
// is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	writes  int
}

// NewInMemoryStore constructs an empty in-memory context store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry)}
}

// Get resolves a reference, dropping it if the TTL elapsed.
func (s *InMemoryStore) Get(ref string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ref]
	if !ok {
		return nil, ErrRefNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.entries, ref)
		return nil, ErrRefNotFound
	}
	return e.ctx.Clone(), nil
}

// Set stores a clone of the context under ref. A non-positive ttl stores
// without expiry.
func (s *InMemoryStore) Set(ref string, c *Context, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.entries[ref] = entry{ctx: c.Clone(), expiresAt: expiresAt}
	s.writes++
	if s.writes%sweepInterval == 0 {
		s.sweepLocked()
	}
	return nil
}

// Len reports the number of live entries, counting expired but unswept ones.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweepLocked removes expired entries; caller must hold the lock.
func (s *InMemoryStore) sweepLocked() {
	now := time.Now()
	for ref, e := range s.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.entries, ref)
		}
	}
}
