package abuse

import (
	"context"
	"sync"
	"time"
)

// Window is the fixed-window counter kept per client.
type Window struct {
	Count   int
	ResetAt time.Time
}

// WindowStore holds rate-limit windows keyed by client identifier.
// Update must run fn and persist its result atomically for the key; when fn
// returns write=false nothing is stored.
type WindowStore interface {
	Update(ctx context.Context, key string, fn func(cur Window, found bool) (next Window, write bool)) error
}

// SeenStore holds the last accepted submission time per normalized phone.
type SeenStore interface {
	Update(ctx context.Context, key string, fn func(last time.Time, found bool) (next time.Time, write bool)) error
}

// Sweeper is implemented by stores that never expire entries on their own.
type Sweeper[V any] interface {
	Len() int
	DeleteFunc(stale func(V) bool) int
}

// MemoryStore is a mutex-guarded map usable as a WindowStore or SeenStore.
// State is per process and lost on restart.
type MemoryStore[V any] struct {
	mu      sync.Mutex
	entries map[string]V
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{entries: make(map[string]V)}
}

// NewMemoryWindowStore returns an in-memory WindowStore.
func NewMemoryWindowStore() *MemoryStore[Window] {
	return NewMemoryStore[Window]()
}

// NewMemorySeenStore returns an in-memory SeenStore.
func NewMemorySeenStore() *MemoryStore[time.Time] {
	return NewMemoryStore[time.Time]()
}

func (s *MemoryStore[V]) Update(_ context.Context, key string, fn func(V, bool) (V, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found := s.entries[key]
	next, write := fn(cur, found)
	if write {
		s.entries[key] = next
	}
	return nil
}

func (s *MemoryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// DeleteFunc removes every entry for which stale returns true and reports how
// many were removed.
func (s *MemoryStore[V]) DeleteFunc(stale func(V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, v := range s.entries {
		if stale(v) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

var (
	_ WindowStore        = (*MemoryStore[Window])(nil)
	_ SeenStore          = (*MemoryStore[time.Time])(nil)
	_ Sweeper[Window]    = (*MemoryStore[Window])(nil)
	_ Sweeper[time.Time] = (*MemoryStore[time.Time])(nil)
)
