package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in a map owned by the store.  Expired entries
// are removed when read and in bulk by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, key string, now time.Time) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if !now.Before(e.ResetAt) {
		delete(m.entries, key)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.ResetAt) {
		e = Entry{Count: 0, ResetAt: now.Add(window)}
	}
	e.Count++
	m.entries[key] = e
	return e, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.ResetAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
