package session

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	principal Principal
	expires   time.Time
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, id string, p Principal, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memEntry{principal: p, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, id)
		return Principal{}, ErrNotFound
	}
	return e.principal, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}
