package guided

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is an in-process Store. Entries are serialized on Put so
// callers never share a *Session with the store.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryEntry
}

// NewMemoryStore creates a MemoryStore. A ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, items: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode guided session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.items[Key(s.SessionID, s.StepNumber)] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string, step int) (*Session, error) {
	m.mu.Lock()
	e, ok := m.items[Key(sessionID, step)]
	if ok && !m.now().Before(e.expires) {
		delete(m.items, Key(sessionID, step))
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var s Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("decode guided session: %w", err)
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, Key(sessionID, step))
	return nil
}

// Len returns the number of unexpired entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.items)
}

// sweep drops expired entries. Callers hold mu.
func (m *MemoryStore) sweep() {
	now := m.now()
	for k, e := range m.items {
		if !now.Before(e.expires) {
			delete(m.items, k)
		}
	}
}
