package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used when no SQLite path is configured
// and as the substitute store under test. Sessions and history do not
// survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	history  map[string][]HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		history:  make(map[string][]HistoryEntry),
	}
}

func (m *MemoryStore) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := s
	return &copied, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) AppendHistory(_ context.Context, entry HistoryEntry, limit int) error {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := append(m.history[entry.Username], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	m.history[entry.Username] = entries
	return nil
}

func (m *MemoryStore) ListHistory(_ context.Context, username string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.history[username]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
