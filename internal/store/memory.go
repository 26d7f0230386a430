package store

import (
	"sort"

	"github.com/tansuo/paperchat/internal/domain"
)

// MemoryStore is an in-memory Store implementation for tests and the
// "memory" storage driver. Nothing survives process exit.
type MemoryStore struct {
	values    map[string]string
	sessions  map[string]domain.Session
	snapshots map[string]domain.Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:    make(map[string]string),
		sessions:  make(map[string]domain.Session),
		snapshots: make(map[string]domain.Snapshot),
	}
}

func (s *MemoryStore) GetValue(key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) SetValue(key, value string) error {
	s.values[key] = value
	return nil
}

func (s *MemoryStore) DeleteValue(key string) error {
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) ListSessions() ([]domain.Session, error) {
	sessions := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions, nil
}

func (s *MemoryStore) PutSession(sess domain.Session) error {
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) DeleteSession(id string) error {
	delete(s.sessions, id)
	delete(s.snapshots, id)
	return nil
}

func (s *MemoryStore) SaveSnapshot(snap domain.Snapshot) error {
	copied := snap
	copied.Messages = domain.CloneMessages(snap.Messages)
	s.snapshots[snap.SessionID] = copied
	return nil
}

func (s *MemoryStore) LoadSnapshot(sessionID string) (domain.Snapshot, bool, error) {
	snap, ok := s.snapshots[sessionID]
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	snap.Messages = domain.CloneMessages(snap.Messages)
	return snap, true, nil
}

func (s *MemoryStore) Close() error { return nil }
