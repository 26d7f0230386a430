package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tansuo/paperchat/internal/domain"
)

// timeLayout keeps sub-second precision so the last-message ordering of
// conversations created in quick succession stays stable.
const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetValue reads a standalone value.
func (s *SQLiteStore) GetValue(key string) (string, bool, error) {
	var value string
	err := s.db.sql.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading value %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue writes a standalone value.
func (s *SQLiteStore) SetValue(key, value string) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing value %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes a standalone value.
func (s *SQLiteStore) DeleteValue(key string) error {
	if _, err := s.db.sql.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting value %q: %w", key, err)
	}
	return nil
}

// ListSessions returns all conversation metadata, newest first.
func (s *SQLiteStore) ListSessions() ([]domain.Session, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, title, preview, created_at, last_message_at
		 FROM conversations ORDER BY last_message_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		var createdAt, lastAt string
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Preview, &createdAt, &lastAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		sess.LastMessageAt, _ = time.Parse(timeLayout, lastAt)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// PutSession inserts or updates conversation metadata.
func (s *SQLiteStore) PutSession(sess domain.Session) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO conversations (id, title, preview, created_at, last_message_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   preview = excluded.preview,
		   last_message_at = excluded.last_message_at`,
		sess.ID, sess.Title, sess.Preview,
		sess.CreatedAt.Format(timeLayout), sess.LastMessageAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storing conversation %s: %w", sess.ID, err)
	}
	return nil
}

// DeleteSession removes conversation metadata; the snapshot goes with it.
func (s *SQLiteStore) DeleteSession(id string) error {
	if _, err := s.db.sql.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	return nil
}

// SaveSnapshot persists a conversation transcript as structured JSON.
func (s *SQLiteStore) SaveSnapshot(snap domain.Snapshot) error {
	data, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snap.SessionID, err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO snapshots (session_id, data, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   data = excluded.data,
		   saved_at = excluded.saved_at`,
		snap.SessionID, string(data), snap.SavedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storing snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

// LoadSnapshot reads a conversation transcript.
func (s *SQLiteStore) LoadSnapshot(sessionID string) (domain.Snapshot, bool, error) {
	var data, savedAt string
	err := s.db.sql.QueryRow(
		`SELECT data, saved_at FROM snapshots WHERE session_id = ?`, sessionID,
	).Scan(&data, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("reading snapshot %s: %w", sessionID, err)
	}

	snap := domain.Snapshot{SessionID: sessionID}
	snap.SavedAt, _ = time.Parse(timeLayout, savedAt)
	if err := json.Unmarshal([]byte(data), &snap.Messages); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decoding snapshot %s: %w", sessionID, err)
	}
	return snap, true, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
