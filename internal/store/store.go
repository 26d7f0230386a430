// Package store provides durable persistence for session identifiers,
// conversation metadata, and per-conversation transcript snapshots.
package store

import "github.com/tansuo/paperchat/internal/domain"

// Well-known value keys.
const (
	KeyToken          = "token"
	KeyUsername       = "username"
	KeyCurrentSession = "current_session_id"
	KeyNotionSecret   = "notion_integration_secret"
	KeyNotionDatabase = "notion_database_id"
)

// Store is the durable persistence boundary. The conversation store is its
// sole writer; a write failure is never fatal because in-memory state stays
// authoritative and the next mutation retries.
type Store interface {
	// GetValue reads a standalone value. The second return reports presence.
	GetValue(key string) (string, bool, error)

	// SetValue writes a standalone value, replacing any previous one.
	SetValue(key, value string) error

	// DeleteValue removes a standalone value. Missing keys are not an error.
	DeleteValue(key string) error

	// ListSessions returns all conversation metadata ordered by
	// last-message time, newest first.
	ListSessions() ([]domain.Session, error)

	// PutSession inserts or updates conversation metadata.
	PutSession(sess domain.Session) error

	// DeleteSession removes conversation metadata and its snapshot.
	DeleteSession(id string) error

	// SaveSnapshot persists a conversation transcript.
	SaveSnapshot(snap domain.Snapshot) error

	// LoadSnapshot reads a conversation transcript. The second return
	// reports whether a snapshot exists.
	LoadSnapshot(sessionID string) (domain.Snapshot, bool, error)

	// Close releases underlying resources.
	Close() error
}
