// Package convo holds the conversation state machine: the ordered session
// list, the active conversation's transcript, and the per-turn lifecycle.
// Every mutation goes through here and is persisted before control returns.
//
// A Store is not goroutine-safe. The chat event loop is single-threaded;
// callers on other goroutines must funnel through it.
package convo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tansuo/paperchat/internal/domain"
	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
	"github.com/tansuo/paperchat/internal/store"
)

var (
	// ErrTurnInProgress rejects a new user message while a turn is open.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrUnknownSession reports an id with no matching conversation.
	ErrUnknownSession = errors.New("unknown session id")
)

// Title and preview derivation budgets, in runes.
const (
	titleBudget   = 30
	previewBudget = 50
	ellipsis      = "..."
)

// stoppedText is the locally-authored message appended on cancel.
const stoppedText = "Stopped."

// Backend is the outbound request surface the conversation store uses to
// keep server-side context in sync. Failures are logged, never surfaced:
// the local transcript stays authoritative.
type Backend interface {
	ResetSession(ctx context.Context, sessionID string) error
	RestoreSession(ctx context.Context, sessionID string, history []protocol.HistoryMessage) error
}

// Store is the aggregate root over all conversations. Exactly one
// conversation is active at a time; every mutator targets it.
type Store struct {
	db      store.Store
	backend Backend
	log     *logging.Logger

	sessions []domain.Session // sorted by LastMessageAt, newest first
	activeID string
	messages []domain.Message
	turn     domain.TurnState
	openIdx  int // index of the open assistant message, -1 when none
}

// New creates a conversation store over the given durable store and backend.
func New(db store.Store, backend Backend, log *logging.Logger) *Store {
	return &Store{
		db:      db,
		backend: backend,
		log:     log.Sub("convo"),
		openIdx: -1,
	}
}

// Load restores the session list and the active conversation from the
// durable store, creating a fresh conversation when none exists. The
// backend's context is rebuilt best-effort when history is present.
func (s *Store) Load(ctx context.Context) error {
	sessions, err := s.db.ListSessions()
	if err != nil {
		return err
	}
	s.sessions = sessions

	currentID, _, err := s.db.GetValue(store.KeyCurrentSession)
	if err != nil {
		return err
	}

	if currentID == "" || s.find(currentID) < 0 {
		_, err := s.Create(ctx, "")
		return err
	}

	s.activeID = currentID
	s.loadTranscript(currentID)
	if len(s.messages) > 0 {
		s.restoreBackend(ctx)
	}
	return nil
}

// Create starts a fresh conversation, inserts it at the list head, and
// makes it active. The backend's context for the new id is cleared.
func (s *Store) Create(ctx context.Context, title string) (domain.Session, error) {
	s.persistActive()

	now := time.Now().UTC()
	sess := domain.Session{
		ID:            uuid.New().String(),
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	s.sessions = append([]domain.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.messages = nil
	s.turn = domain.TurnIdle
	s.openIdx = -1

	if err := s.db.PutSession(sess); err != nil {
		s.logPersist(err)
	}
	s.setCurrent(sess.ID)
	s.persistActive()

	if s.backend != nil {
		if err := s.backend.ResetSession(ctx, sess.ID); err != nil {
			s.log.Warn().Err(err).Str("session", sess.ID).Msg("backend reset failed")
		}
	}

	s.log.Info().Str("session", sess.ID).Msg("conversation created")
	return sess, nil
}

// SwitchTo makes another conversation active: the outgoing transcript is
// persisted, the target's snapshot is loaded, and the backend's context is
// rebuilt from the target's history. Idempotent for the active id. A
// restore-request failure is logged only; the local transcript still shows.
func (s *Store) SwitchTo(ctx context.Context, sessionID string) error {
	if sessionID == s.activeID {
		return nil
	}
	if s.find(sessionID) < 0 {
		return ErrUnknownSession
	}

	// A turn still open on the outgoing conversation is closed locally so
	// late events cannot land in the wrong transcript.
	if s.turn != domain.TurnIdle {
		s.CancelTurn()
	}
	s.persistActive()

	s.activeID = sessionID
	s.loadTranscript(sessionID)
	s.setCurrent(sessionID)
	s.restoreBackend(ctx)

	s.log.Info().Str("session", sessionID).Msg("switched conversation")
	return nil
}

// Rename updates a conversation's title.
func (s *Store) Rename(sessionID, title string) error {
	i := s.find(sessionID)
	if i < 0 {
		return ErrUnknownSession
	}
	s.sessions[i].Title = title
	if err := s.db.PutSession(s.sessions[i]); err != nil {
		s.logPersist(err)
	}
	s.sortSessions()
	return nil
}

// Delete removes a conversation and its snapshot. Deleting the active
// conversation creates a fresh empty one. Destructive and non-reversible;
// callers confirm with the user first.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	i := s.find(sessionID)
	if i < 0 {
		return ErrUnknownSession
	}

	s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
	if err := s.db.DeleteSession(sessionID); err != nil {
		s.logPersist(err)
	}
	s.log.Info().Str("session", sessionID).Msg("conversation deleted")

	if sessionID == s.activeID {
		// Drop the dead transcript before Create persists the outgoing state.
		s.activeID = ""
		s.messages = nil
		s.turn = domain.TurnIdle
		s.openIdx = -1
		_, err := s.Create(ctx, "")
		return err
	}
	return nil
}

// AppendUserMessage appends a user message to the active conversation and
// locks input for the turn. The first user message of a conversation
// derives its title and preview.
func (s *Store) AppendUserMessage(content string) error {
	if s.turn != domain.TurnIdle {
		return ErrTurnInProgress
	}

	s.ensureRegistered()
	s.messages = append(s.messages, domain.Message{Role: domain.RoleUser, Content: content})
	s.turn = domain.TurnSent

	i := s.find(s.activeID)
	if firstUserMessage(s.messages) {
		if s.sessions[i].Title == "" {
			s.sessions[i].Title = truncate(content, titleBudget, ellipsis)
		}
		s.sessions[i].Preview = truncate(content, previewBudget, "")
	}
	s.touchActive()
	s.persistActive()
	return nil
}

// History returns the transcript in the role/content form sent to the
// backend on send and restore requests.
func (s *Store) History() []protocol.HistoryMessage {
	var history []protocol.HistoryMessage
	for _, m := range s.messages {
		if m.Content == "" {
			continue
		}
		history = append(history, protocol.HistoryMessage{Role: string(m.Role), Content: m.Content})
	}
	return history
}

// --- read model ---

// Sessions returns the conversation list, newest first.
func (s *Store) Sessions() []domain.Session {
	out := make([]domain.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// ActiveID returns the active conversation's id.
func (s *Store) ActiveID() string { return s.activeID }

// ActiveSession returns the active conversation's metadata.
func (s *Store) ActiveSession() (domain.Session, bool) {
	i := s.find(s.activeID)
	if i < 0 {
		return domain.Session{}, false
	}
	return s.sessions[i], true
}

// Messages returns a copy of the active transcript.
func (s *Store) Messages() []domain.Message {
	return domain.CloneMessages(s.messages)
}

// Turn returns the active conversation's turn state.
func (s *Store) Turn() domain.TurnState { return s.turn }

// --- internals ---

// loadTranscript replaces the visible transcript with a session's snapshot,
// or an empty one when no snapshot exists.
func (s *Store) loadTranscript(sessionID string) {
	s.messages = nil
	s.turn = domain.TurnIdle
	s.openIdx = -1

	snap, ok, err := s.db.LoadSnapshot(sessionID)
	if err != nil {
		s.logPersist(err)
		return
	}
	if ok {
		s.messages = snap.Messages
	}
}

// restoreBackend rebuilds server-side context from local history. Failure
// is logged only.
func (s *Store) restoreBackend(ctx context.Context) {
	if s.backend == nil {
		return
	}
	if err := s.backend.RestoreSession(ctx, s.activeID, s.History()); err != nil {
		s.log.Warn().Err(err).Str("session", s.activeID).Msg("backend restore failed")
	}
}

// ensureRegistered guarantees the active id has a matching entry in the
// conversation list, registering one if events outran registration.
func (s *Store) ensureRegistered() {
	if s.activeID != "" && s.find(s.activeID) >= 0 {
		return
	}
	now := time.Now().UTC()
	if s.activeID == "" {
		s.activeID = uuid.New().String()
	}
	sess := domain.Session{ID: s.activeID, CreatedAt: now, LastMessageAt: now}
	s.sessions = append([]domain.Session{sess}, s.sessions...)
	if err := s.db.PutSession(sess); err != nil {
		s.logPersist(err)
	}
	s.setCurrent(s.activeID)
}

// touchActive bumps the active conversation's last-message time and
// re-sorts the list.
func (s *Store) touchActive() {
	if i := s.find(s.activeID); i >= 0 {
		s.sessions[i].LastMessageAt = time.Now().UTC()
	}
	s.sortSessions()
}

func (s *Store) sortSessions() {
	// Insertion-order stable: the list is small and nearly sorted.
	for i := 1; i < len(s.sessions); i++ {
		for j := i; j > 0 && s.sessions[j].LastMessageAt.After(s.sessions[j-1].LastMessageAt); j-- {
			s.sessions[j], s.sessions[j-1] = s.sessions[j-1], s.sessions[j]
		}
	}
}

// persistActive writes the active conversation's metadata and snapshot.
// Storage failures are logged; in-memory state stays authoritative and the
// next mutation retries.
func (s *Store) persistActive() {
	i := s.find(s.activeID)
	if i < 0 {
		return
	}
	if err := s.db.PutSession(s.sessions[i]); err != nil {
		s.logPersist(err)
	}
	snap := domain.Snapshot{
		SessionID: s.activeID,
		Messages:  s.messages,
		SavedAt:   time.Now().UTC(),
	}
	if err := s.db.SaveSnapshot(snap); err != nil {
		s.logPersist(err)
	}
}

func (s *Store) setCurrent(sessionID string) {
	if err := s.db.SetValue(store.KeyCurrentSession, sessionID); err != nil {
		s.logPersist(err)
	}
}

func (s *Store) find(sessionID string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

func (s *Store) logPersist(err error) {
	s.log.Warn().Err(err).Msg("persistence failure")
}

func firstUserMessage(msgs []domain.Message) bool {
	count := 0
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			count++
		}
	}
	return count == 1
}

// truncate cuts s to budget runes, appending the marker when cut.
func truncate(s string, budget int, marker string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= budget {
		return string(r)
	}
	return string(r[:budget]) + marker
}
