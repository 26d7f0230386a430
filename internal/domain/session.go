// Package domain defines the conversation data model: sessions, messages,
// and the appendages accumulated on an assistant message during a turn.
package domain

import "time"

// Session is the metadata for one persisted conversation thread.
type Session struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Preview       string    `json:"preview"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// TurnState tracks the lifecycle of a conversation's current turn.
//
// Idle → Sent (user message appended, input locked) → Open (assistant
// message created, accumulating appendages) → Idle (done, error, or cancel).
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnSent
	TurnOpen
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnSent:
		return "sent"
	case TurnOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Snapshot is the durable serialization of one conversation's transcript.
// Only structured data is persisted; any rendered form is regenerated from it.
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	SavedAt   time.Time `json:"timestamp"`
}
