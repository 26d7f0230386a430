package convo

import "github.com/tansuo/paperchat/internal/domain"

// Mutators applied by the event dispatcher. Each targets the active
// conversation's open assistant message and persists before returning.
// Events arriving while the turn is idle are late stragglers from a
// finished or cancelled turn; they are logged and dropped, so the only
// way out of idle is a new user message.

// AppendLogEntry attaches a progress log line to the open assistant message.
func (s *Store) AppendLogEntry(level, text string) {
	if s.turn == domain.TurnIdle {
		s.dropIdle("log")
		return
	}
	s.openMessage().AppendLog(level, text)
	s.persistActive()
}

// UpsertToolCall records a running tool invocation, overwriting any record
// with the same name on the open message.
func (s *Store) UpsertToolCall(name, args string) {
	if s.turn == domain.TurnIdle {
		s.dropIdle("tool_call")
		return
	}
	s.openMessage().UpsertToolCall(name, args)
	s.persistActive()
}

// CompleteToolCall marks the matching tool record completed. A missing
// match is a no-op, not an error.
func (s *Store) CompleteToolCall(name, result string) {
	if s.turn == domain.TurnIdle || s.openIdx < 0 {
		s.dropIdle("tool_result")
		return
	}
	if s.messages[s.openIdx].CompleteToolCall(name, result) {
		s.persistActive()
	}
}

// AppendLinkCard attaches a link card to the open assistant message.
func (s *Store) AppendLinkCard(title, url string) {
	if s.turn == domain.TurnIdle {
		s.dropIdle("notion_link")
		return
	}
	s.openMessage().AppendLink(title, url)
	s.persistActive()
}

// CloseAssistant sets the final text of the open assistant message,
// creating one if none is open. The message keeps accepting appendages
// until the turn completes.
func (s *Store) CloseAssistant(text string) {
	if s.turn == domain.TurnIdle {
		s.dropIdle("assistant_message")
		return
	}
	s.ensureRegistered()
	s.openMessage().Content = text
	s.touchActive()
	s.persistActive()
}

// FailTurn closes the open assistant message with an error-prefixed text
// and returns the turn to idle. Used both for the backend's error event
// and for rolling back a failed send.
func (s *Store) FailTurn(reason string) {
	if s.turn == domain.TurnIdle {
		s.dropIdle("error")
		return
	}
	s.ensureRegistered()
	s.openMessage().Content = "Error: " + reason
	s.turn = domain.TurnIdle
	s.openIdx = -1
	s.touchActive()
	s.persistActive()
}

// CompleteTurn marks the turn done and re-enables input. Idempotent: a
// second done for an already-idle turn has no observable effect.
func (s *Store) CompleteTurn() {
	if s.turn == domain.TurnIdle {
		return
	}
	s.turn = domain.TurnIdle
	s.openIdx = -1
	s.persistActive()
}

// CancelTurn stops the turn locally, appending a locally-authored
// "stopped" assistant message. It does not wait for the backend.
func (s *Store) CancelTurn() {
	if s.turn == domain.TurnIdle {
		return
	}
	if s.openIdx >= 0 && s.messages[s.openIdx].Content == "" {
		s.messages[s.openIdx].Content = stoppedText
	} else {
		s.messages = append(s.messages, domain.Message{Role: domain.RoleAssistant, Content: stoppedText})
	}
	s.turn = domain.TurnIdle
	s.openIdx = -1
	s.persistActive()
}

// openMessage returns the open assistant message, creating one (and
// opening the turn) when none exists.
func (s *Store) openMessage() *domain.Message {
	if s.openIdx < 0 {
		s.messages = append(s.messages, domain.Message{Role: domain.RoleAssistant})
		s.openIdx = len(s.messages) - 1
		s.turn = domain.TurnOpen
	}
	return &s.messages[s.openIdx]
}

func (s *Store) dropIdle(kind string) {
	s.log.Debug().Str("event", kind).Msg("dropping event for idle turn")
}
