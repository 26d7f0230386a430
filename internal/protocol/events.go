// Package protocol defines the wire formats exchanged with the agent
// backend: the inbound push-event envelope and the outbound request and
// response payloads.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Push event type discriminators.
const (
	TypeLog              = "log"
	TypeAssistantMessage = "assistant_message"
	TypeToolCall         = "tool_call"
	TypeToolResult       = "tool_result"
	TypeNotionLink       = "notion_link"
	TypeError            = "error"
	TypeDone             = "done"
)

// Event is an inbound push event. The set is closed: every implementation
// lives in this package and consumers dispatch with an exhaustive type
// switch instead of inspecting raw fields.
type Event interface {
	event()
}

// LogEvent is a progress log line emitted while the backend works.
type LogEvent struct {
	Level   string
	Message string
}

// AssistantMessageEvent carries the final text of the open assistant turn.
type AssistantMessageEvent struct {
	Message string
}

// ToolCallEvent announces a tool invocation starting on the backend.
type ToolCallEvent struct {
	Name string
	Args string
}

// ToolResultEvent carries the result of a previously announced tool call.
type ToolResultEvent struct {
	Name   string
	Result string
}

// NotionLinkEvent links the artifact the backend created for this turn.
type NotionLinkEvent struct {
	Title string
	URL   string
}

// ErrorEvent reports a turn-level failure.
type ErrorEvent struct {
	Reason string
}

// DoneEvent marks the turn complete.
type DoneEvent struct{}

func (LogEvent) event()              {}
func (AssistantMessageEvent) event() {}
func (ToolCallEvent) event()         {}
func (ToolResultEvent) event()       {}
func (NotionLinkEvent) event()       {}
func (ErrorEvent) event()            {}
func (DoneEvent) event()             {}

// MalformedEventError reports an unparsable push payload. These are logged
// and dropped by the connection layer, never surfaced to conversation state.
type MalformedEventError struct {
	Cause error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed push event: %v", e.Cause)
}

func (e *MalformedEventError) Unwrap() error { return e.Cause }

// UnknownEventError reports an unrecognized type discriminator. Unknown
// types are skipped so newer backends remain compatible with this client.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown push event type %q", e.Type)
}

// envelope is the raw wire shape of every push event. Which fields are
// populated depends on the type discriminator.
type envelope struct {
	Type     string          `json:"type"`
	Message  string          `json:"message,omitempty"`
	Level    string          `json:"level,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	ToolArgs json.RawMessage `json:"tool_args,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// linkResult is the result payload of a notion_link event.
type linkResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ParseEvent decodes one push event. It returns *MalformedEventError for
// payloads that are not valid envelopes and *UnknownEventError for type
// discriminators this client does not recognize.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &MalformedEventError{Cause: err}
	}

	switch env.Type {
	case TypeLog:
		return LogEvent{Level: env.Level, Message: env.Message}, nil
	case TypeAssistantMessage:
		return AssistantMessageEvent{Message: env.Message}, nil
	case TypeToolCall:
		return ToolCallEvent{Name: env.ToolName, Args: rawString(env.ToolArgs)}, nil
	case TypeToolResult:
		return ToolResultEvent{Name: env.ToolName, Result: rawString(env.Result)}, nil
	case TypeNotionLink:
		var link linkResult
		if err := json.Unmarshal(env.Result, &link); err != nil {
			return nil, &MalformedEventError{Cause: err}
		}
		return NotionLinkEvent{Title: link.Title, URL: link.URL}, nil
	case TypeError:
		reason := env.Error
		if reason == "" {
			reason = env.Message
		}
		return ErrorEvent{Reason: reason}, nil
	case TypeDone:
		return DoneEvent{}, nil
	default:
		return nil, &UnknownEventError{Type: env.Type}
	}
}

// rawString renders a raw JSON value as display text: bare strings are
// unquoted, everything else keeps its JSON form.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
