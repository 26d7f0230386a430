package domain

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolStatus is the lifecycle state of a tool-call record.
type ToolStatus string

const (
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
)

// Message is a single transcript entry. Assistant messages accumulate
// appendages while their turn is open; user messages never carry any.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Appendages []Appendage `json:"appendages,omitempty"`
}

// AppendageKind discriminates the appendage envelope.
type AppendageKind string

const (
	AppendageLog  AppendageKind = "log"
	AppendageTool AppendageKind = "tool"
	AppendageLink AppendageKind = "link"
)

// Appendage is one item attached to an in-progress assistant message.
// Exactly one of the payload fields is set, matching Kind.
type Appendage struct {
	Kind AppendageKind   `json:"kind"`
	Log  *LogEntry       `json:"log,omitempty"`
	Tool *ToolCallRecord `json:"tool,omitempty"`
	Link *LinkCard       `json:"link,omitempty"`
}

// LogEntry is a progress log line forwarded by the backend during a turn.
type LogEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// ToolCallRecord tracks one tool invocation within an assistant message.
// Identity is the tool name: a second call for the same name within one
// open message overwrites the record rather than appending a new one.
type ToolCallRecord struct {
	Name   string     `json:"name"`
	Args   string     `json:"args,omitempty"`
	Status ToolStatus `json:"status"`
	Result string     `json:"result,omitempty"`
}

// LinkCard is a link to an externally created artifact, shown as a card.
type LinkCard struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AppendLog attaches a log entry to the message.
func (m *Message) AppendLog(level, text string) {
	m.Appendages = append(m.Appendages, Appendage{
		Kind: AppendageLog,
		Log:  &LogEntry{Level: level, Text: text},
	})
}

// UpsertToolCall records a running tool invocation. If a record with the
// same name already exists on this message it is overwritten in place,
// keeping its position in the appendage order.
func (m *Message) UpsertToolCall(name, args string) {
	for i := range m.Appendages {
		if t := m.Appendages[i].Tool; t != nil && t.Name == name {
			m.Appendages[i].Tool = &ToolCallRecord{Name: name, Args: args, Status: ToolRunning}
			return
		}
	}
	m.Appendages = append(m.Appendages, Appendage{
		Kind: AppendageTool,
		Tool: &ToolCallRecord{Name: name, Args: args, Status: ToolRunning},
	})
}

// CompleteToolCall marks the matching tool record completed with its result.
// Returns false if no record with that name exists.
func (m *Message) CompleteToolCall(name, result string) bool {
	for i := range m.Appendages {
		if t := m.Appendages[i].Tool; t != nil && t.Name == name {
			t.Status = ToolCompleted
			t.Result = result
			return true
		}
	}
	return false
}

// AppendLink attaches a link card to the message.
func (m *Message) AppendLink(title, url string) {
	m.Appendages = append(m.Appendages, Appendage{
		Kind: AppendageLink,
		Link: &LinkCard{Title: title, URL: url},
	})
}

// ToolCalls returns the message's tool-call records in appendage order.
func (m *Message) ToolCalls() []ToolCallRecord {
	var calls []ToolCallRecord
	for _, a := range m.Appendages {
		if a.Tool != nil {
			calls = append(calls, *a.Tool)
		}
	}
	return calls
}
