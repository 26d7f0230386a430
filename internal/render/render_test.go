package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansuo/paperchat/internal/domain"
)

func plainTerminal(buf *bytes.Buffer) *Terminal {
	color.NoColor = true
	return NewTerminal(buf)
}

func sampleMessage() domain.Message {
	m := domain.Message{Role: domain.RoleAssistant}
	m.AppendLog("info", "searching the database")
	m.UpsertToolCall("search", `{"query":"attention"}`)
	m.CompleteToolCall("search", "3 pages found")
	m.AppendLink("Attention Is All You Need", "https://notion.so/abc")
	m.Content = "Here is what I found."
	return m
}

func TestTerminal_Message(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	m := sampleMessage()
	term.Message(&m)

	out := buf.String()
	assert.Contains(t, out, "assistant\n")
	assert.Contains(t, out, "searching the database")
	assert.Contains(t, out, "✓ search")
	assert.Contains(t, out, "3 pages found")
	assert.Contains(t, out, "Attention Is All You Need")
	assert.Contains(t, out, "https://notion.so/abc")
	assert.Contains(t, out, "Here is what I found.")
}

func TestTerminal_RunningTool(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	var m domain.Message
	m.UpsertToolCall("digest", "")
	term.Message(&m)

	assert.Contains(t, buf.String(), "⋯ digest")
}

func TestTerminal_ErrorBody(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	term.Message(&domain.Message{Role: domain.RoleAssistant, Content: "Error: connection refused"})

	assert.Contains(t, buf.String(), "Error: connection refused")
}

func TestTerminal_SessionList(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	now := time.Now()
	sessions := []domain.Session{
		{ID: "aaaaaaaa-1111", Title: "papers", Preview: "summarize this", LastMessageAt: now},
		{ID: "bbbbbbbb-2222", Title: "", LastMessageAt: now.Add(-time.Hour)},
	}
	term.SessionList(sessions, "aaaaaaaa-1111")

	out := buf.String()
	assert.Contains(t, out, "* papers")
	assert.Contains(t, out, "summarize this")
	assert.Contains(t, out, "(untitled)")
	assert.Contains(t, out, "aaaaaaaa")
	assert.NotContains(t, out, "aaaaaaaa-1111")
}

func TestCompactArgs(t *testing.T) {
	long := "{\"query\":\"" + string(bytes.Repeat([]byte("x"), 80)) + "\"}"
	got := compactArgs(long)
	assert.Len(t, []rune(got), 61)

	assert.Equal(t, "short", compactArgs("short\nsecond line"))
}

func TestExportHTML(t *testing.T) {
	var buf bytes.Buffer
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "explain <attention>"},
		sampleMessage(),
	}
	sess := domain.Session{ID: "id", Title: "papers"}

	require.NoError(t, ExportHTML(&buf, sess, msgs))

	out := buf.String()
	assert.Contains(t, out, "<title>papers</title>")
	// User text is escaped, never interpreted.
	assert.Contains(t, out, "explain &lt;attention&gt;")
	// Assistant markdown becomes HTML.
	assert.Contains(t, out, "<p>Here is what I found.</p>")
	assert.Contains(t, out, `href="https://notion.so/abc"`)
	assert.Contains(t, out, "search (done)")
}

func TestExportHTML_UntitledFallback(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportHTML(&buf, domain.Session{}, nil))
	assert.Contains(t, buf.String(), "<title>Conversation</title>")
}
