// Package render formats conversation transcripts for the terminal and
// for HTML export. The renderer is a pure projection of the message list;
// it never mutates conversation state.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/tansuo/paperchat/internal/domain"
)

var (
	userHeader      = color.New(color.FgGreen, color.Bold)
	assistantHeader = color.New(color.FgCyan, color.Bold)
	dim             = color.New(color.Faint)
	toolName        = color.New(color.FgYellow)
	linkTitle       = color.New(color.FgMagenta, color.Bold)
	errorText       = color.New(color.FgRed)
)

// Terminal writes transcripts to a terminal writer.
type Terminal struct {
	w io.Writer
}

// NewTerminal creates a terminal renderer writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Transcript renders every message in order.
func (t *Terminal) Transcript(msgs []domain.Message) {
	for i := range msgs {
		t.Message(&msgs[i])
	}
}

// Message renders a single message: role header, appendages in arrival
// order, then the body text.
func (t *Terminal) Message(m *domain.Message) {
	switch m.Role {
	case domain.RoleUser:
		userHeader.Fprintln(t.w, "you")
	case domain.RoleAssistant:
		assistantHeader.Fprintln(t.w, "assistant")
	}

	for _, a := range m.Appendages {
		t.appendage(a)
	}

	if m.Content != "" {
		if strings.HasPrefix(m.Content, "Error: ") {
			errorText.Fprintln(t.w, m.Content)
		} else {
			fmt.Fprintln(t.w, m.Content)
		}
	}
	fmt.Fprintln(t.w)
}

// Appendage renders one appendage as it arrives, for live streaming
// output between the user message and the final assistant text.
func (t *Terminal) Appendage(a domain.Appendage) {
	t.appendage(a)
}

func (t *Terminal) appendage(a domain.Appendage) {
	switch a.Kind {
	case domain.AppendageLog:
		dim.Fprintf(t.w, "  %s %s\n", logGlyph(a.Log.Level), a.Log.Text)
	case domain.AppendageTool:
		t.toolCall(a.Tool)
	case domain.AppendageLink:
		linkTitle.Fprintf(t.w, "  ▸ %s\n", a.Link.Title)
		dim.Fprintf(t.w, "    %s\n", a.Link.URL)
	}
}

func (t *Terminal) toolCall(tc *domain.ToolCallRecord) {
	switch tc.Status {
	case domain.ToolRunning:
		toolName.Fprintf(t.w, "  ⋯ %s", tc.Name)
		if tc.Args != "" {
			dim.Fprintf(t.w, " %s", compactArgs(tc.Args))
		}
		fmt.Fprintln(t.w)
	case domain.ToolCompleted:
		toolName.Fprintf(t.w, "  ✓ %s", tc.Name)
		if tc.Result != "" {
			dim.Fprintf(t.w, " %s", firstLine(tc.Result))
		}
		fmt.Fprintln(t.w)
	}
}

// SessionList renders the conversation list, newest first, marking the
// active one.
func (t *Terminal) SessionList(sessions []domain.Session, activeID string) {
	for _, s := range sessions {
		marker := "  "
		if s.ID == activeID {
			marker = "* "
		}
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprint(t.w, marker)
		assistantHeader.Fprint(t.w, title)
		dim.Fprintf(t.w, "  %s  %s\n", shortID(s.ID), s.LastMessageAt.Local().Format("2006-01-02 15:04"))
		if s.Preview != "" {
			dim.Fprintf(t.w, "    %s\n", s.Preview)
		}
	}
}

func logGlyph(level string) string {
	switch level {
	case "warning", "warn":
		return "!"
	case "error":
		return "✗"
	default:
		return "·"
	}
}

// compactArgs keeps tool arguments to a single short line.
func compactArgs(args string) string {
	const budget = 60
	line := firstLine(args)
	r := []rune(line)
	if len(r) > budget {
		return string(r[:budget]) + "…"
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
