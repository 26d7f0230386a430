package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/yuin/goldmark"

	"github.com/tansuo/paperchat/internal/domain"
)

// htmlPage is the standalone export template. Assistant bodies are
// markdown rendered to HTML; user bodies are escaped verbatim.
var htmlPage = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.role { font-weight: bold; margin-top: 1.5rem; }
.role.user { color: #2d7d46; }
.role.assistant { color: #1565c0; }
.log { color: #888; font-size: 0.85rem; margin-left: 1rem; }
.tool { color: #8a6d00; font-size: 0.9rem; margin-left: 1rem; }
.link { margin-left: 1rem; }
footer { margin-top: 2rem; color: #888; font-size: 0.8rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Messages}}
<div class="role {{.Role}}">{{.Role}}</div>
{{range .Appendages}}{{.}}{{end}}
<div class="body">{{.Body}}</div>
{{end}}
<footer>exported {{.ExportedAt}}</footer>
</body>
</html>
`))

type htmlMessage struct {
	Role       string
	Appendages []template.HTML
	Body       template.HTML
}

type htmlDoc struct {
	Title      string
	Messages   []htmlMessage
	ExportedAt string
}

// ExportHTML writes the transcript as a self-contained HTML document.
func ExportHTML(w io.Writer, sess domain.Session, msgs []domain.Message) error {
	title := sess.Title
	if title == "" {
		title = "Conversation"
	}

	doc := htmlDoc{
		Title:      title,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for i := range msgs {
		hm, err := exportMessage(&msgs[i])
		if err != nil {
			return err
		}
		doc.Messages = append(doc.Messages, hm)
	}
	return htmlPage.Execute(w, doc)
}

func exportMessage(m *domain.Message) (htmlMessage, error) {
	hm := htmlMessage{Role: string(m.Role)}

	for _, a := range m.Appendages {
		hm.Appendages = append(hm.Appendages, exportAppendage(a))
	}

	switch m.Role {
	case domain.RoleAssistant:
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(m.Content), &buf); err != nil {
			return htmlMessage{}, fmt.Errorf("render markdown: %w", err)
		}
		hm.Body = template.HTML(buf.String())
	default:
		hm.Body = template.HTML("<p>" + template.HTMLEscapeString(m.Content) + "</p>")
	}
	return hm, nil
}

func exportAppendage(a domain.Appendage) template.HTML {
	esc := template.HTMLEscapeString
	switch a.Kind {
	case domain.AppendageLog:
		return template.HTML(`<div class="log">` + esc(a.Log.Level) + ": " + esc(a.Log.Text) + `</div>`)
	case domain.AppendageTool:
		status := "running"
		detail := a.Tool.Args
		if a.Tool.Status == domain.ToolCompleted {
			status = "done"
			detail = a.Tool.Result
		}
		return template.HTML(`<div class="tool">` + esc(a.Tool.Name) + " (" + status + ") " + esc(firstLine(detail)) + `</div>`)
	case domain.AppendageLink:
		return template.HTML(`<div class="link"><a href="` + esc(a.Link.URL) + `">` + esc(a.Link.Title) + `</a></div>`)
	}
	return ""
}
