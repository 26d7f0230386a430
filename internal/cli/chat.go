package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tansuo/paperchat/internal/conn"
	"github.com/tansuo/paperchat/internal/convo"
	"github.com/tansuo/paperchat/internal/dispatch"
	"github.com/tansuo/paperchat/internal/domain"
	"github.com/tansuo/paperchat/internal/protocol"
	"github.com/tansuo/paperchat/internal/render"
	"github.com/tansuo/paperchat/internal/store"
)

var errQuit = errors.New("quit")

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, app)
		},
	}
}

// chatSession holds the REPL state. Everything runs on one loop
// goroutine; events, connection states, and input lines are funneled in
// through channels, so the conversation store needs no locking.
type chatSession struct {
	app      *app
	cs       *convo.Store
	dispatch *dispatch.Dispatcher
	mgr      *conn.Manager
	term     *render.Terminal

	events   chan protocol.Event
	states   chan conn.State
	lines    chan string
	sendErrs chan error

	// confirmDelete arms when /delete is typed; the next line answers it.
	confirmDelete bool
}

func runChat(ctx context.Context, app *app) error {
	cs := convo.New(app.db, app.gateway, log)
	if err := cs.Load(ctx); err != nil {
		return err
	}

	wsURL, err := conn.EndpointURL(app.cfg.Server.URL)
	if err != nil {
		return err
	}

	c := &chatSession{
		app:      app,
		cs:       cs,
		dispatch: dispatch.New(cs, log),
		term:     render.NewTerminal(os.Stdout),
		events:   make(chan protocol.Event, 64),
		states:   make(chan conn.State, 8),
		lines:    make(chan string),
		sendErrs: make(chan error, 1),
	}

	c.mgr = conn.NewManager(wsURL, conn.Options{}, log)
	c.mgr.OnEvent(func(evt protocol.Event) { c.events <- evt })
	c.mgr.OnStateChange(func(st conn.State) {
		select {
		case c.states <- st:
		default:
		}
	})
	if err := c.mgr.Open(); err != nil {
		return err
	}
	defer c.mgr.Close()

	go readLines(c.lines)

	c.banner()
	c.term.Transcript(cs.Messages())
	c.prompt()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-c.lines:
			if !ok {
				fmt.Println()
				return nil
			}
			if err := c.handleLine(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				color.Red("%v", err)
				c.prompt()
			}
		case evt := <-c.events:
			c.handleEvent(evt)
		case st := <-c.states:
			c.handleState(st)
		case err := <-c.sendErrs:
			if err != nil {
				c.cs.FailTurn(err.Error())
				color.Red("Error: %v", err)
				c.prompt()
			}
		}
	}
}

func readLines(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}

func (c *chatSession) banner() {
	sess, ok := c.cs.ActiveSession()
	title := "(untitled)"
	if ok && sess.Title != "" {
		title = sess.Title
	}
	fmt.Printf("paperchat — %s\n", title)
	fmt.Println("type /help for commands")
	fmt.Println()
}

func (c *chatSession) prompt() {
	if c.cs.Turn() == domain.TurnIdle {
		fmt.Print("> ")
	}
}

func (c *chatSession) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)

	if c.confirmDelete {
		c.confirmDelete = false
		if line == "y" || line == "yes" {
			if err := c.cs.Delete(ctx, c.cs.ActiveID()); err != nil {
				return err
			}
			fmt.Println("deleted; started a fresh conversation")
		} else {
			fmt.Println("kept")
		}
		c.prompt()
		return nil
	}

	if line == "" {
		c.prompt()
		return nil
	}
	if strings.HasPrefix(line, "/") {
		return c.handleCommand(ctx, line)
	}
	return c.send(ctx, line)
}

func (c *chatSession) handleCommand(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/quit", "/exit":
		return errQuit

	case "/help":
		c.help()

	case "/new":
		if _, err := c.cs.Create(ctx, rest); err != nil {
			return err
		}
		fmt.Println("started a new conversation")

	case "/sessions":
		c.term.SessionList(c.cs.Sessions(), c.cs.ActiveID())

	case "/switch":
		if rest == "" {
			return errors.New("usage: /switch <number|id-prefix>")
		}
		id, err := c.resolveSession(rest)
		if err != nil {
			return err
		}
		if err := c.cs.SwitchTo(ctx, id); err != nil {
			return err
		}
		fmt.Println()
		c.banner()
		c.term.Transcript(c.cs.Messages())

	case "/rename":
		if rest == "" {
			return errors.New("usage: /rename <title>")
		}
		if err := c.cs.Rename(c.cs.ActiveID(), rest); err != nil {
			return err
		}
		fmt.Println("renamed")

	case "/delete":
		c.confirmDelete = true
		fmt.Print("delete the current conversation? this cannot be undone (y/N) ")
		return nil

	case "/cancel":
		c.cancel(ctx)

	case "/export":
		if rest == "" {
			return errors.New("usage: /export <file.html>")
		}
		if err := c.export(rest); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", rest)

	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	c.prompt()
	return nil
}

func (c *chatSession) help() {
	fmt.Println(`/new [title]     start a new conversation
/sessions        list conversations
/switch <n|id>   switch conversation
/rename <title>  rename the current conversation
/delete          delete the current conversation
/cancel          stop the current reply
/export <file>   export the transcript as HTML
/quit            exit`)
}

// resolveSession accepts a 1-based list position or an id prefix.
func (c *chatSession) resolveSession(arg string) (string, error) {
	sessions := c.cs.Sessions()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			return "", fmt.Errorf("no conversation %d", n)
		}
		return sessions[n-1].ID, nil
	}
	var match string
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one conversation", arg)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation matching %q", arg)
	}
	return match, nil
}

func (c *chatSession) send(ctx context.Context, text string) error {
	if err := c.cs.AppendUserMessage(text); err != nil {
		if errors.Is(err, convo.ErrTurnInProgress) {
			fmt.Println("a reply is still in progress (use /cancel to stop it)")
			return nil
		}
		return err
	}

	history := c.cs.History()
	if len(history) > 0 {
		// The new user message travels in the message field, not the history.
		history = history[:len(history)-1]
	}
	req := protocol.ChatRequest{
		Message:                 text,
		SessionID:               c.cs.ActiveID(),
		History:                 history,
		NotionIntegrationSecret: c.notionValue(store.KeyNotionSecret, c.app.cfg.Notion.IntegrationSecret),
		NotionDatabaseID:        c.notionValue(store.KeyNotionDatabase, c.app.cfg.Notion.DatabaseID),
	}

	// The send runs off-loop; the reply streams in over the socket.
	go func() {
		c.sendErrs <- c.app.gateway.SendMessage(ctx, req)
	}()
	return nil
}

func (c *chatSession) cancel(ctx context.Context) {
	if c.cs.Turn() == domain.TurnIdle {
		fmt.Println("nothing to cancel")
		return
	}

	// Stop locally first; the backend request must not delay the unlock.
	sessionID := c.cs.ActiveID()
	c.cs.CancelTurn()
	fmt.Println("stopped")

	go func() {
		if err := c.app.gateway.Cancel(ctx, sessionID); err != nil {
			log.Warn().Err(err).Msg("cancel request failed")
		}
	}()
}

func (c *chatSession) export(path string) error {
	sess, ok := c.cs.ActiveSession()
	if !ok {
		return errors.New("no active conversation")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render.ExportHTML(f, sess, c.cs.Messages())
}

// notionValue prefers the locally stored setting over the config file.
func (c *chatSession) notionValue(key, fallback string) string {
	value, ok, err := c.app.db.GetValue(key)
	if err != nil || !ok || value == "" {
		return fallback
	}
	return value
}

func (c *chatSession) handleEvent(evt protocol.Event) {
	wasOpen := c.cs.Turn() != domain.TurnIdle
	c.dispatch.Dispatch(evt)
	if !wasOpen {
		return
	}

	switch e := evt.(type) {
	case protocol.LogEvent:
		c.term.Appendage(domain.Appendage{
			Kind: domain.AppendageLog,
			Log:  &domain.LogEntry{Level: e.Level, Text: e.Message},
		})
	case protocol.ToolCallEvent:
		c.term.Appendage(domain.Appendage{
			Kind: domain.AppendageTool,
			Tool: &domain.ToolCallRecord{Name: e.Name, Args: e.Args, Status: domain.ToolRunning},
		})
	case protocol.ToolResultEvent:
		c.term.Appendage(domain.Appendage{
			Kind: domain.AppendageTool,
			Tool: &domain.ToolCallRecord{Name: e.Name, Result: e.Result, Status: domain.ToolCompleted},
		})
	case protocol.NotionLinkEvent:
		c.term.Appendage(domain.Appendage{
			Kind: domain.AppendageLink,
			Link: &domain.LinkCard{Title: e.Title, URL: e.URL},
		})
	case protocol.AssistantMessageEvent:
		fmt.Println(e.Message)
	case protocol.ErrorEvent:
		color.Red("Error: %s", e.Reason)
		c.prompt()
	case protocol.DoneEvent:
		fmt.Println()
		c.prompt()
	}
}

func (c *chatSession) handleState(st conn.State) {
	switch st {
	case conn.Connected:
		log.Info().Msg("connected")
	case conn.Disconnected:
		fmt.Println()
		color.Yellow("connection lost, retrying...")
	}
}
