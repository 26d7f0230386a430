// Package conn manages the persistent duplex websocket connection to the
// agent backend: dialing, heartbeats, in-order event delivery, and
// reconnection with a fixed retry delay.
package conn

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
)

// ErrNotConnected is returned by Send while the stream is down. There is
// no outbound queue; the call simply fails.
var ErrNotConnected = errors.New("websocket not connected")

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Default timing. The retry delay is fixed: no backoff growth, no attempt cap.
const (
	DefaultRetryDelay   = 3 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 10 * time.Second
	dialTimeout         = 10 * time.Second
)

// Heartbeat payloads exchanged as plain text frames.
const (
	pingPayload = "ping"
	pongPayload = "pong"
)

// EventHandler receives each parsed inbound event, exactly once, in
// arrival order.
type EventHandler func(protocol.Event)

// StateHandler observes connection lifecycle transitions.
type StateHandler func(State)

// Options tunes Manager timing. Zero values select the defaults.
type Options struct {
	RetryDelay   time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
}

// Manager owns one websocket connection to the backend and keeps it alive.
type Manager struct {
	url     string
	opts    Options
	log     *logging.Logger
	onEvent EventHandler
	onState StateHandler

	mu     sync.Mutex
	state  State
	ws     *websocket.Conn
	retry  *time.Timer
	closed bool
	gen    int // connection generation; guards callbacks from stale sockets

	// notify feeds the single notifier goroutine so state transitions
	// reach the observer in the order they happened.
	notify chan State

	writeMu sync.Mutex
}

// EndpointURL derives the websocket endpoint from the backend's HTTP base URL.
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported scheme: " + u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// NewManager creates a manager for the given websocket URL. Handlers must
// be registered before Open.
func NewManager(wsURL string, opts Options, log *logging.Logger) *Manager {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	m := &Manager{
		url:    wsURL,
		opts:   opts,
		log:    log.Sub("conn"),
		notify: make(chan State, 16),
	}
	go m.notifyLoop()
	return m
}

func (m *Manager) notifyLoop() {
	for s := range m.notify {
		if m.onState != nil {
			m.onState(s)
		}
	}
}

// OnEvent registers the inbound event handler.
func (m *Manager) OnEvent(h EventHandler) { m.onEvent = h }

// OnStateChange registers the lifecycle observer. Transitions are
// delivered from a single goroutine in the order they happened; an
// observer that falls far behind may miss intermediate transitions.
func (m *Manager) OnStateChange(h StateHandler) { m.onState = h }

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open starts the connection machine. It returns immediately; the first
// dial happens in the background and failures feed the retry loop.
func (m *Manager) Open() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("connection manager closed")
	}
	if m.state != Disconnected {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(Connecting)
	m.mu.Unlock()

	go m.connect()
	return nil
}

// Send writes a JSON payload to the stream. Fails with ErrNotConnected
// while the stream is down.
func (m *Manager) Send(payload any) error {
	m.mu.Lock()
	ws := m.ws
	connected := m.state == Connected
	m.mu.Unlock()

	if !connected || ws == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return ws.WriteJSON(payload)
}

// Close shuts the connection down permanently and cancels any pending retry.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.gen++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	var err error
	if m.ws != nil {
		err = m.ws.Close()
		m.ws = nil
	}
	m.setStateLocked(Disconnected)
	close(m.notify)
	return err
}

// connect performs one dial attempt and starts the read and ping loops on
// success. On failure it schedules the next attempt after the fixed delay.
func (m *Manager) connect() {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.Dial(m.url, nil)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Str("url", m.url).Msg("dial failed")
		m.scheduleRetryLocked()
		m.mu.Unlock()
		return
	}

	m.gen++
	gen := m.gen
	m.ws = ws
	m.setStateLocked(Connected)
	m.mu.Unlock()

	m.log.Info().Str("url", m.url).Msg("connected")
	ws.SetReadDeadline(time.Now().Add(m.opts.PingInterval + m.opts.PongWait))

	go m.readLoop(ws, gen)
	go m.pingLoop(ws, gen)
}

// readLoop delivers inbound events until the socket dies. A single reader
// goroutine guarantees arrival-order delivery.
func (m *Manager) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.handleDisconnect(gen, err)
			return
		}
		ws.SetReadDeadline(time.Now().Add(m.opts.PingInterval + m.opts.PongWait))

		if string(data) == pongPayload {
			continue
		}

		evt, err := protocol.ParseEvent(data)
		if err != nil {
			// Malformed and unknown events are dropped here, never
			// surfaced to conversation state.
			var unknown *protocol.UnknownEventError
			if errors.As(err, &unknown) {
				m.log.Debug().Str("type", unknown.Type).Msg("ignoring unknown event type")
			} else {
				m.log.Warn().Err(err).Msg("dropping malformed event")
			}
			continue
		}

		if m.onEvent != nil {
			m.onEvent(evt)
		}
	}
}

// pingLoop sends the text heartbeat the backend answers with "pong".
func (m *Manager) pingLoop(ws *websocket.Conn, gen int) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := m.closed || m.gen != gen
		m.mu.Unlock()
		if stale {
			return
		}

		m.writeMu.Lock()
		err := ws.WriteMessage(websocket.TextMessage, []byte(pingPayload))
		m.writeMu.Unlock()
		if err != nil {
			// The read deadline will surface the dead socket shortly.
			return
		}
	}
}

// handleDisconnect reacts to an unexpected close by scheduling a reconnect.
func (m *Manager) handleDisconnect(gen int, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.gen != gen {
		return
	}

	m.log.Warn().Err(cause).Msg("connection lost")
	if m.ws != nil {
		m.ws.Close()
		m.ws = nil
	}
	m.setStateLocked(Disconnected)
	m.scheduleRetryLocked()
}

// scheduleRetryLocked arms the fixed-delay reconnect timer. Retries repeat
// indefinitely until Close.
func (m *Manager) scheduleRetryLocked() {
	m.setStateLocked(Connecting)
	m.retry = time.AfterFunc(m.opts.RetryDelay, m.connect)
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	select {
	case m.notify <- s:
	default:
		// The observer is far behind; shed the oldest transition rather
		// than block the connection machine.
		select {
		case <-m.notify:
		default:
		}
		select {
		case m.notify <- s:
		default:
		}
	}
}
