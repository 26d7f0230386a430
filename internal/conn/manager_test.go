package conn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
)

var testOpts = Options{
	RetryDelay:   20 * time.Millisecond,
	PingInterval: time.Minute,
	PongWait:     time.Minute,
}

// pushServer is a minimal websocket backend that records connections and
// lets tests push raw frames to the most recent one.
type pushServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := ps.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns = append(ps.conns, ws)
		ps.mu.Unlock()
		// Drain inbound frames, answering the heartbeat.
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "ping" {
				ws.WriteMessage(websocket.TextMessage, []byte("pong"))
			}
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func (ps *pushServer) connCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.conns)
}

func (ps *pushServer) push(t *testing.T, frames ...string) {
	t.Helper()
	ps.mu.Lock()
	ws := ps.conns[len(ps.conns)-1]
	ps.mu.Unlock()
	for _, f := range frames {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(f)))
	}
}

func (ps *pushServer) dropCurrent() {
	ps.mu.Lock()
	ws := ps.conns[len(ps.conns)-1]
	ps.mu.Unlock()
	ws.Close()
}

func newTestManager(t *testing.T, ps *pushServer) (*Manager, chan protocol.Event) {
	t.Helper()
	m := NewManager(ps.wsURL(), testOpts, logging.New(nil, "silent"))
	events := make(chan protocol.Event, 32)
	m.OnEvent(func(evt protocol.Event) { events <- evt })
	t.Cleanup(func() { m.Close() })
	return m, events
}

func waitConnected(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == Connected },
		2*time.Second, 5*time.Millisecond)
}

func collect(t *testing.T, events chan protocol.Event, n int) []protocol.Event {
	t.Helper()
	var got []protocol.Event
	for len(got) < n {
		select {
		case evt := <-events:
			got = append(got, evt)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d events, got %d", n, len(got))
		}
	}
	return got
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:9997", want: "ws://localhost:9997/ws"},
		{in: "https://agent.example.com", want: "wss://agent.example.com/ws"},
		{in: "ws://already", want: "ws://already/ws"},
		{in: "ftp://nope", wantErr: true},
	}
	for _, tt := range tests {
		got, err := EndpointURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestManager_DeliversEventsInOrder(t *testing.T) {
	ps := newPushServer(t)
	m, events := newTestManager(t, ps)

	require.NoError(t, m.Open())
	waitConnected(t, m)

	ps.push(t,
		`{"type":"log","level":"info","message":"one"}`,
		`{"type":"tool_call","tool_name":"search"}`,
		`{"type":"done"}`,
	)

	got := collect(t, events, 3)
	assert.Equal(t, protocol.LogEvent{Level: "info", Message: "one"}, got[0])
	assert.Equal(t, protocol.ToolCallEvent{Name: "search"}, got[1])
	assert.Equal(t, protocol.DoneEvent{}, got[2])
}

func TestManager_DropsMalformedAndUnknown(t *testing.T) {
	ps := newPushServer(t)
	m, events := newTestManager(t, ps)

	require.NoError(t, m.Open())
	waitConnected(t, m)

	ps.push(t,
		"not json at all",
		`{"type":"step","step":1}`,
		`{"type":"done"}`,
	)

	got := collect(t, events, 1)
	assert.Equal(t, protocol.DoneEvent{}, got[0])
}

func TestManager_SendWhileDisconnected(t *testing.T) {
	ps := newPushServer(t)
	m, _ := newTestManager(t, ps)

	err := m.Send(map[string]string{"hello": "world"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestManager_Reconnects(t *testing.T) {
	ps := newPushServer(t)
	m, events := newTestManager(t, ps)

	var states []State
	var stateMu sync.Mutex
	m.OnStateChange(func(s State) {
		stateMu.Lock()
		states = append(states, s)
		stateMu.Unlock()
	})

	require.NoError(t, m.Open())
	waitConnected(t, m)
	require.Equal(t, 1, ps.connCount())

	ps.dropCurrent()

	require.Eventually(t, func() bool { return ps.connCount() == 2 },
		2*time.Second, 5*time.Millisecond)
	waitConnected(t, m)

	// Events from before the disconnect are gone; only new ones arrive.
	ps.push(t, `{"type":"assistant_message","message":"back"}`)
	got := collect(t, events, 1)
	assert.Equal(t, protocol.AssistantMessageEvent{Message: "back"}, got[0])

	stateMu.Lock()
	defer stateMu.Unlock()
	assert.Contains(t, states, Disconnected)
	assert.Contains(t, states, Connected)
}

func TestManager_StateNotificationsInOrder(t *testing.T) {
	ps := newPushServer(t)
	m, _ := newTestManager(t, ps)

	var states []State
	var stateMu sync.Mutex
	m.OnStateChange(func(s State) {
		stateMu.Lock()
		states = append(states, s)
		stateMu.Unlock()
	})

	require.NoError(t, m.Open())
	waitConnected(t, m)
	ps.dropCurrent()
	require.Eventually(t, func() bool { return ps.connCount() == 2 },
		2*time.Second, 5*time.Millisecond)
	waitConnected(t, m)

	// The observer sees every transition in the order it happened, even
	// across the rapid Disconnected->Connecting flip of a reconnect.
	want := []State{Connecting, Connected, Disconnected, Connecting, Connected}
	require.Eventually(t, func() bool {
		stateMu.Lock()
		defer stateMu.Unlock()
		return len(states) >= len(want)
	}, 2*time.Second, 5*time.Millisecond)

	stateMu.Lock()
	defer stateMu.Unlock()
	assert.Equal(t, want, states[:len(want)])
}

func TestManager_CloseCancelsRetry(t *testing.T) {
	// Dial a port nobody listens on so the manager sits in its retry loop.
	m := NewManager("ws://127.0.0.1:1/ws", testOpts, logging.New(nil, "silent"))
	require.NoError(t, m.Open())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Close())
	assert.Equal(t, Disconnected, m.State())

	// Closing twice is fine.
	require.NoError(t, m.Close())
}

func TestManager_SendAfterConnect(t *testing.T) {
	ps := newPushServer(t)
	m, _ := newTestManager(t, ps)

	require.NoError(t, m.Open())
	waitConnected(t, m)

	assert.NoError(t, m.Send(map[string]string{"kind": "noop"}))
}
