package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
)

type recordedRequest struct {
	Path  string
	Token string
	Body  map[string]any
}

// newTestGateway spins up a backend stub that records requests and replies
// with the handler's response.
func newTestGateway(t *testing.T, handler http.HandlerFunc, token string) (*Gateway, *[]recordedRequest) {
	t.Helper()
	var recorded []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Path: r.URL.Path, Token: r.URL.Query().Get("token")}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		recorded = append(recorded, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	gw, err := NewGateway(srv.URL, func() string { return token }, logging.New(nil, "silent"))
	require.NoError(t, err)
	return gw, &recorded
}

func respondJSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
}

func TestSendMessage_Success(t *testing.T) {
	gw, recorded := newTestGateway(t, respondJSON(protocol.StatusResponse{Success: true}), "tok-1")

	err := gw.SendMessage(context.Background(), protocol.ChatRequest{
		Message:   "hello",
		SessionID: "sess-1",
		History:   []protocol.HistoryMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)

	require.Len(t, *recorded, 1)
	rec := (*recorded)[0]
	assert.Equal(t, "/api/chat", rec.Path)
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, "hello", rec.Body["message"])
	assert.Equal(t, "sess-1", rec.Body["session_id"])
}

func TestSendMessage_HTTPError(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "empty message"})
	}, "")

	err := gw.SendMessage(context.Background(), protocol.ChatRequest{Message: ""})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Equal(t, "empty message", reqErr.Reason)
}

func TestSendMessage_ApplicationFailure(t *testing.T) {
	gw, _ := newTestGateway(t, respondJSON(protocol.StatusResponse{Success: false, Error: "agent busy"}), "")

	err := gw.SendMessage(context.Background(), protocol.ChatRequest{Message: "hi"})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "agent busy", reqErr.Reason)
}

func TestCancelAndReset(t *testing.T) {
	gw, recorded := newTestGateway(t, respondJSON(protocol.StatusResponse{Success: true}), "")

	require.NoError(t, gw.Cancel(context.Background(), "sess-1"))
	require.NoError(t, gw.ResetSession(context.Background(), "sess-1"))

	require.Len(t, *recorded, 2)
	assert.Equal(t, "/api/cancel", (*recorded)[0].Path)
	assert.Equal(t, "/api/reset-session", (*recorded)[1].Path)
	assert.Equal(t, "sess-1", (*recorded)[0].Body["session_id"])
}

func TestRestoreSession_SendsHistory(t *testing.T) {
	gw, recorded := newTestGateway(t, respondJSON(protocol.StatusResponse{Success: true}), "")

	history := []protocol.HistoryMessage{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}
	require.NoError(t, gw.RestoreSession(context.Background(), "sess-1", history))

	rec := (*recorded)[0]
	assert.Equal(t, "/api/restore-session", rec.Path)
	msgs, ok := rec.Body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestHealth(t *testing.T) {
	gw, recorded := newTestGateway(t, respondJSON(protocol.HealthResponse{
		Status: "healthy", ModelProvider: "openai", Connections: 2,
	}), "")

	health, err := gw.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "openai", health.ModelProvider)
	assert.Equal(t, "/health", (*recorded)[0].Path)
}

func TestLogin(t *testing.T) {
	gw, recorded := newTestGateway(t, respondJSON(protocol.AuthResponse{
		Success: true, Token: "jwt-abc", Username: "alice1",
	}), "")

	resp, err := gw.Login(context.Background(), "alice1", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", resp.Token)
	assert.Equal(t, "/api/auth/login", (*recorded)[0].Path)
}

func TestLogin_Rejected(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "bad credentials"})
	}, "")

	_, err := gw.Login(context.Background(), "alice1", "wrong1")

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.Status)
}

func TestRegister_ValidatesLocally(t *testing.T) {
	// No server call should happen for invalid credentials.
	gw, recorded := newTestGateway(t, respondJSON(protocol.AuthResponse{Success: true}), "")

	_, err := gw.Register(context.Background(), "ab", "longenough")
	assert.Error(t, err)

	_, err = gw.Register(context.Background(), "alice_1", "longenough")
	assert.Error(t, err)

	_, err = gw.Register(context.Background(), "alice1", "short")
	assert.Error(t, err)

	assert.Empty(t, *recorded)
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("abc"))
	assert.NoError(t, ValidateUsername("Alice123"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("thisusernameiswaytoolong1"))
	assert.Error(t, ValidateUsername("has space"))
	assert.Error(t, ValidateUsername("has-dash"))
}
