// Package api issues correlated request/response calls to the agent
// backend: chat submission, cancellation, session reset/restore, health,
// authentication, and the Notion connection probe.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
)

// RequestError reports a non-success response to a gateway call. The
// caller rolls the turn state back to idle and surfaces the reason inline.
type RequestError struct {
	Status int
	Reason string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Reason)
	}
	return fmt.Sprintf("request failed (HTTP %d): %s", e.Status, e.Reason)
}

// TokenFunc supplies the auth token attached to each request. May return
// "" when the user is not logged in.
type TokenFunc func() string

// Gateway is the outbound request/response client.
type Gateway struct {
	base   *url.URL
	client *http.Client
	token  TokenFunc
	log    *logging.Logger
}

// NewGateway creates a gateway for the backend at baseURL.
func NewGateway(baseURL string, token TokenFunc, log *logging.Logger) (*Gateway, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Gateway{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
		token:  token,
		log:    log.Sub("api"),
	}, nil
}

// SendMessage submits a user message together with the full history.
func (g *Gateway) SendMessage(ctx context.Context, req protocol.ChatRequest) error {
	var resp protocol.StatusResponse
	if err := g.postJSON(ctx, "/api/chat", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RequestError{Reason: nonEmpty(resp.Error, "message rejected")}
	}
	return nil
}

// Cancel asks the backend to stop the in-flight turn. Best effort: callers
// unlock local state without waiting for the backend to comply.
func (g *Gateway) Cancel(ctx context.Context, sessionID string) error {
	var resp protocol.StatusResponse
	return g.postJSON(ctx, "/api/cancel", protocol.CancelRequest{SessionID: sessionID}, &resp)
}

// ResetSession clears the backend's context for a session.
func (g *Gateway) ResetSession(ctx context.Context, sessionID string) error {
	var resp protocol.StatusResponse
	if err := g.postJSON(ctx, "/api/reset-session", protocol.ResetSessionRequest{SessionID: sessionID}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RequestError{Reason: nonEmpty(resp.Error, "reset rejected")}
	}
	return nil
}

// RestoreSession rebuilds the backend's context from the local transcript.
func (g *Gateway) RestoreSession(ctx context.Context, sessionID string, history []protocol.HistoryMessage) error {
	req := protocol.RestoreSessionRequest{SessionID: sessionID, Messages: history}
	var resp protocol.StatusResponse
	if err := g.postJSON(ctx, "/api/restore-session", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RequestError{Reason: nonEmpty(resp.Error, "restore rejected")}
	}
	return nil
}

// Health queries backend liveness and model info. No session id is sent.
func (g *Gateway) Health(ctx context.Context) (protocol.HealthResponse, error) {
	var resp protocol.HealthResponse
	if err := g.getJSON(ctx, "/health", &resp); err != nil {
		return protocol.HealthResponse{}, err
	}
	return resp, nil
}

// TestNotion probes the configured Notion integration.
func (g *Gateway) TestNotion(ctx context.Context, req protocol.NotionTestRequest) (protocol.NotionTestResponse, error) {
	var resp protocol.NotionTestResponse
	if err := g.postJSON(ctx, "/api/test-notion-connection", req, &resp); err != nil {
		return protocol.NotionTestResponse{}, err
	}
	return resp, nil
}

// errorBody is the failure shape of backend responses: FastAPI-style
// {"detail": ...} for HTTP errors, {"error": ...} for application ones.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (g *Gateway) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *Gateway) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return &RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		json.NewDecoder(resp.Body).Decode(&eb)
		reason := nonEmpty(eb.Detail, eb.Error)
		if reason == "" {
			reason = resp.Status
		}
		return &RequestError{Status: resp.StatusCode, Reason: reason}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Status: resp.StatusCode, Reason: "undecodable response: " + err.Error()}
	}
	return nil
}

// endpoint joins the base URL with a path and attaches the auth token.
func (g *Gateway) endpoint(path string) string {
	u := *g.base
	u.Path = path
	if tok := g.token(); tok != "" {
		q := u.Query()
		q.Set("token", tok)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
