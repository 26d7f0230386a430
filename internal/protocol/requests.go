package protocol

// HistoryMessage is one transcript entry in the role/content form the
// backend expects for send and restore requests.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest submits a user message for processing. History carries the
// full transcript so the backend can rebuild context statelessly. The two
// Notion fields are user configuration passed through unchanged.
type ChatRequest struct {
	Message                 string           `json:"message"`
	SessionID               string           `json:"session_id"`
	History                 []HistoryMessage `json:"history,omitempty"`
	NotionIntegrationSecret string           `json:"notion_integration_secret,omitempty"`
	NotionDatabaseID        string           `json:"notion_database_id,omitempty"`
}

// CancelRequest asks the backend to stop the in-flight turn. Best effort:
// the client unlocks locally without waiting for an acknowledgement.
type CancelRequest struct {
	SessionID string `json:"session_id"`
}

// ResetSessionRequest clears the backend's context for a session.
type ResetSessionRequest struct {
	SessionID string `json:"session_id"`
}

// RestoreSessionRequest rebuilds the backend's context from the client's
// persisted transcript after a conversation switch.
type RestoreSessionRequest struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

// StatusResponse is the generic success/failure shape of request endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse reports backend liveness and the active model provider.
type HealthResponse struct {
	Status        string `json:"status"`
	ModelProvider string `json:"model_provider,omitempty"`
	Connections   int    `json:"connections,omitempty"`
}

// AuthRequest carries login or registration credentials.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Token    string `json:"token,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// NotionTestRequest checks that a Notion integration secret and database
// id are valid and reachable.
type NotionTestRequest struct {
	NotionIntegrationSecret string `json:"notion_integration_secret"`
	NotionDatabaseID        string `json:"notion_database_id"`
}

// NotionTestResponse describes the probed database on success.
type NotionTestResponse struct {
	Success       bool   `json:"success"`
	DatabaseTitle string `json:"database_title,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}
