package api

import (
	"context"
	"fmt"

	"github.com/tansuo/paperchat/internal/protocol"
)

// Credential rules enforced client-side before hitting the backend.
const (
	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 6
)

// ValidateUsername checks the username rules: 3-20 characters, letters
// and digits only.
func ValidateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	for _, r := range username {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !isDigit {
			return fmt.Errorf("username may only contain letters and digits")
		}
	}
	return nil
}

// ValidatePassword checks the password rule: at least 6 characters.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// Login authenticates an existing user and returns the issued token.
func (g *Gateway) Login(ctx context.Context, username, password string) (protocol.AuthResponse, error) {
	return g.authCall(ctx, "/api/auth/login", username, password)
}

// Register creates a new account and returns the issued token.
func (g *Gateway) Register(ctx context.Context, username, password string) (protocol.AuthResponse, error) {
	if err := ValidateUsername(username); err != nil {
		return protocol.AuthResponse{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return protocol.AuthResponse{}, err
	}
	return g.authCall(ctx, "/api/auth/register", username, password)
}

func (g *Gateway) authCall(ctx context.Context, path, username, password string) (protocol.AuthResponse, error) {
	req := protocol.AuthRequest{Username: username, Password: password}
	var resp protocol.AuthResponse
	if err := g.postJSON(ctx, path, req, &resp); err != nil {
		return protocol.AuthResponse{}, err
	}
	if !resp.Success {
		return protocol.AuthResponse{}, &RequestError{Reason: nonEmpty(resp.Message, "authentication failed")}
	}
	return resp, nil
}
