package model

import (
	"time"
)

// MinPasswordLength mirrors the server-side password rule.
const MinPasswordLength = 8

// TokenStore persists the bearer token across process restarts.
type TokenStore interface {
	// Load returns ErrNoToken when nothing is persisted.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// TokenSource supplies the bearer token attached to outgoing requests.
// An empty string means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// SessionState is a snapshot of the session store.
type SessionState struct {
	Token            string
	User             *User
	IsAuthenticating bool
	IsAuthenticated  bool
	LastError        string
	TokenExpiresAt   time.Time
}
