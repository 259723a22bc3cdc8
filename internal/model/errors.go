package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoToken is returned when no bearer token is available.
	ErrNoToken = errors.New("no token")
	// ErrUnauthorized is matched by server errors that reject the credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is returned when the stored token is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError is a client-side input error detected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UserMessage returns the message to show to the user.
func (e *ValidationError) UserMessage() string {
	return e.Message
}

// ErrorMessage extracts a human-readable message from err. Errors that carry
// a user-facing message (server details, validation problems) provide it
// through a UserMessage method; anything else falls back to fallback.
func ErrorMessage(err error, fallback string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
