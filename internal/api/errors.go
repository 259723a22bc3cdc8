package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dtroode/catalog-client/internal/model"
)

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a response with status 400 or above. Message holds the
// server-provided detail and may be empty.
type ServerError struct {
	Status  int
	Message string
}

func newServerError(status int, body []byte) *ServerError {
	return &ServerError{Status: status, Message: detailMessage(body)}
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("server responded with status %d: %s", e.Status, msg)
}

// UserMessage returns the server detail verbatim.
func (e *ServerError) UserMessage() string {
	return e.Message
}

// Is lets a 404 match model.ErrNotFound and a 401 match model.ErrUnauthorized.
func (e *ServerError) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.Status == http.StatusNotFound
	case model.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// detailMessage extracts the error text from a FastAPI style body: detail is
// either a string or a list of validation errors.
func detailMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return detail.String()
	case detail.IsArray():
		msgs := make([]string, 0, len(detail.Array()))
		for _, item := range detail.Array() {
			msg := item.Get("msg").String()
			if msg == "" {
				continue
			}
			if field := fieldName(item.Get("loc")); field != "" {
				msg = field + ": " + msg
			}
			msgs = append(msgs, msg)
		}
		return strings.Join(msgs, "; ")
	}

	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String {
		return msg.String()
	}
	return ""
}

// fieldName returns the last element of a validation error location, skipping
// the "body"/"query" prefix.
func fieldName(loc gjson.Result) string {
	parts := loc.Array()
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1].String()
}
