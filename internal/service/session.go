package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/token"
)

// Fallback messages used when the server gives no detail.
const (
	msgLoginFailed          = "Login failed"
	msgRegistrationFailed   = "Registration failed"
	msgGetUserFailed        = "Failed to get user"
	msgUpdateFailed         = "Update failed"
	msgPasswordChangeFailed = "Password change failed"
	msgSessionExpired       = "Session expired, please log in again"
)

// ErrSessionChanged is returned when a logout or another login replaced the
// session while a call was in flight. The outcome of that call is dropped.
var ErrSessionChanged = errors.New("session changed during request")

// Session is the process-wide authentication state. All mutations go through
// its methods; readers take snapshots with State or register with Subscribe.
type Session struct {
	api    model.AuthAPI
	store  model.TokenStore
	logger *logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	state model.SessionState
	// version changes whenever the token is replaced or dropped, so that a
	// call started under an older token does not overwrite newer state.
	version     uint64
	subscribers map[int]func(model.SessionState)
	nextSub     int
}

// NewSession creates the session and restores the persisted token, if any.
// The user is not loaded until RestoreSession.
func NewSession(api model.AuthAPI, store model.TokenStore, logger *logger.Logger) *Session {
	s := &Session{
		api:         api,
		store:       store,
		logger:      logger,
		now:         time.Now,
		subscribers: map[int]func(model.SessionState){},
	}

	raw, err := store.Load()
	switch {
	case errors.Is(err, model.ErrNoToken):
	case err != nil:
		logger.Error("Session service: failed to load persisted token",
			"error", err.Error())
	default:
		s.state.Token = raw
		s.state.TokenExpiresAt = expiry(raw)
	}

	return s
}

func expiry(raw string) time.Time {
	claims, err := token.Inspect(raw)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}

// State returns a snapshot.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state)
}

// Token returns the current bearer token. Session implements model.TokenSource.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// Subscribe registers fn to be called with a snapshot after every change.
// fn runs on the goroutine that made the change and must not block.
func (s *Session) Subscribe(fn func(model.SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers after releasing it.
func (s *Session) update(fn func(st *model.SessionState)) {
	s.updateIf(func(st *model.SessionState) bool {
		fn(st)
		return true
	})
}

// updateIf is update where fn may decline the change by returning false.
func (s *Session) updateIf(fn func(st *model.SessionState) bool) bool {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	st := snapshot(s.state)
	subs := make([]func(model.SessionState), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
	return true
}

func snapshot(st model.SessionState) model.SessionState {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// clear drops every session field, keeps lastError as the only message and
// removes the persisted token.
func (s *Session) clear(lastError string) {
	s.update(func(st *model.SessionState) {
		s.version++
		*st = model.SessionState{LastError: lastError}
	})
	s.dropPersisted()
}

// clearIf is clear limited to the session started at version.
func (s *Session) clearIf(version uint64, lastError string) {
	if !s.apply(version, func(st *model.SessionState) {
		s.version++
		*st = model.SessionState{LastError: lastError}
	}) {
		return
	}
	s.dropPersisted()
}

func (s *Session) dropPersisted() {
	if err := s.store.Clear(); err != nil {
		s.logger.Error("Session service: failed to remove persisted token",
			"error", err.Error())
	}
}

func (s *Session) persist(raw string) {
	if err := s.store.Save(raw); err != nil {
		s.logger.Error("Session service: failed to persist token",
			"error", err.Error())
	}
}

func (s *Session) rejectInput(err *model.ValidationError) error {
	s.update(func(st *model.SessionState) {
		st.LastError = err.Message
	})
	return err
}

func validateCredentials(email, password string) *model.ValidationError {
	if strings.TrimSpace(email) == "" {
		return &model.ValidationError{Field: "email", Message: "Email is required"}
	}
	if password == "" {
		return &model.ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}

func validateRegistration(reg model.Registration) *model.ValidationError {
	if strings.TrimSpace(reg.Email) == "" {
		return &model.ValidationError{Field: "email", Message: "Email is required"}
	}
	if !strings.Contains(reg.Email, "@") {
		return &model.ValidationError{Field: "email", Message: "Email is invalid"}
	}
	if n := len(strings.TrimSpace(reg.Username)); n < 3 || n > 50 {
		return &model.ValidationError{Field: "username", Message: "Username must be between 3 and 50 characters"}
	}
	if len(reg.Password) < model.MinPasswordLength {
		return &model.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", model.MinPasswordLength),
		}
	}
	return nil
}

// Login exchanges credentials for a token, persists it and loads the user.
// On failure the session is left cleared with a single LastError message.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if verr := validateCredentials(email, password); verr != nil {
		return s.rejectInput(verr)
	}

	s.logger.Debug("Session service: logging in",
		"email", email)

	var version uint64
	s.update(func(st *model.SessionState) {
		s.version++
		version = s.version
		st.IsAuthenticating = true
		st.LastError = ""
	})

	tok, err := s.api.Login(ctx, model.Credentials{Email: email, Password: password})
	if err != nil {
		return s.loginFailed(version, email, err)
	}

	user, err := s.api.Me(ctx, tok.AccessToken)
	if err != nil {
		return s.loginFailed(version, email, err)
	}

	if !s.apply(version, func(st *model.SessionState) {
		*st = model.SessionState{
			Token:           tok.AccessToken,
			User:            &user,
			IsAuthenticated: true,
			TokenExpiresAt:  expiry(tok.AccessToken),
		}
		s.persist(tok.AccessToken)
	}) {
		return ErrSessionChanged
	}

	s.logger.Info("Session service: user logged in",
		"user_id", user.ID,
		"username", user.Username)

	return nil
}

// apply runs fn only if no other token change happened since version.
func (s *Session) apply(version uint64, fn func(st *model.SessionState)) bool {
	return s.updateIf(func(st *model.SessionState) bool {
		if s.version != version {
			return false
		}
		fn(st)
		return true
	})
}

func (s *Session) loginFailed(version uint64, email string, err error) error {
	msg := model.ErrorMessage(err, msgLoginFailed)
	s.logger.Info("Session service: login failed",
		"email", email,
		"error", err.Error())

	s.clearIf(version, msg)

	return fmt.Errorf("failed to login: %w", err)
}

// Register creates an account. It never authenticates; the caller logs in
// separately.
func (s *Session) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	if verr := validateRegistration(reg); verr != nil {
		return model.User{}, s.rejectInput(verr)
	}

	s.update(func(st *model.SessionState) {
		st.IsAuthenticating = true
		st.LastError = ""
	})

	user, err := s.api.Register(ctx, reg)
	if err != nil {
		msg := model.ErrorMessage(err, msgRegistrationFailed)
		s.logger.Info("Session service: registration failed",
			"email", reg.Email,
			"error", err.Error())
		s.update(func(st *model.SessionState) {
			st.IsAuthenticating = false
			st.LastError = msg
		})
		return model.User{}, fmt.Errorf("failed to register: %w", err)
	}

	s.update(func(st *model.SessionState) {
		st.IsAuthenticating = false
	})

	s.logger.Info("Session service: user registered",
		"user_id", user.ID,
		"username", user.Username)

	return user, nil
}

// RestoreSession loads the user for a persisted token. It does nothing when
// there is no token or the user is already loaded. Any failure clears the
// session and the persisted token.
func (s *Session) RestoreSession(ctx context.Context) error {
	s.mu.Lock()
	st := s.state
	version := s.version
	s.mu.Unlock()

	if st.Token == "" {
		return nil
	}
	if st.IsAuthenticated && st.User != nil {
		return nil
	}

	if !st.TokenExpiresAt.IsZero() && !s.now().Before(st.TokenExpiresAt) {
		s.logger.Info("Session service: persisted token expired",
			"expired_at", st.TokenExpiresAt)
		s.clear(msgSessionExpired)
		return model.ErrSessionExpired
	}

	s.update(func(st *model.SessionState) {
		st.IsAuthenticating = true
	})

	user, err := s.api.Me(ctx, st.Token)
	if err != nil {
		s.logger.Info("Session service: failed to restore session",
			"error", err.Error())

		s.clearIf(version, model.ErrorMessage(err, msgGetUserFailed))
		return fmt.Errorf("failed to get current user: %w", err)
	}

	if !s.apply(version, func(next *model.SessionState) {
		next.User = &user
		next.IsAuthenticated = true
		next.IsAuthenticating = false
		s.persist(st.Token)
	}) {
		return ErrSessionChanged
	}

	s.logger.Debug("Session service: session restored",
		"user_id", user.ID)

	return nil
}

// UpdateProfile sends a partial profile change and replaces the stored user.
// A rejected token clears the session; any other failure keeps the user.
func (s *Session) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.User, error) {
	raw := s.Token()
	if raw == "" {
		return model.User{}, model.ErrNoToken
	}

	user, err := s.api.UpdateMe(ctx, raw, upd)
	if err != nil {
		s.authenticatedCallFailed(err, msgUpdateFailed)
		return model.User{}, fmt.Errorf("failed to update profile: %w", err)
	}

	s.update(func(st *model.SessionState) {
		if st.Token != raw {
			return
		}
		st.User = &user
		st.LastError = ""
	})

	s.logger.Info("Session service: profile updated",
		"user_id", user.ID)

	return user, nil
}

// ChangePassword changes the password of the logged-in user.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	if len(next) < model.MinPasswordLength {
		return s.rejectInput(&model.ValidationError{
			Field:   "new_password",
			Message: fmt.Sprintf("Password must be at least %d characters", model.MinPasswordLength),
		})
	}

	raw := s.Token()
	if raw == "" {
		return model.ErrNoToken
	}

	err := s.api.ChangePassword(ctx, raw, model.PasswordChange{CurrentPassword: current, NewPassword: next})
	if err != nil {
		s.authenticatedCallFailed(err, msgPasswordChangeFailed)
		return fmt.Errorf("failed to change password: %w", err)
	}

	s.logger.Info("Session service: password changed")

	return nil
}

func (s *Session) authenticatedCallFailed(err error, fallback string) {
	msg := model.ErrorMessage(err, fallback)
	if errors.Is(err, model.ErrUnauthorized) {
		s.logger.Info("Session service: credentials rejected, clearing session",
			"error", err.Error())
		s.clear(msg)
		return
	}

	s.logger.Error("Session service: authenticated call failed",
		"error", err.Error())
	s.update(func(st *model.SessionState) {
		st.LastError = msg
	})
}

// Logout clears the session and the persisted token. It makes no network call.
func (s *Session) Logout() {
	s.clear("")
	s.logger.Info("Session service: user logged out")
}

// ClearError drops the last error message.
func (s *Session) ClearError() {
	s.update(func(st *model.SessionState) {
		st.LastError = ""
	})
}
