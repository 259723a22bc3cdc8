package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/catalog-client/internal/api"
	"github.com/dtroode/catalog-client/internal/mocks"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/testutil"
	"github.com/dtroode/catalog-client/internal/token"
)

func issue(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	raw, err := token.NewIssuer("test", ttl).Issue(subject)
	require.NoError(t, err)
	return raw
}

func newSessionWith(t *testing.T, persisted string) (*Session, *mocks.AuthAPI, *mocks.TokenStore) {
	t.Helper()
	authAPI := mocks.NewAuthAPI(t)
	store := mocks.NewTokenStore(t)
	if persisted == "" {
		store.On("Load").Return("", model.ErrNoToken).Once()
	} else {
		store.On("Load").Return(persisted, nil).Once()
	}
	return NewSession(authAPI, store, testutil.MakeNoopLogger()), authAPI, store
}

var ann = model.User{ID: 1, Email: "ann@example.com", Username: "ann", IsActive: true}

func TestSession_NewRestoresPersistedToken(t *testing.T) {
	raw := issue(t, "ann", time.Hour)
	s, _, _ := newSessionWith(t, raw)

	st := s.State()
	assert.Equal(t, raw, st.Token)
	assert.Equal(t, raw, s.Token())
	assert.False(t, st.IsAuthenticated)
	assert.WithinDuration(t, time.Now().Add(time.Hour), st.TokenExpiresAt, 5*time.Second)
}

func TestSession_NewLoadFailure(t *testing.T) {
	store := mocks.NewTokenStore(t)
	store.On("Load").Return("", errors.New("permission denied")).Once()

	s := NewSession(mocks.NewAuthAPI(t), store, testutil.MakeNoopLogger())
	assert.Empty(t, s.Token())
}

func TestSession_LoginSuccess(t *testing.T) {
	ctx := context.Background()
	s, authAPI, store := newSessionWith(t, "")
	raw := issue(t, "ann", 30*time.Minute)

	authAPI.On("Login", mock.Anything, model.Credentials{Email: "ann@example.com", Password: "password123"}).
		Return(model.AuthToken{AccessToken: raw, TokenType: "bearer"}, nil).Once()
	authAPI.On("Me", mock.Anything, raw).Return(ann, nil).Once()
	store.On("Save", raw).Return(nil).Once()

	var seen []model.SessionState
	unsubscribe := s.Subscribe(func(st model.SessionState) { seen = append(seen, st) })
	defer unsubscribe()

	require.NoError(t, s.Login(ctx, "ann@example.com", "password123"))

	st := s.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsAuthenticating)
	assert.Equal(t, raw, st.Token)
	require.NotNil(t, st.User)
	assert.Equal(t, "ann", st.User.Username)
	assert.Empty(t, st.LastError)
	assert.False(t, st.TokenExpiresAt.IsZero())

	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsAuthenticating)
	assert.True(t, seen[1].IsAuthenticated)

	// already authenticated: restore makes no call
	require.NoError(t, s.RestoreSession(ctx))
	authAPI.AssertNumberOfCalls(t, "Me", 1)
}

func TestSession_LoginFailure(t *testing.T) {
	tests := []struct {
		name     string
		loginErr error
		meErr    error
		wantMsg  string
	}{
		{
			name:     "server detail",
			loginErr: &api.ServerError{Status: http.StatusUnauthorized, Message: "Incorrect email or password"},
			wantMsg:  "Incorrect email or password",
		},
		{
			name:     "network failure",
			loginErr: &api.NetworkError{Method: http.MethodPost, Path: "/auth/login", Err: errors.New("connection refused")},
			wantMsg:  "Login failed",
		},
		{
			name:    "current user fetch fails",
			meErr:   &api.ServerError{Status: http.StatusUnauthorized, Message: "Could not validate credentials"},
			wantMsg: "Could not validate credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, authAPI, store := newSessionWith(t, "")
			raw := issue(t, "ann", time.Hour)

			if tt.loginErr != nil {
				authAPI.On("Login", mock.Anything, mock.Anything).Return(model.AuthToken{}, tt.loginErr).Once()
			} else {
				authAPI.On("Login", mock.Anything, mock.Anything).Return(model.AuthToken{AccessToken: raw}, nil).Once()
				authAPI.On("Me", mock.Anything, raw).Return(model.User{}, tt.meErr).Once()
			}
			store.On("Clear").Return(nil).Once()

			err := s.Login(context.Background(), "ann@example.com", "password123")
			require.Error(t, err)

			st := s.State()
			assert.Equal(t, tt.wantMsg, st.LastError)
			assert.False(t, st.IsAuthenticated)
			assert.False(t, st.IsAuthenticating)
			assert.Empty(t, st.Token)
			assert.Nil(t, st.User)
			store.AssertNotCalled(t, "Save", mock.Anything)
		})
	}
}

func TestSession_LoginValidation(t *testing.T) {
	s, _, _ := newSessionWith(t, "")

	err := s.Login(context.Background(), "  ", "password123")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "Email is required", s.State().LastError)

	err = s.Login(context.Background(), "ann@example.com", "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "password", ve.Field)

	s.ClearError()
	assert.Empty(t, s.State().LastError)
}

func TestSession_LogoutDuringLoginDropsResult(t *testing.T) {
	s, authAPI, store := newSessionWith(t, "")
	raw := issue(t, "ann", time.Hour)

	authAPI.On("Login", mock.Anything, mock.Anything).Return(model.AuthToken{AccessToken: raw}, nil).Once()
	authAPI.On("Me", mock.Anything, raw).Run(func(mock.Arguments) {
		s.Logout()
	}).Return(ann, nil).Once()
	store.On("Clear").Return(nil).Once()

	err := s.Login(context.Background(), "ann@example.com", "password123")
	require.ErrorIs(t, err, ErrSessionChanged)

	st := s.State()
	assert.False(t, st.IsAuthenticated)
	assert.Empty(t, st.Token)
	store.AssertNotCalled(t, "Save", mock.Anything)
}

func TestSession_RestoreSession(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		s, _, _ := newSessionWith(t, "")
		require.NoError(t, s.RestoreSession(context.Background()))
		assert.False(t, s.State().IsAuthenticated)
	})

	t.Run("valid token", func(t *testing.T) {
		raw := issue(t, "ann", time.Hour)
		s, authAPI, store := newSessionWith(t, raw)
		authAPI.On("Me", mock.Anything, raw).Return(ann, nil).Once()
		store.On("Save", raw).Return(nil).Once()

		require.NoError(t, s.RestoreSession(context.Background()))

		st := s.State()
		assert.True(t, st.IsAuthenticated)
		assert.False(t, st.IsAuthenticating)
		require.NotNil(t, st.User)
		assert.Equal(t, ann.ID, st.User.ID)

		require.NoError(t, s.RestoreSession(context.Background()))
		authAPI.AssertNumberOfCalls(t, "Me", 1)
	})

	t.Run("expired token", func(t *testing.T) {
		raw := issue(t, "ann", -time.Minute)
		s, _, store := newSessionWith(t, raw)
		store.On("Clear").Return(nil).Once()

		err := s.RestoreSession(context.Background())
		require.ErrorIs(t, err, model.ErrSessionExpired)

		st := s.State()
		assert.False(t, st.IsAuthenticated)
		assert.Empty(t, st.Token)
		assert.Nil(t, st.User)
	})

	t.Run("rejected token", func(t *testing.T) {
		raw := "opaque-token"
		s, authAPI, store := newSessionWith(t, raw)
		authAPI.On("Me", mock.Anything, raw).
			Return(model.User{}, &api.ServerError{Status: http.StatusUnauthorized, Message: "Could not validate credentials"}).Once()
		store.On("Clear").Return(nil).Once()

		err := s.RestoreSession(context.Background())
		require.Error(t, err)
		assert.True(t, api.IsUnauthorized(err))

		st := s.State()
		assert.False(t, st.IsAuthenticated)
		assert.False(t, st.IsAuthenticating)
		assert.Empty(t, st.Token)
	})
}

func TestSession_Logout(t *testing.T) {
	raw := issue(t, "ann", time.Hour)
	s, authAPI, store := newSessionWith(t, raw)
	authAPI.On("Me", mock.Anything, raw).Return(ann, nil).Once()
	store.On("Save", raw).Return(nil).Once()
	require.NoError(t, s.RestoreSession(context.Background()))

	store.On("Clear").Return(nil).Once()
	s.Logout()

	assert.Equal(t, model.SessionState{}, s.State())
}

func TestSession_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	raw := issue(t, "ann", time.Hour)

	restored := func(t *testing.T) (*Session, *mocks.AuthAPI, *mocks.TokenStore) {
		s, authAPI, store := newSessionWith(t, raw)
		authAPI.On("Me", mock.Anything, raw).Return(ann, nil).Once()
		store.On("Save", raw).Return(nil).Once()
		require.NoError(t, s.RestoreSession(ctx))
		return s, authAPI, store
	}

	name := "Ann Example"
	upd := model.ProfileUpdate{FullName: &name}

	t.Run("success", func(t *testing.T) {
		s, authAPI, _ := restored(t)
		changed := ann
		changed.FullName = &name
		authAPI.On("UpdateMe", mock.Anything, raw, upd).Return(changed, nil).Once()

		got, err := s.UpdateProfile(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "Ann Example", got.DisplayName())
		assert.Equal(t, "Ann Example", s.State().User.DisplayName())
	})

	t.Run("server error keeps user", func(t *testing.T) {
		s, authAPI, _ := restored(t)
		authAPI.On("UpdateMe", mock.Anything, raw, upd).
			Return(model.User{}, &api.ServerError{Status: http.StatusBadRequest, Message: "Username already taken"}).Once()

		_, err := s.UpdateProfile(ctx, upd)
		require.Error(t, err)

		st := s.State()
		assert.True(t, st.IsAuthenticated)
		assert.Equal(t, "ann", st.User.Username)
		assert.Equal(t, "Username already taken", st.LastError)
	})

	t.Run("network error uses fallback", func(t *testing.T) {
		s, authAPI, _ := restored(t)
		authAPI.On("UpdateMe", mock.Anything, raw, upd).Return(model.User{}, errors.New("timeout")).Once()

		_, err := s.UpdateProfile(ctx, upd)
		require.Error(t, err)
		assert.Equal(t, "Update failed", s.State().LastError)
	})

	t.Run("rejected credentials clear session", func(t *testing.T) {
		s, authAPI, store := restored(t)
		authAPI.On("UpdateMe", mock.Anything, raw, upd).
			Return(model.User{}, &api.ServerError{Status: http.StatusUnauthorized, Message: "Could not validate credentials"}).Once()
		store.On("Clear").Return(nil).Once()

		_, err := s.UpdateProfile(ctx, upd)
		require.ErrorIs(t, err, model.ErrUnauthorized)
		assert.False(t, s.State().IsAuthenticated)
		assert.Empty(t, s.Token())
	})

	t.Run("no token", func(t *testing.T) {
		s, _, _ := newSessionWith(t, "")
		_, err := s.UpdateProfile(ctx, upd)
		require.ErrorIs(t, err, model.ErrNoToken)
	})
}

func TestSession_ChangePassword(t *testing.T) {
	raw := issue(t, "ann", time.Hour)
	s, authAPI, _ := newSessionWith(t, raw)

	err := s.ChangePassword(context.Background(), "password123", "short")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)

	change := model.PasswordChange{CurrentPassword: "password123", NewPassword: "longer-password"}
	authAPI.On("ChangePassword", mock.Anything, raw, change).Return(nil).Once()
	require.NoError(t, s.ChangePassword(context.Background(), "password123", "longer-password"))
}

func TestSession_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		s, _, _ := newSessionWith(t, "")
		tests := []struct {
			reg   model.Registration
			field string
		}{
			{reg: model.Registration{Username: "ann", Password: "password123"}, field: "email"},
			{reg: model.Registration{Email: "nope", Username: "ann", Password: "password123"}, field: "email"},
			{reg: model.Registration{Email: "a@b.c", Username: "an", Password: "password123"}, field: "username"},
			{reg: model.Registration{Email: "a@b.c", Username: "ann", Password: "short"}, field: "password"},
		}
		for _, tt := range tests {
			_, err := s.Register(ctx, tt.reg)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		}
	})

	reg := model.Registration{Email: "ann@example.com", Username: "ann", Password: "password123"}

	t.Run("success does not authenticate", func(t *testing.T) {
		s, authAPI, _ := newSessionWith(t, "")
		authAPI.On("Register", mock.Anything, reg).Return(ann, nil).Once()

		u, err := s.Register(ctx, reg)
		require.NoError(t, err)
		assert.Equal(t, ann.ID, u.ID)

		st := s.State()
		assert.False(t, st.IsAuthenticated)
		assert.False(t, st.IsAuthenticating)
		assert.Empty(t, st.Token)
	})

	t.Run("failure", func(t *testing.T) {
		s, authAPI, _ := newSessionWith(t, "")
		authAPI.On("Register", mock.Anything, reg).Return(model.User{}, errors.New("boom")).Once()

		_, err := s.Register(ctx, reg)
		require.Error(t, err)
		assert.Equal(t, "Registration failed", s.State().LastError)
	})
}

func TestSession_SubscribeUnsubscribe(t *testing.T) {
	s, _, _ := newSessionWith(t, "")

	var mu sync.Mutex
	calls := 0
	unsubscribe := s.Subscribe(func(model.SessionState) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.ClearError()
	unsubscribe()
	s.ClearError()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}
