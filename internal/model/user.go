package model

import (
	"context"
)

// AuthAPI is the remote authentication surface used by the session store.
// Every authenticated call receives the token explicitly so the session
// store never depends on the transport's own token source.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (AuthToken, error)
	Register(ctx context.Context, reg Registration) (User, error)
	Me(ctx context.Context, token string) (User, error)
	UpdateMe(ctx context.Context, token string, upd ProfileUpdate) (User, error)
	ChangePassword(ctx context.Context, token string, change PasswordChange) error
}

// User represents the authenticated account as returned by the API.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FullName    *string    `json:"full_name"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   *Timestamp `json:"updated_at"`
}

// DisplayName returns the full name when present, otherwise the username.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthToken is the login response.
type AuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Registration is the account creation request body.
type Registration struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// ProfileUpdate carries a partial profile change. Nil fields are not sent.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// PasswordChange is the change-password request body.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
