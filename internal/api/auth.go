package api

import (
	"context"
	"net/http"

	"github.com/dtroode/catalog-client/internal/model"
)

func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.AuthToken, error) {
	var out model.AuthToken
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: creds}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	var out model.User
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: reg}, &out)
	return out, err
}

// Me fetches the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var out model.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", token: token}, &out)
	return out, err
}

func (c *Client) UpdateMe(ctx context.Context, token string, upd model.ProfileUpdate) (model.User, error) {
	var out model.User
	err := c.do(ctx, request{method: http.MethodPut, path: "/auth/me", body: upd, token: token}, &out)
	return out, err
}

func (c *Client) ChangePassword(ctx context.Context, token string, change model.PasswordChange) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/change-password", body: change, token: token}, nil)
}
