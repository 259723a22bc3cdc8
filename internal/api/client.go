package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
)

const maxResponseSize = 8 << 20

var (
	_ model.AuthAPI        = (*Client)(nil)
	_ model.ProductAPI     = (*Client)(nil)
	_ model.InteractionAPI = (*Client)(nil)
)

// Options configures the HTTP transport.
type Options struct {
	BaseURL string
	Timeout time.Duration
	TLS     TLSOptions
	// HTTPClient overrides the default client; Timeout and TLS are then
	// ignored.
	HTTPClient *http.Client
}

// Client talks to the catalog API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  model.TokenSource
	logger  *logger.Logger
}

// NewClient creates a client for the API rooted at opts.BaseURL.
func NewClient(opts Options, logger *logger.Logger) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}

		tlsConfig, err := opts.TLS.Config()
		if err != nil {
			return nil, err
		}
		if tlsConfig != nil {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.TLSClientConfig = tlsConfig
			httpClient.Transport = transport
		}
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}, nil
}

// WithTokenSource returns a copy that attaches the source's bearer token to
// every request that does not carry an explicit one.
func (c *Client) WithTokenSource(tokens model.TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// token overrides the token source when set.
	token string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(r.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("API client: request failed",
			"method", r.method,
			"path", r.path,
			"error", err.Error())
		return &NetworkError{Method: r.method, Path: r.path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &NetworkError{Method: r.method, Path: r.path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug("API client: request completed",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		return newServerError(resp.StatusCode, body)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) bearer(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

// Message returns a human-readable message for err, or fallback.
func Message(err error, fallback string) string {
	return model.ErrorMessage(err, fallback)
}
