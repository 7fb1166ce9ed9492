// Package remote implements the persistence interfaces against the fittrack HTTP API.
package remote

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
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/domain"
)

// Client talks to a fittrack API server. Failures are surfaced as domain errors and never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient constructs a Client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, typically after Login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates an account and adopts the returned token.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (api.SessionResponse, error) {
	var session api.SessionResponse
	if err := c.do(ctx, request{op: "register", method: http.MethodPost, path: "/v1/users", body: req}, &session); err != nil {
		return api.SessionResponse{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Login checks credentials and adopts the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (api.SessionResponse, error) {
	var session api.SessionResponse
	body := api.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, request{op: "login", method: http.MethodPost, path: "/v1/login", body: body}, &session); err != nil {
		return api.SessionResponse{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

type request struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	resource string
	id       string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return mapStatus(r, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// mapStatus converts an error response into the domain error taxonomy.
func mapStatus(r request, resp *http.Response) error {
	var body api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Detail == "" {
		body.Detail = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if body.Type == "validation_failed" {
			violations := body.Violations
			if len(violations) == 0 {
				violations = []string{body.Detail}
			}
			return &domain.ValidationError{Violations: violations}
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.AuthenticationError{Reason: body.Detail}
	case http.StatusNotFound:
		if r.resource != "" {
			return &domain.NotFoundError{Resource: r.resource, ID: r.id}
		}
	case http.StatusConflict:
		return fmt.Errorf("%s: %s: %w", r.op, body.Detail, domain.ErrConflict)
	}

	var cause error
	if body.Detail != "" {
		cause = errors.New(body.Detail)
	}
	return &domain.TransportError{Op: r.op, StatusCode: resp.StatusCode, Err: cause}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
