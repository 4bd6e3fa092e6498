package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/growthfarm/internal/client/models"
	"github.com/dmitrijs2005/growthfarm/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	RequestIDHeader       = "X-Request-ID"
	defaultRequestTimeout = 12 * time.Second
	maxErrorBody          = 64 << 10
)

// HTTPClient implements Client over the backend's JSON endpoints under
// /api/auth.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	log     logging.Logger
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client (tests use the one
// from httptest.Server).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithTimeout bounds every request. Zero keeps the default (12s).
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger for request tracing. Default: discard.
func WithLogger(l logging.Logger) HTTPOption {
	return func(h *HTTPClient) { h.log = l }
}

// NewHTTPClient returns a client for the API served under baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultRequestTimeout,
		http:    &http.Client{},
		log:     logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Token   string              `json:"token"`
	User    *models.UserProfile `json:"user"`
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

func (c *HTTPClient) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

// Me fetches the profile that belongs to token. The backend answers either
// with the bare profile or wrapped as {"user": {...}}.
func (c *HTTPClient) Me(ctx context.Context, token string) (*models.UserProfile, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *models.UserProfile `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	var p models.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// Logout tells the backend the token is no longer in use.
func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (r *authResponse) result() (*models.AuthResult, error) {
	if r.Token == "" || r.User == nil {
		msg := r.Message
		if msg == "" {
			msg = "response carries no token or profile"
		}
		return nil, &APIError{Status: http.StatusOK, Message: msg, kind: ErrRejected}
	}
	return &models.AuthResult{Token: r.Token, User: *r.User}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "auth api request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "auth api request", "method", method, "path", path, "request_id", reqID,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(resp, token)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func mapStatus(resp *http.Response, token string) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &APIError{Status: resp.StatusCode, Message: errorMessage(b), token: token}

	// 403 is an ownership denial on a valid token; only 401 revokes it.
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.kind = ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		e.kind = ErrForbidden
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		e.kind = ErrUnavailable
	default:
		e.kind = ErrRejected
	}
	return e
}

// errorMessage digs the human message out of the error shapes the backends
// produce: {"detail": "..."}, {"message": "..."} and {"error": {"message": "..."}}.
func errorMessage(b []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return strings.TrimSpace(string(b))
	}

	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) != nil {
		// validation errors arrive as a list; keep the raw JSON
		detail = string(body.Detail)
	}
	for _, s := range []string{detail, body.Message, body.Error.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// IsAuthFailure reports whether err means the credential itself was refused.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// RevokesToken reports whether err refuses token in particular. A refusal
// that says nothing about the token it was sent with counts as one.
func RevokesToken(err error, token string) bool {
	if !IsAuthFailure(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IssuedFor(token)
	}
	return true
}
