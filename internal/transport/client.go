// Package transport implements the resilient HTTP client every backend call
// goes through. It injects the bearer token, sanitizes non-compliant response
// bodies, normalizes network failures into typed errors, and funnels every
// 401 into a single token invalidation hook.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/leiithegreyt/driverlog/internal/domain"
)

// DefaultTimeout is the fixed connect/read/write budget for one request.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the bearer token attached to outgoing requests and is
// told when the server rejects it. It is defined here, in the consumer
// package; session.Manager is the production implementation.
type TokenSource interface {
	// Token returns the current token and whether one exists. Requests
	// without a token proceed unauthenticated (used only for login).
	Token() (string, bool)

	// Invalidate is called for every 401 response. Implementations must be
	// idempotent: concurrent 401s may call it more than once per event.
	Invalidate()
}

// Client is the resilient HTTP client. All methods are safe for concurrent
// use; the client holds no per-request state.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource attaches the token source used for auth-header injection
// and 401 invalidation. Without one the client always sends unauthenticated.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTimeout overrides the fixed request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger for debug-level request tracing.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithHTTPClient replaces the underlying *http.Client. Intended for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a Client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport.New: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport.New: base url %q must be absolute", baseURL)
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// Reply is a received response after sanitization. Body is ready for JSON
// decoding (or empty).
type Reply struct {
	Status int
	Body   []byte
}

// Decode unmarshals the sanitized body into out. Unknown fields are ignored
// and the domain Flex* types absorb loose typing.
func (r *Reply) Decode(out any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("transport: empty response body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

// WithHeader adds a header to a single request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Do sends one request and returns the sanitized reply. A non-nil error is
// always a transport-level failure (*domain.TransportError); HTTP error
// statuses are returned in the Reply for the gateway to interpret.
//
// Any 401 reply invalidates the token source as a side channel before the
// reply is returned; the triggering call still sees its own result.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Reply, error) {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport.Client.Do: encode body: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, payload)
	if err != nil {
		return nil, fmt.Errorf("transport.Client.Do: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		terr := classify(err)
		c.log.Debug("request failed", "method", method, "path", path, "error", terr)
		return nil, terr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	c.log.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		c.tokens.Invalidate()
	}

	return &Reply{Status: resp.StatusCode, Body: Sanitize(raw)}, nil
}

// Sanitize prepares a response body for JSON decoding against a backend that
// sometimes prepends log or debug output. It strips a leading UTF-8 BOM,
// then drops every line before the first line whose trimmed content starts
// with '{' or '['. If no such line exists the body passes through unchanged.
func Sanitize(body []byte) []byte {
	body = bytes.TrimPrefix(body, []byte{0xEF, 0xBB, 0xBF})

	offset := 0
	for offset < len(body) {
		end := bytes.IndexByte(body[offset:], '\n')
		var line []byte
		if end < 0 {
			line = body[offset:]
		} else {
			line = body[offset : offset+end]
		}
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			return body[offset:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return body
}

// classify maps a raw transport failure onto the three error kinds the rest
// of the module distinguishes. Unrecognized failures count as connect
// failures; the original error stays wrapped for diagnostics.
func classify(err error) *domain.TransportError {
	kind := domain.ConnectFailed

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		kind = domain.UnknownHost
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.Timeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = domain.ConnectFailed
	}

	return &domain.TransportError{Kind: kind, Err: err}
}
