// Package apiclient is a Go client for the storefront API that retries
// rate-limited and unreachable requests with exponential backoff.
package apiclient

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

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultBackoffBase = time.Second
	defaultMaxRetries  = 3
	maxErrorBodyBytes  = 64 << 10

	// IdempotencyHeader lets the server replay a write whose response was lost.
	IdempotencyHeader = "Idempotency-Key"
)

type idempotencyKeyCtx struct{}

// WithIdempotencyKey pins the Idempotency-Key used by writes made with ctx, so
// a caller can resume the same logical request after a restart. Without it,
// every Do call mints its own key and reuses it across that call's retries.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func idempotencyKeyFor(ctx context.Context, method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ""
	}
	if key, ok := ctx.Value(idempotencyKeyCtx{}).(string); ok && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key)
	}
	return uuid.NewString()
}

// Client calls the storefront API on behalf of a Session.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	session     *Session
	backoffBase time.Duration
	maxRetries  uint64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBackoff overrides the first backoff delay and the retry cap. Delays double
// after each attempt.
func WithBackoff(base time.Duration, maxRetries uint64) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		c.maxRetries = maxRetries
	}
}

// New builds a client rooted at baseURL, e.g. https://api.srrfarms.in.
func New(baseURL string, session *Session, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if session == nil {
		session = &Session{}
	}
	c := &Client{
		baseURL:     strings.TrimRight(parsed.String(), "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		session:     session,
		backoffBase: defaultBackoffBase,
		maxRetries:  defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

type successEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

// Do sends a JSON request and decodes the data envelope into out. 429 and
// network failures are retried with backoff; every other failure is returned at once.
// Writes carry one Idempotency-Key for all attempts, so a retried checkout is
// answered from the first attempt instead of being placed again.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	idempotencyKey := idempotencyKeyFor(ctx, method)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))

	attempts := 0
	var lastStatus int
	var lastNetErr error

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		resp, err := c.send(ctx, method, path, payload, idempotencyKey)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastNetErr = err
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		lastNetErr = nil
		lastStatus = resp.StatusCode
		if resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
			return retry.RetryableError(errServerBusyAttempt)
		}
		return c.decode(resp, out)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errServerBusyAttempt):
		return &TransientServerError{StatusCode: lastStatus, Attempts: attempts}
	case lastNetErr != nil && errors.Is(err, lastNetErr):
		return &NetworkUnavailableError{Attempts: attempts, Err: lastNetErr}
	default:
		return err
	}
}

var errServerBusyAttempt = errors.New("rate limited")

func (c *Client) send(ctx context.Context, method, path string, payload []byte, idempotencyKey string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

func (c *Client) decode(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes*16))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		var env successEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.session.Clear()
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}
