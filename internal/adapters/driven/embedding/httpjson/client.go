// Package httpjson is the JSON-over-HTTP transport shared by the remote
// embedding adapters. Rate limited and unavailable responses are retried
// with capped exponential backoff, honouring Retry-After.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Default retry policy.
const (
	DefaultRetries   = 3
	DefaultBaseDelay = 200 * time.Millisecond
	DefaultMaxDelay  = 5 * time.Second
)

// StatusError is a non-200 response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Code, e.Body)
}

// Client posts JSON requests to one provider.
type Client struct {
	provider  string
	http      *http.Client
	header    http.Header
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithBearer sets the Authorization header when token is non-empty.
func WithBearer(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithRetries sets how many times a retryable request is repeated.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// New creates a client. provider prefixes every error message.
func New(provider string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		provider:  provider,
		http:      &http.Client{Timeout: timeout},
		header:    make(http.Header),
		retries:   DefaultRetries,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends in as JSON to url and decodes a 200 response into out.
// Transport failures and 429/5xx responses are retried; when retries run
// out the error wraps domain.ErrEmbeddingUnavailable.
func (c *Client) Post(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, wait, err := c.post(ctx, url, payload)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		if wait < 0 {
			return err
		}
		lastErr = err
		if attempt >= c.retries {
			break
		}

		if wait == 0 {
			wait = c.backoff(attempt)
		}
		logger.Debug("%s: %v, retrying in %s", c.provider, err, wait)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingUnavailable, c.provider, lastErr)
}

// post makes one attempt. wait is negative when the error is final, zero
// for the default backoff, or the server's Retry-After.
func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, -1, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, 0, nil
	}

	statusErr := &StatusError{Provider: c.provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		return nil, -1, statusErr
	}
	return nil, retryAfter(resp.Header.Get("Retry-After")), statusErr
}

// Get issues a single GET and fails on any non-200 status.
func (c *Client) Get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	req.Header = c.header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: c.provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseDelay << attempt
	if d <= 0 || d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Batches splits n items into [start, end) ranges of at most size items.
// A size of zero or less yields a single range.
func Batches(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return [][2]int{{0, n}}
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
