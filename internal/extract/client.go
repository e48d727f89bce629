package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	UserAgent         string
}

// DefaultClientOptions returns polite defaults for public APIs.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             1,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		UserAgent:         "oncofreq",
	}
}

// Client is a rate limited JSON HTTP client that retries transient failures.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       ClientOptions
	logger     *zap.Logger
}

// NewClient creates a client. A non-positive rate disables limiting.
func NewClient(opts ClientOptions) *Client {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, opts.Burst),
		opts:       opts,
		logger:     zap.NewNop(),
	}
}

// SetLogger sets the logger for retry messages.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// GetJSON fetches url and parses the JSON response.
func (c *Client) GetJSON(ctx context.Context, url string) (*gabs.Container, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// PostJSON posts body encoded as JSON and parses the JSON response.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*gabs.Container, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, data)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*gabs.Container, error) {
	var (
		result    *gabs.Container
		permanent error
		attempt   int
	)

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			permanent = err
			return nil
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			permanent = err
			return nil
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				permanent = ctx.Err()
				return nil
			}
			c.logger.Debug("request failed, retrying", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			se := &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			if retryable(resp.StatusCode) {
				c.logger.Debug("transient status, retrying", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
				return se
			}
			permanent = se
			return nil
		}

		parsed, err := gabs.ParseJSON(data)
		if err != nil {
			permanent = fmt.Errorf("parse response from %s: %w", url, err)
			return nil
		}
		result = parsed
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	if c.opts.InitialBackoff > 0 {
		eb.InitialInterval = c.opts.InitialBackoff
	}
	retries := c.opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	if permanent != nil {
		return nil, permanent
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
