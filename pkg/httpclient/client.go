// Package httpclient is a small HTTP client for fetching JSON documents from
// other services, with optional bounded retries.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// MaxBody caps the bytes read from a response body.
const MaxBody = 10 << 20

// Config holds HTTP client configuration. MaxRetries counts attempts after
// the first.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
	UserAgent       string
}

// DefaultConfig retries twice and identifies as the storefront.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 8,
		UserAgent:       "bottle-collection/1.0",
	}
}

// Client issues requests with the configured timeout and retry policy.
type Client struct {
	http *http.Client
	cfg  Config
}

func New(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
				MaxConnsPerHost:     cfg.MaxConnsPerHost,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// Do sends req. Transport errors and 5xx responses other than 501 are
// retried up to MaxRetries times. The last response or error is returned.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.http.Do(req)
		last := attempt >= c.cfg.MaxRetries
		switch {
		case err != nil && (last || !retryable(err)):
			return nil, fmt.Errorf("%s %s: attempt %d: %w", req.Method, req.URL.Redacted(), attempt+1, err)
		case err == nil && (last || !retryableStatus(resp.StatusCode)):
			return resp, nil
		case err == nil:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBody))
			_ = resp.Body.Close()
		}

		t := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Get fetches url and returns the body of a 2xx response. Other statuses are
// translated by ParseResponseError; service names the remote side.
func (c *Client) Get(ctx context.Context, url, service string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", service, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, ParseResponseError(resp, service)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", service, err)
	}
	return body, nil
}

// GetJSON is Get followed by decoding the body into target.
func (c *Client) GetJSON(ctx context.Context, url, service string, target any) error {
	body, err := c.Get(ctx, url, service)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}

// backoff doubles RetryWaitMin per attempt up to RetryWaitMax, then applies
// up to 25% jitter either way.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.cfg.RetryWaitMin << min(attempt, 16)
	if c.cfg.RetryWaitMax > 0 && wait > c.cfg.RetryWaitMax {
		wait = c.cfg.RetryWaitMax
	}
	return jitter(wait)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	quarter := float64(d) / 4
	return d + time.Duration(quarter*(2*rand.Float64()-1)) // #nosec G404 -- jitter only
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code >= 500 && code != http.StatusNotImplemented
}
