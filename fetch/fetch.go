// Package fetch performs polite HTTP retrieval: configured User-Agent,
// split connect/read timeouts, bounded retry with exponential backoff on
// transient statuses, and a process-wide minimum delay between requests.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy describes when and how often a request is retried.
// It is a plain value so callers can declare policy without touching the
// fetcher internals.
type RetryPolicy struct {
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// BackoffFactor scales the exponential backoff: the wait before retry
	// n (1-based) is BackoffFactor * 2^(n-1) seconds.
	BackoffFactor float64
	// RetryOn is the set of HTTP status codes that trigger a retry.
	RetryOn map[int]bool
}

// DefaultRetryOn is the transient status set retried by default.
func DefaultRetryOn() map[int]bool {
	return map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}
}

func (r *RetryPolicy) defaults() {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 1
	}
	if r.RetryOn == nil {
		r.RetryOn = DefaultRetryOn()
	}
}

// Config configures the fetcher.
type Config struct {
	// UserAgent sent with every request.
	UserAgent string
	// ConnectTimeout bounds TCP connect + TLS handshake. Default: 10s.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for response headers. Default: 30s.
	ReadTimeout time.Duration
	// Delay is the minimum spacing between the start of two outbound
	// requests, across all hosts. Zero disables rate limiting.
	Delay time.Duration
	// Retry is the retry policy.
	Retry RetryPolicy
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = "sitehound/1.0"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	c.Retry.defaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher issues rate-limited GET requests with retry. Safe for
// concurrent use; the rate limiter is shared across callers.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	var limiter *rate.Limiter
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	return &Fetcher{
		// No Client.Timeout: large bodies (PDF, media) stream to disk and
		// must not be cut off by a whole-request deadline.
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		limiter: limiter,
		cfg:     cfg,
	}
}

// Get retrieves url, following redirects. The response body is left open
// so callers can stream large payloads; callers own closing it.
//
// Statuses in the retry set and network errors are retried up to
// MaxAttempts with exponential backoff. A non-retryable status is
// returned as-is (the caller decides what a 404 means); exhausting
// retries on a network error returns (nil, err).
func (f *Fetcher) Get(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.backoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := f.tryOnce(ctx, url)
		if err != nil {
			lastErr = err
			f.cfg.Logger.Debug("fetch attempt failed", "url", url, "attempt", attempt, "error", err)
			continue
		}
		if f.cfg.Retry.RetryOn[resp.StatusCode] && attempt < f.cfg.Retry.MaxAttempts {
			resp.Body.Close()
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			f.cfg.Logger.Debug("fetch got transient status", "url", url, "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) tryOnce(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	return f.client.Do(req)
}

// backoff sleeps BackoffFactor * 2^(n-1) seconds, honoring ctx.
func (f *Fetcher) backoff(ctx context.Context, n int) error {
	d := time.Duration(f.cfg.Retry.BackoffFactor * float64(uint(1)<<(n-1)) * float64(time.Second))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
