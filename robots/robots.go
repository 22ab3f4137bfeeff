// Package robots answers "may I fetch this URL" from per-host robots.txt
// rules, caching one decision per host for the lifetime of the crawl.
//
// Missing or broken robots.txt (4xx, 5xx, network error) defaults to
// allow-all for that host; 5xx and network failures are logged so the
// permissive fallback stays auditable.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Config configures the policy.
type Config struct {
	// UserAgent is matched against robots.txt user-agent groups.
	UserAgent string
	// Enabled toggles robots checking. False short-circuits to allow-all.
	Enabled bool
	// Client is the HTTP client for robots.txt fetches. Default: 10s timeout.
	Client *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Policy is a per-host robots.txt cache. Safe for concurrent use.
type Policy struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group // nil entry = allow-all for that host
}

// New creates a Policy.
func New(cfg Config) *Policy {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		cfg:    cfg,
		client: client,
		logger: logger,
		groups: make(map[string]*robotstxt.Group),
	}
}

// CanFetch reports whether rawURL may be fetched under the host's
// robots.txt rules. The first sight of a host fetches and caches its
// rules; later calls for the same host are answered from the cache.
func (p *Policy) CanFetch(ctx context.Context, rawURL string) bool {
	if !p.cfg.Enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	group := p.groupFor(ctx, u)
	if group == nil {
		return true
	}
	return group.Test(u.RequestURI())
}

func (p *Policy) groupFor(ctx context.Context, u *url.URL) *robotstxt.Group {
	p.mu.Lock()
	group, ok := p.groups[u.Host]
	p.mu.Unlock()
	if ok {
		return group
	}

	group = p.fetchGroup(ctx, u)

	p.mu.Lock()
	p.groups[u.Host] = group
	p.mu.Unlock()
	return group
}

// fetchGroup retrieves and parses robots.txt for the URL's host.
// Returns nil (allow-all) when robots.txt is missing or unreadable.
func (p *Policy) fetchGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("robots fetch failed, defaulting to allow", "host", u.Host, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		p.logger.Warn("robots returned server error, defaulting to allow", "host", u.Host, "status", resp.StatusCode)
		return nil
	}
	if resp.StatusCode >= 400 {
		// No robots.txt: everything is allowed. Not worth a log line.
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		p.logger.Warn("robots read failed, defaulting to allow", "host", u.Host, "error", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		p.logger.Warn("robots parse failed, defaulting to allow", "host", u.Host, "error", err)
		return nil
	}
	return data.FindGroup(p.cfg.UserAgent)
}
