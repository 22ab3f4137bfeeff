// Package config loads and validates the crawler configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimit is the politeness delay between requests.
type RateLimit struct {
	// DelaySeconds is the minimum spacing between requests, in seconds.
	DelaySeconds float64 `yaml:"delay"`
}

// Timeouts holds per-request deadlines, in seconds.
type Timeouts struct {
	ConnectSeconds float64 `yaml:"connect"`
	ReadSeconds    float64 `yaml:"read"`
}

// Retries configures the transient-failure retry policy.
type Retries struct {
	// Total includes the initial attempt.
	Total int `yaml:"total"`
	// BackoffFactor scales the exponential backoff in seconds.
	BackoffFactor float64 `yaml:"backoff_factor"`
}

// OutputDirs names the on-disk artifact directories, keyed by kind.
type OutputDirs struct {
	HTML        string `yaml:"html"`
	Markdown    string `yaml:"md"`
	PDF         string `yaml:"pdf"`
	PDFText     string `yaml:"pdf_text"`
	Video       string `yaml:"video"`
	Transcripts string `yaml:"transcripts"`
	JSON        string `yaml:"json"`
}

// Config is the full crawler configuration.
type Config struct {
	SeedURLs       []string `yaml:"seed_urls"`
	AllowedDomains []string `yaml:"allowed_domains"`

	MaxDepthFAQ     int `yaml:"max_depth_faq"`
	MaxDepthGeneral int `yaml:"max_depth_general"`

	UserAgent     string `yaml:"user_agent"`
	RobotsEnabled *bool  `yaml:"robots_enabled"`

	RateLimit RateLimit `yaml:"rate_limit"`
	Timeouts  Timeouts  `yaml:"timeouts"`
	Retries   Retries   `yaml:"retries"`

	// ExcludedSitemapSections are site section names skipped during the
	// crawl (matched against URL paths, space- and hyphen-insensitively).
	ExcludedSitemapSections []string `yaml:"excluded_sitemap_sections"`

	// ContentTypeAllowlist restricts processing to these media type
	// prefixes. Empty allows every type.
	ContentTypeAllowlist []string `yaml:"content_type_allowlist"`

	// MainContentSelectors are tried in order to locate the main article
	// region of a page.
	MainContentSelectors []string `yaml:"main_content_selectors"`

	// HostAliases maps alternate hostnames onto their canonical form,
	// e.g. "www.site.ex" -> "site.ex".
	HostAliases map[string]string `yaml:"host_aliases"`

	DBPath     string     `yaml:"db_path"`
	OutputDirs OutputDirs `yaml:"output_directories"`
}

// Load reads a YAML config file, applies defaults and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.MaxDepthFAQ <= 0 {
		c.MaxDepthFAQ = 3
	}
	if c.MaxDepthGeneral <= 0 {
		c.MaxDepthGeneral = 2
	}
	if c.UserAgent == "" {
		c.UserAgent = "sitehound/1.0"
	}
	if c.RobotsEnabled == nil {
		t := true
		c.RobotsEnabled = &t
	}
	if c.RateLimit.DelaySeconds <= 0 {
		c.RateLimit.DelaySeconds = 1
	}
	if c.Timeouts.ConnectSeconds <= 0 {
		c.Timeouts.ConnectSeconds = 10
	}
	if c.Timeouts.ReadSeconds <= 0 {
		c.Timeouts.ReadSeconds = 30
	}
	if c.Retries.Total <= 0 {
		c.Retries.Total = 3
	}
	if c.Retries.BackoffFactor <= 0 {
		c.Retries.BackoffFactor = 1
	}
	if len(c.MainContentSelectors) == 0 {
		c.MainContentSelectors = []string{"main", "#main-content", "article"}
	}
	if c.DBPath == "" {
		c.DBPath = "crawl.db"
	}
	d := &c.OutputDirs
	base := "output"
	if d.HTML == "" {
		d.HTML = filepath.Join(base, "html")
	}
	if d.Markdown == "" {
		d.Markdown = filepath.Join(base, "md")
	}
	if d.PDF == "" {
		d.PDF = filepath.Join(base, "pdf")
	}
	if d.PDFText == "" {
		d.PDFText = filepath.Join(base, "pdf_text")
	}
	if d.Video == "" {
		d.Video = filepath.Join(base, "video")
	}
	if d.Transcripts == "" {
		d.Transcripts = filepath.Join(base, "transcripts")
	}
	if d.JSON == "" {
		d.JSON = filepath.Join(base, "json")
	}
}

// Validate checks the parts defaults cannot repair.
func (c *Config) Validate() error {
	if len(c.SeedURLs) == 0 {
		return fmt.Errorf("config: seed_urls must not be empty")
	}
	for _, s := range c.SeedURLs {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return fmt.Errorf("config: seed url %q is not absolute http(s)", s)
		}
	}
	if len(c.AllowedDomains) == 0 {
		return fmt.Errorf("config: allowed_domains must not be empty")
	}
	return nil
}

// Delay returns the politeness delay as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.RateLimit.DelaySeconds * float64(time.Second))
}

// ConnectTimeout returns the connect deadline as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Timeouts.ConnectSeconds * float64(time.Second))
}

// ReadTimeout returns the read deadline as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.ReadSeconds * float64(time.Second))
}

// Robots reports whether robots.txt enforcement is on.
func (c *Config) Robots() bool {
	return c.RobotsEnabled == nil || *c.RobotsEnabled
}
