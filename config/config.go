package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LISTINGS_"

// Config holds scraper configuration.
type Config struct {
	SiteURL   string `env:"SITE_URL"`
	APIURL    string `env:"API_URL"`
	UserAgent string `env:"USER_AGENT"`

	BrowserBin     string        `env:"BROWSER_BIN"`
	Headless       bool          `env:"HEADLESS"`
	ViewportWidth  int           `env:"VIEWPORT_WIDTH"`
	ViewportHeight int           `env:"VIEWPORT_HEIGHT"`
	HealthInterval time.Duration `env:"HEALTH_INTERVAL"`

	Timeout       time.Duration `env:"TIMEOUT"`
	LandingPause  time.Duration `env:"LANDING_PAUSE"`
	CategoryDelay time.Duration `env:"CATEGORY_DELAY"`
	BatchDelay    time.Duration `env:"BATCH_DELAY"`

	MaxRetries      int           `env:"MAX_RETRIES"`
	RetryBackoff    time.Duration `env:"RETRY_BACKOFF"`
	RetryBackoffMax time.Duration `env:"RETRY_BACKOFF_MAX"`

	SizeWindow    int `env:"SIZE_WINDOW"`
	ListingPages  int `env:"LISTING_PAGES"`
	SampleSize    int `env:"SAMPLE_SIZE"`
	DedupeMaxSize int `env:"DEDUPE_MAX_SIZE"`

	ListingTTL time.Duration `env:"LISTING_TTL"`
	InfoTTL    time.Duration `env:"INFO_TTL"`

	TargetsFile  string `env:"TARGETS_FILE"`
	ListenAddr   string `env:"LISTEN_ADDR"`
	OutputFile   string `env:"OUTPUT"`
	OutputFormat string `env:"FORMAT"` // csv, json, or dual
	Verbose      bool   `env:"VERBOSE"`
}

// DefaultConfig returns conservative defaults for the listing portal.
func DefaultConfig() *Config {
	return &Config{
		SiteURL:         "https://new.land.naver.com",
		APIURL:          "https://new.land.naver.com",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		Headless:        true,
		ViewportWidth:   1280,
		ViewportHeight:  900,
		HealthInterval:  10 * time.Second,
		Timeout:         30 * time.Second,
		LandingPause:    1500 * time.Millisecond,
		CategoryDelay:   2 * time.Second,
		BatchDelay:      5 * time.Second,
		MaxRetries:      1,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 4 * time.Second,
		SizeWindow:      5,
		ListingPages:    1,
		SampleSize:      10,
		DedupeMaxSize:   4096,
		ListingTTL:      24 * time.Hour,
		InfoTTL:         24 * time.Hour,
		TargetsFile:     "targets.json5",
		ListenAddr:      ":8080",
		OutputFile:      "output/summaries.csv",
		OutputFormat:    "csv",
		Verbose:         false,
	}
}

// Load overlays LISTINGS_* environment variables on the defaults.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom is Load with an explicit environment; a nil map reads the process
// environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := DefaultConfig()
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("site URL", c.SiteURL); err != nil {
		return err
	}
	if err := validateURL("API URL", c.APIURL); err != nil {
		return err
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.LandingPause < 0 || c.CategoryDelay < 0 || c.BatchDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.SizeWindow < 0 {
		return fmt.Errorf("size window cannot be negative")
	}
	if c.ListingPages <= 0 {
		return fmt.Errorf("listing pages must be positive")
	}
	if c.SampleSize < 0 {
		return fmt.Errorf("sample size cannot be negative")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.ListingTTL <= 0 || c.InfoTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
