package config

import "flag"

// BindFlags registers command-line flags on fs that write into cfg. Each
// flag defaults to the value already in cfg, so flags override the
// environment, which overrides the built-in defaults.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.SiteURL, "site-url", cfg.SiteURL, "Listing portal base URL")
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Listing portal data API base URL")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "Browser user agent")
	fs.StringVar(&cfg.BrowserBin, "browser-bin", cfg.BrowserBin, "Chromium binary (downloaded when empty)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser headless")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Upper bound of each navigation and data request")
	fs.DurationVar(&cfg.CategoryDelay, "category-delay", cfg.CategoryDelay, "Pause between trade categories of one summary")
	fs.DurationVar(&cfg.BatchDelay, "batch-delay", cfg.BatchDelay, "Pause between summaries of a batch")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retry attempts per data request")
	fs.IntVar(&cfg.ListingPages, "listing-pages", cfg.ListingPages, "Maximum article pages per listing fetch")
	fs.IntVar(&cfg.SampleSize, "sample-size", cfg.SampleSize, "Listing records kept in each stats sample")
	fs.DurationVar(&cfg.ListingTTL, "listing-ttl", cfg.ListingTTL, "Listing, summary and batch cache TTL")
	fs.StringVar(&cfg.TargetsFile, "targets", cfg.TargetsFile, "Targets file (JSON5)")
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
}
