// Package app wires the browser session, cache, scraper and pipeline into
// one process-wide unit shared by the binaries.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-listings/api"
	"github.com/aluiziolira/go-scrape-listings/browser"
	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/scraper"
)

// App owns the browser session and everything built on it.
type App struct {
	Config   *config.Config
	Metrics  *scraper.Metrics
	Browser  *browser.Manager
	Cache    *cache.Store
	Scraper  *scraper.Scraper
	Pipeline *pipeline.Pipeline
	Targets  []models.TargetEntity
}

// New loads the targets file and assembles the components. A nil launch uses
// the go-rod launcher configured from cfg.
func New(cfg *config.Config, launch browser.LaunchFunc) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	targets, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}
	if launch == nil {
		launch = browser.RodLauncher(browser.LaunchConfig{
			Bin:            cfg.BrowserBin,
			Headless:       cfg.Headless,
			UserAgent:      cfg.UserAgent,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
			HealthInterval: cfg.HealthInterval,
		})
	}

	metrics := scraper.NewMetrics()
	manager := browser.NewManager(launch, metrics)
	store := scraper.NewCache(cfg, metrics)
	s := scraper.NewScraper(cfg, manager, store, metrics)

	return &App{
		Config:   cfg,
		Metrics:  metrics,
		Browser:  manager,
		Cache:    store,
		Scraper:  s,
		Pipeline: pipeline.NewPipeline(s, store, cfg),
		Targets:  targets,
	}, nil
}

// MetricsHandler serves the scraper registry.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})
}

// Server returns the HTTP API over this app.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Scraper, a.Pipeline, a.Targets,
		api.WithMetricsHandler(a.MetricsHandler()),
		api.WithBrowserState(func() string { return a.Browser.State().String() }),
	)
}

// Close tears down the browser session. It is safe to call more than once.
func (a *App) Close() {
	a.Browser.ReleaseAll()
}

// NewLogger builds the process logger: text on a terminal, JSON otherwise.
func NewLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
