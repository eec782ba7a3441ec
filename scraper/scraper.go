package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-listings/browser"
	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// PageSource lends out scoped browser pages.
type PageSource interface {
	WithPage(ctx context.Context, fn func(browser.Page) error) error
}

// Scraper resolves complexes and fetches their listings and metadata through
// borrowed browser pages, caching every successful result.
type Scraper struct {
	cfg     *config.Config
	pages   PageSource
	cache   *cache.Store
	Metrics *Metrics

	strategies []resolveStrategy
}

// NewScraper builds a scraper. A nil metrics disables instrumentation.
func NewScraper(cfg *config.Config, pages PageSource, store *cache.Store, metrics *Metrics) *Scraper {
	s := &Scraper{
		cfg:     cfg,
		pages:   pages,
		cache:   store,
		Metrics: metrics,
	}
	s.strategies = []resolveStrategy{
		{name: "redirect", try: s.resolveFromURL},
		{name: "selector", try: s.resolveBySelector},
		{name: "script", try: s.resolveFromScripts},
	}
	return s
}

// NewCache builds the store shared by the scraper and the aggregation
// pipeline.
func NewCache(cfg *config.Config, observer cache.Observer, opts ...cache.Option) *cache.Store {
	if observer != nil {
		opts = append(opts, cache.WithObserver(observer))
	}
	return cache.New(map[cache.Namespace]time.Duration{
		cache.NamespaceIdentifier: cache.NoExpiry,
		cache.NamespaceListings:   cfg.ListingTTL,
		cache.NamespaceInfo:       cfg.InfoTTL,
		cache.NamespaceSummary:    cfg.ListingTTL,
		cache.NamespaceBatch:      cfg.ListingTTL,
	}, opts...)
}

// SizeWindow returns the area range searched for a size bracket.
func SizeWindow(size, window int) (int, int) {
	return size - window, size + window
}

func (s *Scraper) withPage(ctx context.Context, fn func(browser.Page) error) error {
	entered := false
	err := s.pages.WithPage(ctx, func(page browser.Page) error {
		entered = true
		return fn(page)
	})
	if err != nil && !entered {
		return ErrSessionFault{Err: err}
	}
	return err
}

func (s *Scraper) navigate(ctx context.Context, page browser.Page, target, phase string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	s.Metrics.IncRequest(phase)
	start := time.Now()
	err := page.Navigate(ctx, target)
	s.Metrics.ObserveDuration(phase, time.Since(start))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", target, classifyError(err, 0))
	}
	return nil
}

func (s *Scraper) request(ctx context.Context, page browser.Page, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	s.Metrics.IncRequest("data")
	start := time.Now()
	res, err := page.Fetch(ctx, target)
	s.Metrics.ObserveDuration("data", time.Since(start))
	if err != nil {
		return nil, classifyError(err, 0)
	}
	if res.Status < 200 || res.Status >= 300 {
		if classified := classifyError(nil, res.Status); classified != nil {
			return nil, classified
		}
		return nil, ErrUpstream{Err: fmt.Errorf("http status %d", res.Status)}
	}
	return res.Body, nil
}

// requestWithRetry repeats retryable failures with capped exponential
// backoff.
func (s *Scraper) requestWithRetry(ctx context.Context, page browser.Page, target string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := s.request(ctx, page, target)
		if err == nil {
			return body, nil
		}
		if attempt >= s.cfg.MaxRetries || !retryable(err) {
			return nil, err
		}
		s.Metrics.IncRetries()
		delay := s.backoff(attempt + 1)
		slog.Debug("retrying request",
			slog.String("url", target),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (s *Scraper) recordError(err error) string {
	label := errorTypeLabel(err)
	s.Metrics.IncError(label)
	return label
}

func (s *Scraper) siteURL(path string) string {
	return strings.TrimRight(s.cfg.SiteURL, "/") + path
}

func (s *Scraper) searchURL(name string) string {
	return s.siteURL("/search?sk=" + url.QueryEscape(name))
}

func (s *Scraper) landingURL(id string) string {
	return s.siteURL("/complexes/" + url.PathEscape(id))
}

func (s *Scraper) articlesURL(id string, category models.TradeCategory, size, page int) string {
	areaMin, areaMax := SizeWindow(size, s.cfg.SizeWindow)
	q := url.Values{}
	q.Set("realEstateType", "APT:ABYG:JGC")
	q.Set("tradeType", category.Code())
	q.Set("areaMin", strconv.Itoa(areaMin))
	q.Set("areaMax", strconv.Itoa(areaMax))
	q.Set("priceType", "RETAIL")
	q.Set("order", "rank")
	q.Set("page", strconv.Itoa(page))
	q.Set("complexNo", id)
	return strings.TrimRight(s.cfg.APIURL, "/") + "/api/articles/complex/" + url.PathEscape(id) + "?" + q.Encode()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
