// Package pipeline aggregates per-category listing stats into complex
// summaries and batch results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// BatchKey is the fixed cache key of the batch result.
const BatchKey = "all"

// ErrNotResolved is reported in a summary whose name did not resolve.
var ErrNotResolved = errors.New("identifier not found")

// Fetcher resolves names and fetches listing stats.
type Fetcher interface {
	Resolve(ctx context.Context, name string) (string, bool)
	FetchListings(ctx context.Context, id string, category models.TradeCategory, size int) (models.ListingStats, error)
}

// Pipeline composes resolution and listing fetches into summaries. Every
// remote call runs after the previous one finished, separated by the
// configured delays.
type Pipeline struct {
	fetcher       Fetcher
	cache         *cache.Store
	categoryDelay time.Duration
	batchDelay    time.Duration
	now           func() time.Time

	metrics *metrics
}

// NewPipeline builds a pipeline over fetcher sharing store.
func NewPipeline(fetcher Fetcher, store *cache.Store, cfg *config.Config) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		cache:         store,
		categoryDelay: cfg.CategoryDelay,
		batchDelay:    cfg.BatchDelay,
		now:           time.Now,
		metrics:       newMetrics(),
	}
}

func summaryKey(name string, size int) string {
	return strings.TrimSpace(name) + "|" + strconv.Itoa(size)
}

// Summarize returns sale, jeonse and monthly stats for one complex and size
// bracket. It always returns a complete summary; failures are reported through
// OK and Error.
func (p *Pipeline) Summarize(ctx context.Context, name string, size int) (summary models.EntitySummary) {
	key := summaryKey(name, size)
	if cached, ok := cache.Get[models.EntitySummary](p.cache, cache.NamespaceSummary, key); ok {
		return cached
	}

	summary = models.NewEntitySummary(name, size, p.now())
	defer func() {
		if r := recover(); r != nil {
			summary.OK = false
			summary.Error = fmt.Sprintf("summarize: %v", r)
			p.metrics.addFailure("panic")
			slog.Error("summarize panicked", slog.String("name", name), slog.Any("panic", r))
		}
	}()

	id, ok := p.fetcher.Resolve(ctx, name)
	if !ok {
		summary.Error = ErrNotResolved.Error()
		p.metrics.addFailure("unresolved")
		return summary
	}
	summary.Identifier = id

	for i, category := range models.TradeCategories {
		if i > 0 {
			if err := sleep(ctx, p.categoryDelay); err != nil {
				summary.Error = fmt.Sprintf("summarize %s: %v", name, err)
				p.metrics.addFailure("cancelled")
				return summary
			}
		}
		stats, err := p.fetcher.FetchListings(ctx, id, category, size)
		if err != nil {
			slog.Warn("category fetch failed, using zero stats",
				slog.String("name", name),
				slog.String("trade", string(category)),
				slog.Any("error", err),
			)
			p.metrics.addFailure("category")
			stats = models.EmptyStats()
		}
		summary.SetStats(category, stats)
	}
	if err := ctx.Err(); err != nil {
		summary.Error = fmt.Sprintf("summarize %s: %v", name, err)
		p.metrics.addFailure("cancelled")
		return summary
	}

	summary.OK = true
	p.metrics.incrementProcessed()
	p.cache.Set(cache.NamespaceSummary, key, summary)
	return summary
}

// SummarizeAll summarizes every (target, size bracket) pair in configured
// order. The whole result is cached under one key, so it is rebuilt at most
// once per TTL however often it is requested, even when the summaries inside
// it are older than their own TTL.
func (p *Pipeline) SummarizeAll(ctx context.Context, targets []models.TargetEntity) models.BatchResult {
	if cached, ok := cache.Get[models.BatchResult](p.cache, cache.NamespaceBatch, BatchKey); ok {
		return cached
	}

	result := make(models.BatchResult, 0, countPairs(targets))
	interrupted := false
	first := true

outer:
	for _, target := range targets {
		for _, size := range target.SizeBrackets {
			if !first {
				if err := sleep(ctx, p.batchDelay); err != nil {
					interrupted = true
					break outer
				}
			}
			first = false

			summary := p.Summarize(ctx, target.DisplayName, size)
			result = append(result, models.BatchEntry{
				TargetID:      target.ID,
				Region:        target.Region,
				IsOwned:       target.IsOwned,
				EntitySummary: summary,
			})
		}
	}

	if interrupted || ctx.Err() != nil {
		slog.Warn("batch interrupted, result not cached",
			slog.Int("completed", len(result)),
			slog.Int("planned", countPairs(targets)),
		)
		return result
	}

	p.cache.Set(cache.NamespaceBatch, BatchKey, result)
	slog.Info("batch summarized", slog.Int("entries", len(result)))
	return result
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func countPairs(targets []models.TargetEntity) int {
	n := 0
	for _, t := range targets {
		n += len(t.SizeBrackets)
	}
	return n
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

type metrics struct {
	mu        sync.Mutex
	processed int64
	failures  map[string]int
}

func newMetrics() *metrics {
	return &metrics{
		failures: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addFailure(kind string) {
	m.mu.Lock()
	m.failures[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyFailures := make(map[string]int, len(m.failures))
	for k, v := range m.failures {
		copyFailures[k] = v
	}

	return map[string]interface{}{
		"summarized": m.processed,
		"failures":   copyFailures,
	}
}
