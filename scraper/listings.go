package scraper

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-listings/browser"
	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

func listingKey(id string, category models.TradeCategory, size int) string {
	return fmt.Sprintf("%s|%s|%d", id, category, size)
}

// Listings returns listing stats for one complex, category and size bracket.
// Failures are logged and reported as zero stats.
func (s *Scraper) Listings(ctx context.Context, id string, category models.TradeCategory, size int) models.ListingStats {
	stats, err := s.FetchListings(ctx, id, category, size)
	if err != nil {
		return models.EmptyStats()
	}
	return stats
}

// FetchListings is Listings with the failure reason. Only successful results
// are cached.
func (s *Scraper) FetchListings(ctx context.Context, id string, category models.TradeCategory, size int) (models.ListingStats, error) {
	if category.Code() == "" {
		return models.EmptyStats(), fmt.Errorf("unknown trade category %q", category)
	}
	key := listingKey(id, category, size)
	if stats, ok := cache.Get[models.ListingStats](s.cache, cache.NamespaceListings, key); ok {
		return stats, nil
	}

	var records []models.ListingRecord
	err := s.withPage(ctx, func(page browser.Page) error {
		var err error
		records, err = s.collectArticles(ctx, page, id, category, size)
		return err
	})
	if err != nil {
		label := s.recordError(err)
		slog.Warn("listing fetch failed",
			slog.String("identifier", id),
			slog.String("trade", string(category)),
			slog.Int("size", size),
			slog.String("category", label),
			slog.Any("error", err),
		)
		return models.EmptyStats(), fmt.Errorf("fetch %s listings for %s: %w", category, id, err)
	}

	s.Metrics.AddRecords(len(records))
	stats := parser.ComputeStats(records, s.cfg.SampleSize)
	s.cache.Set(cache.NamespaceListings, key, stats)
	return stats, nil
}

// collectArticles opens the complex page first so the data requests carry the
// cookies the portal sets there, then pages through the article API.
func (s *Scraper) collectArticles(ctx context.Context, page browser.Page, id string, category models.TradeCategory, size int) ([]models.ListingRecord, error) {
	if err := s.navigate(ctx, page, s.landingURL(id), "landing"); err != nil {
		return nil, err
	}
	if err := sleep(ctx, s.cfg.LandingPause); err != nil {
		return nil, err
	}

	seen, err := lru.New[string, struct{}](s.cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("dedupe set: %w", err)
	}

	records := make([]models.ListingRecord, 0)
	for pageNo := 1; pageNo <= s.cfg.ListingPages; pageNo++ {
		if pageNo > 1 {
			if err := sleep(ctx, s.cfg.LandingPause); err != nil {
				return nil, err
			}
		}
		body, err := s.requestWithRetry(ctx, page, s.articlesURL(id, category, size, pageNo))
		if err != nil {
			return nil, err
		}
		articles, err := parser.DecodeArticlePage(body)
		if err != nil {
			return nil, ErrUpstream{Err: err}
		}
		for i := range articles.ArticleList {
			raw := articles.ArticleList[i]
			if err := parser.ValidateArticle(&raw); err != nil {
				continue
			}
			record := parser.NormalizeArticle(raw)
			if seen.Contains(record.ID) {
				continue
			}
			seen.Add(record.ID, struct{}{})
			records = append(records, record)
		}
		if !articles.IsMoreData {
			break
		}
	}
	return records, nil
}
