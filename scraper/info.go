package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/browser"
	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

var (
	nameSelectors    = []string{"#complexTitle", ".complex_title", ".complex_name", "h1"}
	addressSelectors = []string{".complex_address", ".address", "[class*=address]"}
	unitSelectors    = []string{".complex_feature", ".complex_summary", ".detail_info"}
)

// Info returns the descriptive metadata of a complex. Failures are logged and
// reported as empty metadata.
func (s *Scraper) Info(ctx context.Context, id string) models.EntityInfo {
	info, err := s.FetchInfo(ctx, id)
	if err != nil {
		return models.EntityInfo{}
	}
	return info
}

// FetchInfo is Info with the failure reason. Only successful results are
// cached.
func (s *Scraper) FetchInfo(ctx context.Context, id string) (models.EntityInfo, error) {
	if info, ok := cache.Get[models.EntityInfo](s.cache, cache.NamespaceInfo, id); ok {
		return info, nil
	}

	var info models.EntityInfo
	err := s.withPage(ctx, func(page browser.Page) error {
		if err := s.navigate(ctx, page, s.landingURL(id), "info"); err != nil {
			return err
		}
		htmlCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		html, err := page.HTML(htmlCtx)
		if err != nil {
			return classifyError(err, 0)
		}
		info, err = extractInfo(html)
		return err
	})
	if err != nil {
		label := s.recordError(err)
		slog.Warn("info fetch failed",
			slog.String("identifier", id),
			slog.String("category", label),
			slog.Any("error", err),
		)
		return models.EntityInfo{}, fmt.Errorf("fetch info for %s: %w", id, err)
	}

	s.cache.Set(cache.NamespaceInfo, id, info)
	return info, nil
}

func extractInfo(html string) (models.EntityInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.EntityInfo{}, ErrUpstream{Err: fmt.Errorf("parse document: %w", err)}
	}

	info := models.EntityInfo{
		Name:    firstText(doc, nameSelectors),
		Address: firstText(doc, addressSelectors),
	}
	if info.Name == "" {
		return models.EntityInfo{}, ErrUpstream{Err: fmt.Errorf("complex page has no title")}
	}

	for _, selector := range unitSelectors {
		if n := parser.ParseUnitCount(doc.Find(selector).Text()); n > 0 {
			info.UnitCount = n
			return info, nil
		}
	}
	info.UnitCount = parser.ParseUnitCount(doc.Find("body").Text())
	return info, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		text := strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
		if text != "" {
			return text
		}
	}
	return ""
}
