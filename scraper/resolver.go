package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"

	"github.com/aluiziolira/go-scrape-listings/browser"
	"github.com/aluiziolira/go-scrape-listings/cache"
)

var (
	complexPathPattern   = regexp.MustCompile(`/complexes/(\d+)`)
	complexScriptPattern = regexp.MustCompile(`complexNo["']?\s*[:=]\s*["']?(\d+)`)
	complexNamePattern   = regexp.MustCompile(`complexName["']?\s*[:=]\s*["']([^"']+)["']`)
)

// resultSelectors are tried in order; the first one matching any element is
// clicked.
var resultSelectors = []string{
	`a.item_link[href*="/complexes/"]`,
	`.item_list a[href*="/complexes/"]`,
	`.search_result a[href*="/complexes/"]`,
	`a[href*="/complexes/"]`,
}

type resolveStrategy struct {
	name string
	try  func(ctx context.Context, page browser.Page, name string) (string, bool, error)
}

// Resolve maps a complex name to its identifier. A miss is not cached.
func (s *Scraper) Resolve(ctx context.Context, name string) (string, bool) {
	id, err := s.ResolveIdentifier(ctx, name)
	if err != nil {
		return "", false
	}
	return id, true
}

// ResolveIdentifier is Resolve with the failure reason.
func (s *Scraper) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrResolutionMiss
	}
	if id, ok := cache.Get[string](s.cache, cache.NamespaceIdentifier, name); ok {
		return id, nil
	}

	var id string
	err := s.withPage(ctx, func(page browser.Page) error {
		if err := s.navigate(ctx, page, s.searchURL(name), "search"); err != nil {
			return err
		}
		for _, strategy := range s.strategies {
			found, ok, err := strategy.try(ctx, page, name)
			if err != nil {
				slog.Debug("resolve strategy failed",
					slog.String("name", name),
					slog.String("strategy", strategy.name),
					slog.Any("error", err),
				)
				continue
			}
			if ok {
				slog.Debug("identifier resolved",
					slog.String("name", name),
					slog.String("strategy", strategy.name),
					slog.String("identifier", found),
				)
				id = found
				return nil
			}
		}
		return ErrResolutionMiss
	})
	if err != nil {
		label := s.recordError(err)
		if errors.Is(err, ErrResolutionMiss) {
			slog.Info("identifier not found", slog.String("name", name))
		} else {
			slog.Warn("resolve failed",
				slog.String("name", name),
				slog.String("category", label),
				slog.Any("error", err),
			)
		}
		return "", fmt.Errorf("resolve %q: %w", name, err)
	}

	s.cache.Set(cache.NamespaceIdentifier, name, id)
	return id, nil
}

func (s *Scraper) resolveFromURL(ctx context.Context, page browser.Page, _ string) (string, bool, error) {
	current, err := page.URL(ctx)
	if err != nil {
		return "", false, err
	}
	return identifierFromURL(current)
}

func (s *Scraper) resolveBySelector(ctx context.Context, page browser.Page, _ string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	for _, selector := range resultSelectors {
		clicked, err := page.Click(ctx, selector)
		if err != nil {
			return "", false, err
		}
		if !clicked {
			continue
		}
		s.Metrics.IncRequest("select")
		current, err := page.URL(ctx)
		if err != nil {
			return "", false, err
		}
		return identifierFromURL(current)
	}
	return "", false, nil
}

func (s *Scraper) resolveFromScripts(ctx context.Context, page browser.Page, name string) (string, bool, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return "", false, err
	}
	return identifierFromScripts(html, name)
}

func identifierFromURL(raw string) (string, bool, error) {
	m := complexPathPattern.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", false, nil
	}
	return m[1], true, nil
}

type scriptCandidate struct {
	id    string
	score float64
}

// identifierFromScripts scans inline scripts for complexNo assignments. When
// the enclosing object also carries a complexName, the candidate whose name is
// closest to the query wins; otherwise the first assignment does.
func identifierFromScripts(html, name string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("parse document: %w", err)
	}

	query := strings.ToLower(strings.Join(strings.Fields(name), " "))
	var best *scriptCandidate
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		for _, m := range complexScriptPattern.FindAllStringSubmatchIndex(text, -1) {
			c := scriptCandidate{id: text[m[2]:m[3]]}
			if found := complexNamePattern.FindStringSubmatch(enclosingObject(text, m[0], m[1])); found != nil && query != "" {
				c.score = matchr.JaroWinkler(query, strings.ToLower(found[1]), false)
			}
			if best == nil || c.score > best.score {
				best = &c
			}
		}
	})
	if best == nil {
		return "", false, nil
	}
	return best.id, true, nil
}

// enclosingObject returns the text between the nearest braces around
// [start, end), bounded to keep the scan local.
func enclosingObject(text string, start, end int) string {
	const reach = 400
	from := max(0, start-reach)
	if i := strings.LastIndex(text[from:start], "{"); i >= 0 {
		from += i
	}
	to := min(len(text), end+reach)
	if i := strings.Index(text[end:to], "}"); i >= 0 {
		to = end + i + 1
	}
	return text[from:to]
}
