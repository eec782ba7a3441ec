// Package browsertest provides scriptable in-memory browsers for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aluiziolira/go-scrape-listings/browser"
)

// Site scripts how fake pages behave. Every hook is optional.
type Site struct {
	// Navigate returns the URL the page lands on after loading url. ctx
	// carries the caller's deadline.
	Navigate func(ctx context.Context, url string) (string, error)
	// Clicks maps a selector to the URL the page moves to when it is clicked.
	Clicks map[string]string
	// HTML returns the rendered document for the current URL.
	HTML func(url string) string
	// Fetch answers in-page requests.
	Fetch func(ctx context.Context, url string) (browser.Response, error)
}

// Browser is a fake browser.Browser whose pages follow a Site.
type Browser struct {
	site *Site

	mu    sync.Mutex
	pages []*Page

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewBrowser returns a connected fake browser.
func NewBrowser(site *Site) *Browser {
	if site == nil {
		site = &Site{}
	}
	return &Browser{site: site, done: make(chan struct{})}
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.closed.Load() {
		return nil, errors.New("browsertest: browser closed")
	}
	p := &Page{site: b.site, url: "about:blank"}
	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

func (b *Browser) Disconnected() <-chan struct{} {
	return b.done
}

// Disconnect simulates a crash of the browser process.
func (b *Browser) Disconnect() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Browser) Close() error {
	b.closed.Store(true)
	b.Disconnect()
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	return b.closed.Load()
}

// Pages returns every page opened so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Page, len(b.pages))
	copy(out, b.pages)
	return out
}

// OpenPages counts pages that were not closed.
func (b *Browser) OpenPages() int {
	n := 0
	for _, p := range b.Pages() {
		if !p.Closed() {
			n++
		}
	}
	return n
}

// FetchedURLs returns every URL requested through Fetch across all pages.
func (b *Browser) FetchedURLs() []string {
	var out []string
	for _, p := range b.Pages() {
		out = append(out, p.Fetched()...)
	}
	return out
}

// Page is a fake browser.Page.
type Page struct {
	site *Site

	mu        sync.Mutex
	url       string
	visited   []string
	clicked   []string
	fetched   []string
	htmlCalls int
	closed    bool
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	landed := url
	if p.site.Navigate != nil {
		var err error
		landed, err = p.site.Navigate(ctx, url)
		if err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.visited = append(p.visited, url)
	p.url = landed
	p.mu.Unlock()
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Click(ctx context.Context, selector string) (bool, error) {
	target, ok := p.site.Clicks[selector]
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	if !ok {
		return false, nil
	}
	p.url = target
	return true, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	p.htmlCalls++
	url := p.url
	p.mu.Unlock()
	if p.site.HTML == nil {
		return "<html><body></body></html>", nil
	}
	return p.site.HTML(url), nil
}

func (p *Page) Fetch(ctx context.Context, url string) (browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return browser.Response{}, err
	}
	p.mu.Lock()
	p.fetched = append(p.fetched, url)
	p.mu.Unlock()
	if p.site.Fetch == nil {
		return browser.Response{}, fmt.Errorf("browsertest: no fetch handler for %s", url)
	}
	return p.site.Fetch(ctx, url)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether the page was closed.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Visited returns the URLs passed to Navigate.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Clicked returns the selectors passed to Click.
func (p *Page) Clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicked...)
}

// Fetched returns the URLs passed to Fetch.
func (p *Page) Fetched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fetched...)
}

// HTMLCalls counts HTML reads.
func (p *Page) HTMLCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.htmlCalls
}

// Launcher counts launches and hands out browsers for the same Site.
type Launcher struct {
	Site *Site
	// Gate, when set, blocks every launch until it is closed.
	Gate chan struct{}
	// Err fails every launch.
	Err error

	launches atomic.Int64
	mu       sync.Mutex
	browsers []*Browser
}

// Launch implements browser.LaunchFunc.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	l.launches.Add(1)
	if l.Gate != nil {
		<-l.Gate
	}
	if l.Err != nil {
		return nil, l.Err
	}
	b := NewBrowser(l.Site)
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

// Launches counts Launch calls.
func (l *Launcher) Launches() int {
	return int(l.launches.Load())
}

// Last returns the most recently launched browser, or nil.
func (l *Launcher) Last() *Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.browsers) == 0 {
		return nil
	}
	return l.browsers[len(l.browsers)-1]
}
