package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// LaunchConfig controls how the rod launcher starts Chrome.
type LaunchConfig struct {
	Bin            string
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	HealthInterval time.Duration
}

// maskWebdriver runs before any page script and hides the automation flag.
const maskWebdriver = `(() => Object.defineProperty(navigator, 'webdriver', { get: () => undefined }))()`

const (
	clickPoll   = 100 * time.Millisecond
	clickSettle = 5 * time.Second
)

const fetchScript = `async (url) => {
	const res = await fetch(url, { credentials: 'include', headers: { accept: 'application/json' } });
	return JSON.stringify({ status: res.status, body: await res.text() });
}`

// RodLauncher starts a sandbox-less Chrome with a fixed window and viewport so
// pages render the same way on every run.
func RodLauncher(cfg LaunchConfig) LaunchFunc {
	return func(ctx context.Context) (Browser, error) {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(true).
			Set("window-size", fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight)).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage")
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}

		controlURL, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("start chrome: %w", err)
		}

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("connect to chrome: %w", err)
		}

		rb := &rodBrowser{
			cfg:      cfg,
			browser:  b,
			launcher: l,
			done:     make(chan struct{}),
		}
		go rb.probe()
		return rb, nil
	}
}

type rodBrowser struct {
	cfg      LaunchConfig
	browser  *rod.Browser
	launcher *launcher.Launcher

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func (b *rodBrowser) probe() {
	interval := b.cfg.HealthInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if _, err := b.browser.Version(); err != nil {
				slog.Warn("browser health probe failed", slog.Any("error", err))
				b.markDone()
				return
			}
		}
	}
}

func (b *rodBrowser) markDone() {
	b.doneOnce.Do(func() { close(b.done) })
}

func (b *rodBrowser) Disconnected() <-chan struct{} {
	return b.done
}

func (b *rodBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.markDone()
		b.closeErr = b.browser.Close()
		b.launcher.Kill()
		b.launcher.Cleanup()
	})
	return b.closeErr
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  b.cfg.ViewportWidth,
		Height: b.cfg.ViewportHeight,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if _, err := page.EvalOnNewDocument(maskWebdriver); err != nil {
		slog.Debug("mask webdriver flag", slog.Any("error", err))
	}
	return &rodPage{page: page}, nil
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Click(ctx context.Context, selector string) (bool, error) {
	page := p.page.Context(ctx)
	els, err := page.Elements(selector)
	if err != nil {
		return false, err
	}
	if els.Empty() {
		return false, nil
	}
	before := currentURL(page)

	// Arm the navigation wait before clicking so a fast load is not missed.
	navCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	waitNav := p.page.Context(navCtx).WaitNavigation(proto.PageLifecycleEventNameLoad)

	if err := els.First().Click(proto.InputMouseButtonLeft, 1); err != nil {
		return true, fmt.Errorf("click %q: %w", selector, err)
	}

	loaded := make(chan struct{})
	go func() {
		waitNav()
		close(loaded)
	}()
	if !settleAfterClick(ctx, loaded, before, func() string { return currentURL(page) }, clickPoll, clickSettle) {
		slog.Debug("click did not move the page", slog.String("selector", selector), slog.String("url", before))
	}
	return true, nil
}

func currentURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// settleAfterClick waits until the page finishes a navigation or its URL
// moves away from before, which covers client-side route changes that fire
// no load event. It reports false when neither happens within limit.
func settleAfterClick(ctx context.Context, loaded <-chan struct{}, before string, current func() string, interval, limit time.Duration) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timer := time.NewTimer(limit)
	defer timer.Stop()

	for {
		select {
		case <-loaded:
			return true
		case <-ticker.C:
			if now := current(); now != "" && now != before {
				return true
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Fetch(ctx context.Context, url string) (Response, error) {
	res, err := p.page.Context(ctx).Eval(fetchScript, url)
	if err != nil {
		return Response{}, err
	}
	var payload struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &payload); err != nil {
		return Response{}, fmt.Errorf("decode fetch result: %w", err)
	}
	return Response{Status: payload.Status, Body: []byte(payload.Body)}, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
