// Package browser owns the shared headless browser and hands out short-lived
// pages to fetchers.
package browser

import (
	"context"
)

// Response is the outcome of a request issued from inside a page.
type Response struct {
	Status int
	Body   []byte
}

// Page is one browsing context borrowed from the session.
type Page interface {
	// Navigate loads url and waits for the document to finish loading.
	Navigate(ctx context.Context, url string) error
	// URL reports the page's current location.
	URL(ctx context.Context) (string, error)
	// Click clicks the first element matching selector. It reports false when
	// nothing matches.
	Click(ctx context.Context, selector string) (bool, error)
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// Fetch issues a GET through the page's own network stack so the request
	// carries the session's cookies and headers.
	Fetch(ctx context.Context, url string) (Response, error)
	Close() error
}

// Browser is a live browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Disconnected is closed once the browser is gone.
	Disconnected() <-chan struct{}
	Close() error
}

// LaunchFunc starts a browser.
type LaunchFunc func(ctx context.Context) (Browser, error)

// Observer receives session lifecycle events.
type Observer interface {
	ObserveLaunch(err error)
	ObserveDisconnect()
}

func connected(b Browser) bool {
	select {
	case <-b.Disconnected():
		return false
	default:
		return true
	}
}
