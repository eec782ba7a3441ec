package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle stage of the managed browser.
type State int

const (
	StateAbsent State = iota
	StateLaunching
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

var (
	// ErrNoBrowser is returned when the launcher yields no browser.
	ErrNoBrowser = errors.New("browser: launcher returned no browser")
	// ErrReleased is returned to callers whose launch was overtaken by
	// ReleaseAll.
	ErrReleased = errors.New("browser: session released during launch")
)

// Manager owns the single shared browser. It launches lazily, reuses the
// browser while it stays connected and relaunches after a disconnect.
// Concurrent Acquire calls during a launch share that launch.
type Manager struct {
	launch   LaunchFunc
	observer Observer

	mu      sync.Mutex
	state   State
	browser Browser

	// released counts ReleaseAll calls so a launch that finishes after a
	// release is discarded.
	released uint64

	group singleflight.Group
}

// NewManager builds a manager that starts browsers with launch.
func NewManager(launch LaunchFunc, observer Observer) *Manager {
	return &Manager{
		launch:   launch,
		observer: observer,
	}
}

// State reports the current lifecycle stage.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Acquire returns the live browser, launching one if needed.
func (m *Manager) Acquire(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	if m.state == StateReady {
		if connected(m.browser) {
			b := m.browser
			m.mu.Unlock()
			return b, nil
		}
		slog.Warn("browser disconnected, relaunching")
		m.dropLocked(m.browser)
	}
	if m.state == StateAbsent {
		m.state = StateLaunching
	}
	m.mu.Unlock()

	ch := m.group.DoChan("launch", func() (any, error) {
		return m.launchOnce(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Browser), nil
	}
}

func (m *Manager) launchOnce(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	if m.state == StateReady && connected(m.browser) {
		b := m.browser
		m.mu.Unlock()
		return b, nil
	}
	m.state = StateLaunching
	generation := m.released
	m.mu.Unlock()

	b, err := m.launch(ctx)
	if err == nil && b == nil {
		err = ErrNoBrowser
	}
	if m.observer != nil {
		m.observer.ObserveLaunch(err)
	}
	if err != nil {
		m.mu.Lock()
		m.state = StateAbsent
		m.mu.Unlock()
		slog.Error("browser launch failed", slog.Any("error", err))
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	m.mu.Lock()
	if m.released != generation {
		m.mu.Unlock()
		slog.Info("browser released during launch, closing it")
		if err := b.Close(); err != nil {
			slog.Debug("close released browser", slog.Any("error", err))
		}
		return nil, ErrReleased
	}
	m.browser = b
	m.state = StateReady
	m.mu.Unlock()
	slog.Info("browser launched")

	go m.watch(b)
	return b, nil
}

func (m *Manager) watch(b Browser) {
	<-b.Disconnected()

	m.mu.Lock()
	current := m.browser == b
	if current {
		m.dropLocked(b)
	}
	m.mu.Unlock()

	if current {
		slog.Warn("browser disconnected")
	}
}

// dropLocked forgets b and closes it in the background. m.mu must be held.
func (m *Manager) dropLocked(b Browser) {
	m.browser = nil
	m.state = StateAbsent
	if m.observer != nil {
		m.observer.ObserveDisconnect()
	}
	go func() {
		if err := b.Close(); err != nil {
			slog.Debug("close stale browser", slog.Any("error", err))
		}
	}()
}

// WithPage opens a page for the duration of fn and closes it on every exit
// path, panics included.
func (m *Manager) WithPage(ctx context.Context, fn func(Page) error) error {
	b, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close page", slog.Any("error", err))
		}
	}()
	return fn(page)
}

// ReleaseAll closes the browser if one is live and resets the manager. A
// launch still in flight is closed when it completes. It is safe to call
// repeatedly.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	b := m.browser
	m.browser = nil
	m.state = StateAbsent
	m.released++
	m.mu.Unlock()

	if b == nil {
		return
	}
	if err := b.Close(); err != nil {
		slog.Warn("release browser", slog.Any("error", err))
		return
	}
	slog.Info("browser released")
}
