package browser_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-listings/browser"
	"github.com/aluiziolira/go-scrape-listings/browser/browsertest"
)

type countingObserver struct {
	mu          sync.Mutex
	launches    int
	failures    int
	disconnects int
}

func (o *countingObserver) ObserveLaunch(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.launches++
	if err != nil {
		o.failures++
	}
}

func (o *countingObserver) ObserveDisconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnects++
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestAcquireSingleFlightLaunch(t *testing.T) {
	launcher := &browsertest.Launcher{Gate: make(chan struct{})}
	m := browser.NewManager(launcher.Launch, nil)

	const callers = 8
	results := make([]browser.Browser, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Acquire(context.Background())
		}(i)
	}

	waitFor(t, func() bool { return launcher.Launches() == 1 })
	if got := m.State(); got != browser.StateLaunching {
		t.Fatalf("state=%s, want launching", got)
	}
	close(launcher.Gate)
	wg.Wait()

	if got := launcher.Launches(); got != 1 {
		t.Fatalf("launches=%d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different browser", i)
		}
	}
	if got := m.State(); got != browser.StateReady {
		t.Fatalf("state=%s, want ready", got)
	}
}

func TestAcquireReusesConnectedBrowser(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m := browser.NewManager(launcher.Launch, nil)

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first != second || launcher.Launches() != 1 {
		t.Fatalf("expected one reused browser, launches=%d", launcher.Launches())
	}
}

func TestAcquireRelaunchesAfterDisconnect(t *testing.T) {
	launcher := &browsertest.Launcher{}
	obs := &countingObserver{}
	m := browser.NewManager(launcher.Launch, obs)

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	launcher.Last().Disconnect()
	waitFor(t, func() bool { return m.State() == browser.StateAbsent })

	b, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if b != launcher.Last() {
		t.Fatalf("expected the relaunched browser")
	}
	if got := launcher.Launches(); got != 2 {
		t.Fatalf("launches=%d, want 2", got)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.disconnects != 1 || obs.launches != 2 {
		t.Fatalf("observer launches=%d disconnects=%d", obs.launches, obs.disconnects)
	}
}

func TestAcquireLaunchFailureResetsState(t *testing.T) {
	launcher := &browsertest.Launcher{Err: errors.New("chrome missing")}
	m := browser.NewManager(launcher.Launch, nil)

	if _, err := m.Acquire(context.Background()); err == nil {
		t.Fatalf("expected launch error")
	}
	if got := m.State(); got != browser.StateAbsent {
		t.Fatalf("state=%s, want absent", got)
	}

	launcher.Err = nil
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after recovery: %v", err)
	}
	if got := launcher.Launches(); got != 2 {
		t.Fatalf("launches=%d, want 2", got)
	}
}

func TestAcquireHonoursCallerContext(t *testing.T) {
	launcher := &browsertest.Launcher{Gate: make(chan struct{})}
	defer close(launcher.Gate)
	m := browser.NewManager(launcher.Launch, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline exceeded", err)
	}
}

func TestWithPageClosesOnEveryPath(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m := browser.NewManager(launcher.Launch, nil)

	if err := m.WithPage(context.Background(), func(browser.Page) error { return nil }); err != nil {
		t.Fatalf("with page: %v", err)
	}

	boom := errors.New("boom")
	if err := m.WithPage(context.Background(), func(browser.Page) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = m.WithPage(context.Background(), func(browser.Page) error { panic("page panic") })
	}()

	b := launcher.Last()
	if got := len(b.Pages()); got != 3 {
		t.Fatalf("pages=%d, want 3", got)
	}
	if got := b.OpenPages(); got != 0 {
		t.Fatalf("open pages=%d, want 0", got)
	}
}

func TestReleaseAllIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m := browser.NewManager(launcher.Launch, nil)

	m.ReleaseAll()

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	b := launcher.Last()

	m.ReleaseAll()
	m.ReleaseAll()

	if !b.Closed() {
		t.Fatalf("browser should be closed")
	}
	if got := m.State(); got != browser.StateAbsent {
		t.Fatalf("state=%s, want absent", got)
	}
}

func TestReleaseAllDuringLaunchClosesLateBrowser(t *testing.T) {
	launcher := &browsertest.Launcher{Gate: make(chan struct{})}
	m := browser.NewManager(launcher.Launch, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background())
		errCh <- err
	}()
	waitFor(t, func() bool { return launcher.Launches() == 1 })

	m.ReleaseAll()
	if got := m.State(); got != browser.StateAbsent {
		t.Fatalf("state after release=%s, want absent", got)
	}
	close(launcher.Gate)

	if err := <-errCh; !errors.Is(err, browser.ErrReleased) {
		t.Fatalf("err=%v, want ErrReleased", err)
	}
	if got := m.State(); got != browser.StateAbsent {
		t.Fatalf("state after launch=%s, want absent", got)
	}
	if b := launcher.Last(); b == nil || !b.Closed() {
		t.Fatalf("late browser should be closed")
	}

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if got := launcher.Launches(); got != 2 {
		t.Fatalf("launches=%d, want 2", got)
	}
}
