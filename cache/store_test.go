package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingObserver struct {
	results []string
}

func (o *recordingObserver) ObserveCacheLookup(ns Namespace, result string) {
	o.results = append(o.results, string(ns)+":"+result)
}

func TestStoreGetWithinTTLIsStable(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := New(map[Namespace]time.Duration{NamespaceListings: time.Hour}, WithClock(clock.Now))

	s.Set(NamespaceListings, "k", 42)
	clock.Advance(30 * time.Minute)

	first, ok := s.Get(NamespaceListings, "k")
	if !ok {
		t.Fatalf("expected hit within ttl")
	}
	second, ok := s.Get(NamespaceListings, "k")
	if !ok {
		t.Fatalf("expected second hit within ttl")
	}
	if first != second {
		t.Fatalf("values differ: %v vs %v", first, second)
	}
}

func TestStoreExpiresAtTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	obs := &recordingObserver{}
	s := New(map[Namespace]time.Duration{NamespaceListings: time.Hour}, WithClock(clock.Now), WithObserver(obs))

	s.Set(NamespaceListings, "k", "v")
	clock.Advance(time.Hour)

	if _, ok := s.Get(NamespaceListings, "k"); ok {
		t.Fatalf("entry should be absent once now-storedAt >= ttl")
	}
	if got := s.Len(NamespaceListings); got != 0 {
		t.Fatalf("expired entry should be evicted on lookup, len=%d", got)
	}
	if _, ok := s.Get(NamespaceListings, "k"); ok {
		t.Fatalf("entry should stay absent")
	}

	want := []string{"listings:expired", "listings:miss"}
	if len(obs.results) != len(want) {
		t.Fatalf("observer results = %v, want %v", obs.results, want)
	}
	for i := range want {
		if obs.results[i] != want[i] {
			t.Fatalf("observer results = %v, want %v", obs.results, want)
		}
	}
}

func TestStoreExpiredEntriesAreNotSwept(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := New(map[Namespace]time.Duration{NamespaceInfo: time.Minute}, WithClock(clock.Now))

	s.Set(NamespaceInfo, "a", 1)
	s.Set(NamespaceInfo, "b", 2)
	clock.Advance(time.Hour)

	if got := s.Len(NamespaceInfo); got != 2 {
		t.Fatalf("len=%d, want 2 until looked up", got)
	}
	s.Get(NamespaceInfo, "a")
	if got := s.Len(NamespaceInfo); got != 1 {
		t.Fatalf("len=%d, want 1 after one lookup", got)
	}
}

func TestStoreNoExpiryNamespace(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := New(map[Namespace]time.Duration{NamespaceIdentifier: NoExpiry}, WithClock(clock.Now))

	s.Set(NamespaceIdentifier, "Target A", "12345")
	clock.Advance(365 * 24 * time.Hour)

	id, ok := Get[string](s, NamespaceIdentifier, "Target A")
	if !ok || id != "12345" {
		t.Fatalf("got %q/%v, want 12345/true", id, ok)
	}
}

func TestStoreNamespacesAreIsolated(t *testing.T) {
	s := New(map[Namespace]time.Duration{
		NamespaceListings: time.Hour,
		NamespaceInfo:     time.Hour,
	})

	s.Set(NamespaceListings, "k", "listings")
	if _, ok := s.Get(NamespaceInfo, "k"); ok {
		t.Fatalf("key leaked across namespaces")
	}
}

func TestTypedGetRejectsOtherTypes(t *testing.T) {
	s := New(nil)
	s.Set(NamespaceSummary, "k", 7)

	if _, ok := Get[string](s, NamespaceSummary, "k"); ok {
		t.Fatalf("int value should not satisfy Get[string]")
	}
	if v, ok := Get[int](s, NamespaceSummary, "k"); !ok || v != 7 {
		t.Fatalf("got %v/%v, want 7/true", v, ok)
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	s := New(map[Namespace]time.Duration{NamespaceListings: time.Hour})
	s.Set(NamespaceListings, "k", "first")
	s.Set(NamespaceListings, "k", "second")

	v, _ := Get[string](s, NamespaceListings, "k")
	if v != "second" {
		t.Fatalf("got %q, want second", v)
	}
}
