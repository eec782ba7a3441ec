// Package cache provides a namespaced key/value store whose entries expire
// after a per-namespace time-to-live.
package cache

import (
	"sync"
	"time"
)

// Namespace partitions the store; each namespace has its own TTL.
type Namespace string

const (
	NamespaceIdentifier Namespace = "identifier"
	NamespaceListings   Namespace = "listings"
	NamespaceInfo       Namespace = "info"
	NamespaceSummary    Namespace = "summary"
	NamespaceBatch      Namespace = "batch"
)

// NoExpiry marks a namespace whose entries live until the process exits.
const NoExpiry time.Duration = 0

// Observer receives lookup outcomes. result is "hit", "miss" or "expired".
type Observer interface {
	ObserveCacheLookup(namespace Namespace, result string)
}

type entry struct {
	value    any
	storedAt time.Time
}

// Store is a map of namespaced entries with lazy expiry. Nothing is swept in
// the background: an expired entry is dropped by the lookup that finds it.
// Namespaces without a configured TTL never expire.
type Store struct {
	mu       sync.Mutex
	ttls     map[Namespace]time.Duration
	entries  map[Namespace]map[string]entry
	now      func() time.Time
	observer Observer
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an observer for lookup outcomes.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// New builds a store with the given TTL per namespace.
func New(ttls map[Namespace]time.Duration, opts ...Option) *Store {
	s := &Store{
		ttls:    make(map[Namespace]time.Duration, len(ttls)),
		entries: make(map[Namespace]map[string]entry),
		now:     time.Now,
	}
	for ns, ttl := range ttls {
		s.ttls[ns] = ttl
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL reports the expiry window of a namespace.
func (s *Store) TTL(ns Namespace) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[ns]
}

// Get returns the value stored under key if it has not expired. Callers cannot
// tell a key that was never set from one that expired.
func (s *Store) Get(ns Namespace, key string) (any, bool) {
	s.mu.Lock()
	bucket := s.entries[ns]
	e, ok := bucket[key]
	result := "miss"
	if ok {
		ttl := s.ttls[ns]
		if ttl > 0 && s.now().Sub(e.storedAt) >= ttl {
			delete(bucket, key)
			ok = false
			result = "expired"
		} else {
			result = "hit"
		}
	}
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveCacheLookup(ns, result)
	}
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (s *Store) Set(ns Namespace, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.entries[ns]
	if !ok {
		bucket = make(map[string]entry)
		s.entries[ns] = bucket
	}
	bucket[key] = entry{value: value, storedAt: s.now()}
}

// Len counts the entries held for ns, expired ones included.
func (s *Store) Len(ns Namespace) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[ns])
}

// Get is the typed form of Store.Get. A value of another type is reported as
// absent.
func Get[T any](s *Store, ns Namespace, key string) (T, bool) {
	var zero T
	v, ok := s.Get(ns, key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
