// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultMaxEntries is the per-region entry bound.
	DefaultMaxEntries = 50
	// DefaultIdle is how long an entry may go unread before it expires.
	DefaultIdle = 5 * time.Minute
)

// ErrInvalidConfig is returned for a region configured without room for a
// single entry.
var ErrInvalidConfig = errors.New("invalid cache region config")

// Cause says why an entry left a region.
type Cause string

const (
	CauseSize    Cause = "size"
	CauseExpired Cause = "expired"
	CauseFlush   Cause = "flush"
)

// Config bounds a region. An Idle of zero disables idle expiration.
type Config struct {
	MaxEntries int
	Idle       time.Duration
}

// DefaultConfig returns 50 entries and 5 minutes.
func DefaultConfig() Config {
	return Config{MaxEntries: DefaultMaxEntries, Idle: DefaultIdle}
}

// Stats is a point-in-time view of a region's counters. Hits, Misses,
// Evictions and Flushes only ever grow.
type Stats struct {
	Hits      uint64 `json:"hits" yaml:"hits"`
	Misses    uint64 `json:"misses" yaml:"misses"`
	Evictions uint64 `json:"evictions" yaml:"evictions"`
	Flushes   uint64 `json:"flushes" yaml:"flushes"`
	Size      int    `json:"size" yaml:"size"`
}

// EvictionEvent describes one entry leaving a region.
type EvictionEvent[K comparable, V any] struct {
	Region string
	Key    K
	Value  V
	Cause  Cause
}

// Option customizes a region.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now. Used by tests to drive idle expiration.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// Region is a named, bounded key/value cache. Recency is tracked on both Get
// and Put; the least recently used entry is evicted when a Put would exceed
// MaxEntries, and any entry unread for longer than Idle is never returned.
// All methods are safe for concurrent use.
type Region[K comparable, V any] struct {
	name string
	cfg  Config
	now  func() time.Time

	mu      sync.Mutex
	lru     *simplelru.LRU[K, *entry[V]]
	onEvict func(EvictionEvent[K, V])
	stats   Stats
}

// NewRegion builds an empty region.
func NewRegion[K comparable, V any](name string, cfg Config, opts ...Option) (*Region[K, V], error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("%w: region %s: max entries must be positive, got %d",
			ErrInvalidConfig, name, cfg.MaxEntries)
	}
	if cfg.Idle < 0 {
		return nil, fmt.Errorf("%w: region %s: idle must not be negative", ErrInvalidConfig, name)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	// Evictions are driven by hand below so each one carries its cause.
	l, err := simplelru.NewLRU[K, *entry[V]](cfg.MaxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create region %s: %w", name, err)
	}

	return &Region[K, V]{
		name: name,
		cfg:  cfg,
		now:  o.now,
		lru:  l,
	}, nil
}

// Name returns the region name.
func (r *Region[K, V]) Name() string {
	return r.name
}

// Config returns the region bounds.
func (r *Region[K, V]) Config() Config {
	return r.cfg
}

// OnEvict installs a listener called for every entry that leaves the region.
// The listener runs after the region lock is released.
func (r *Region[K, V]) OnEvict(fn func(EvictionEvent[K, V])) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// Get returns the value for key and marks it as just used. An idle-expired
// entry is purged and reported as a miss.
func (r *Region[K, V]) Get(key K) (V, bool) {
	var zero V
	var events []EvictionEvent[K, V]

	r.mu.Lock()
	now := r.now()
	e, ok := r.lru.Peek(key)
	switch {
	case !ok:
		r.stats.Misses++
	case r.expired(e, now):
		r.lru.Remove(key)
		r.stats.Evictions++
		r.stats.Misses++
		events = r.event(events, key, e, CauseExpired)
		ok = false
	default:
		r.lru.Get(key)
		e.lastAccess = now
		r.stats.Hits++
	}
	listener := r.onEvict
	r.mu.Unlock()

	r.dispatch(listener, events)
	if !ok {
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry. When the region
// is full, idle-expired entries are purged first and then, if still needed,
// the least recently used entry is evicted.
func (r *Region[K, V]) Put(key K, value V) {
	var events []EvictionEvent[K, V]

	r.mu.Lock()
	now := r.now()
	if _, exists := r.lru.Peek(key); !exists && r.lru.Len() >= r.cfg.MaxEntries {
		events = r.purgeExpired(events, now)
		if r.lru.Len() >= r.cfg.MaxEntries {
			if k, e, ok := r.lru.RemoveOldest(); ok {
				r.stats.Evictions++
				events = r.event(events, k, e, CauseSize)
			}
		}
	}
	r.lru.Add(key, &entry[V]{value: value, lastAccess: now})
	listener := r.onEvict
	r.mu.Unlock()

	r.dispatch(listener, events)
}

// EvictAll empties the region. Hit and miss counters are untouched.
func (r *Region[K, V]) EvictAll() {
	var events []EvictionEvent[K, V]

	r.mu.Lock()
	if r.onEvict != nil {
		for _, k := range r.lru.Keys() {
			if e, ok := r.lru.Peek(k); ok {
				events = r.event(events, k, e, CauseFlush)
			}
		}
	}
	r.lru.Purge()
	r.stats.Flushes++
	listener := r.onEvict
	r.mu.Unlock()

	r.dispatch(listener, events)
}

// Sweep purges every idle-expired entry and returns how many were removed.
func (r *Region[K, V]) Sweep() int {
	r.mu.Lock()
	before := r.lru.Len()
	events := r.purgeExpired(nil, r.now())
	removed := before - r.lru.Len()
	listener := r.onEvict
	r.mu.Unlock()

	r.dispatch(listener, events)
	return removed
}

// Len returns the number of entries held, including any idle-expired ones not
// yet purged.
func (r *Region[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// Stats returns a snapshot of the counters and the current size.
func (r *Region[K, V]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Size = r.lru.Len()
	return s
}

// purgeExpired walks from the least recently used end. Access order and
// lastAccess order agree, so it stops at the first live entry.
func (r *Region[K, V]) purgeExpired(events []EvictionEvent[K, V], now time.Time) []EvictionEvent[K, V] {
	if r.cfg.Idle <= 0 {
		return events
	}
	for {
		k, e, ok := r.lru.GetOldest()
		if !ok || !r.expired(e, now) {
			return events
		}
		r.lru.Remove(k)
		r.stats.Evictions++
		events = r.event(events, k, e, CauseExpired)
	}
}

func (r *Region[K, V]) expired(e *entry[V], now time.Time) bool {
	return r.cfg.Idle > 0 && now.Sub(e.lastAccess) > r.cfg.Idle
}

func (r *Region[K, V]) event(events []EvictionEvent[K, V], k K, e *entry[V], cause Cause) []EvictionEvent[K, V] {
	if r.onEvict == nil {
		return events
	}
	return append(events, EvictionEvent[K, V]{Region: r.name, Key: k, Value: e.value, Cause: cause})
}

func (r *Region[K, V]) dispatch(fn func(EvictionEvent[K, V]), events []EvictionEvent[K, V]) {
	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}
