// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Geocoding holds address to coordinates results.
	Geocoding = "geocoding"
	// ReverseGeocoding holds coordinates to address results.
	ReverseGeocoding = "reverse-geocoding"
)

var (
	ErrUnknownRegion   = errors.New("unknown cache region")
	ErrDuplicateRegion = errors.New("cache region already registered")
	ErrRegionType      = errors.New("cache region has different key or value type")
)

// Flushable is the type-erased view of a Region the Store manages.
type Flushable interface {
	Name() string
	EvictAll()
	Sweep() int
	Stats() Stats
	Len() int
}

// Store is the set of named regions shared by every caller in the process.
// It also implements prometheus.Collector, reporting each region's counters
// under a "region" label.
type Store struct {
	mu      sync.RWMutex
	regions map[string]Flushable
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{regions: make(map[string]Flushable)}
}

// Register adds r to the store. Region names are unique.
func (s *Store) Register(r Flushable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.regions[r.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegion, r.Name())
	}
	s.regions[r.Name()] = r
	s.order = append(s.order, r.Name())
	log.Debugf("registered cache region %s", r.Name())
	return nil
}

// AddRegion builds a region and registers it with s in one step.
func AddRegion[K comparable, V any](s *Store, name string, cfg Config, opts ...Option) (*Region[K, V], error) {
	r, err := NewRegion[K, V](name, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Region looks up a registered region by name.
func (s *Store) Region(name string) (Flushable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.regions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
	}
	return r, nil
}

// Lookup returns the named region with its concrete key and value types.
func Lookup[K comparable, V any](s *Store, name string) (*Region[K, V], error) {
	f, err := s.Region(name)
	if err != nil {
		return nil, err
	}
	r, ok := f.(*Region[K, V])
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T", ErrRegionType, name, f)
	}
	return r, nil
}

// Get reads key from the named region.
func Get[K comparable, V any](s *Store, name string, key K) (V, bool, error) {
	r, err := Lookup[K, V](s, name)
	if err != nil {
		var zero V
		return zero, false, err
	}
	v, ok := r.Get(key)
	return v, ok, nil
}

// Put writes key into the named region.
func Put[K comparable, V any](s *Store, name string, key K, value V) error {
	r, err := Lookup[K, V](s, name)
	if err != nil {
		return err
	}
	r.Put(key, value)
	return nil
}

// Regions returns the registered region names in registration order.
func (s *Store) Regions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// EvictAll empties the named region.
func (s *Store) EvictAll(name string) error {
	r, err := s.Region(name)
	if err != nil {
		return err
	}
	r.EvictAll()
	return nil
}

// Stats returns the named region's counters.
func (s *Store) Stats(name string) (Stats, error) {
	r, err := s.Region(name)
	if err != nil {
		return Stats{}, err
	}
	return r.Stats(), nil
}

// Sweep purges idle-expired entries from every region and returns the total
// removed.
func (s *Store) Sweep() int {
	n := 0
	for _, name := range s.Regions() {
		if r, err := s.Region(name); err == nil {
			n += r.Sweep()
		}
	}
	return n
}

var (
	hitsDesc = prometheus.NewDesc(
		"geocache_cache_hits_total",
		"Lookups answered from a cache region.",
		[]string{"region"}, nil,
	)
	missesDesc = prometheus.NewDesc(
		"geocache_cache_misses_total",
		"Lookups a cache region could not answer.",
		[]string{"region"}, nil,
	)
	evictionsDesc = prometheus.NewDesc(
		"geocache_cache_evictions_total",
		"Entries removed from a cache region for size or idleness.",
		[]string{"region"}, nil,
	)
	flushesDesc = prometheus.NewDesc(
		"geocache_cache_flushes_total",
		"Times a cache region was emptied.",
		[]string{"region"}, nil,
	)
	entriesDesc = prometheus.NewDesc(
		"geocache_cache_entries",
		"Entries currently held by a cache region.",
		[]string{"region"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (s *Store) Describe(ch chan<- *prometheus.Desc) {
	ch <- hitsDesc
	ch <- missesDesc
	ch <- evictionsDesc
	ch <- flushesDesc
	ch <- entriesDesc
}

// Collect implements prometheus.Collector.
func (s *Store) Collect(ch chan<- prometheus.Metric) {
	for _, name := range s.Regions() {
		st, err := s.Stats(name)
		if err != nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(hitsDesc, prometheus.CounterValue, float64(st.Hits), name)
		ch <- prometheus.MustNewConstMetric(missesDesc, prometheus.CounterValue, float64(st.Misses), name)
		ch <- prometheus.MustNewConstMetric(evictionsDesc, prometheus.CounterValue, float64(st.Evictions), name)
		ch <- prometheus.MustNewConstMetric(flushesDesc, prometheus.CounterValue, float64(st.Flushes), name)
		ch <- prometheus.MustNewConstMetric(entriesDesc, prometheus.GaugeValue, float64(st.Size), name)
	}
}
