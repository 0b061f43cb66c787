// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/staranto/geocache/internal/cache"
	"github.com/staranto/geocache/internal/geoerr"
	"github.com/staranto/geocache/internal/metrics"
	"github.com/staranto/geocache/internal/provider"
)

// DefaultUncachedAddress is the forward query whose results are never cached.
const DefaultUncachedAddress = "goa"

// Forward is the result of an address to coordinates lookup.
type Forward struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Reverse is the result of a coordinates to address lookup.
type Reverse struct {
	Address string `json:"address" yaml:"address"`
}

// ReverseKey identifies a reverse lookup. The coordinates are kept exactly as
// supplied and never joined into one string.
type ReverseKey struct {
	Latitude  string
	Longitude string
}

// String quotes each coordinate so keys whose parts contain commas still log
// distinctly.
func (k ReverseKey) String() string {
	return strconv.Quote(k.Latitude) + "," + strconv.Quote(k.Longitude)
}

// Service resolves lookups through the cache, calling the provider only on a
// miss. Failures are classified and never cached.
type Service struct {
	provider provider.Provider
	store    *cache.Store
	forward  *cache.Region[string, Forward]
	reverse  *cache.Region[ReverseKey, Reverse]

	uncached     string
	flight       *singleflight.Group
	fetchTimeout time.Duration
	latency      *metrics.LatencyTracker
}

type Option func(*Service)

// WithUncachedAddress changes the forward query that bypasses the cache.
// An empty value disables the exception.
func WithUncachedAddress(address string) Option {
	return func(s *Service) { s.uncached = address }
}

// WithSingleFlight collapses concurrent identical misses into one provider
// call.
func WithSingleFlight(enabled bool) Option {
	return func(s *Service) {
		if enabled {
			s.flight = &singleflight.Group{}
		} else {
			s.flight = nil
		}
	}
}

// WithFetchTimeout is the deadline for a shared provider call, which does not
// follow any caller's context. Zero means no bound. The default is the
// provider's own bound, if it declares one.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

// WithLatencyTracker records provider call durations into lt.
func WithLatencyTracker(lt *metrics.LatencyTracker) Option {
	return func(s *Service) { s.latency = lt }
}

// New builds a Service over a store holding the geocoding and
// reverse-geocoding regions, as made by NewStore.
func New(p provider.Provider, store *cache.Store, opts ...Option) (*Service, error) {
	fwd, err := cache.Lookup[string, Forward](store, cache.Geocoding)
	if err != nil {
		return nil, err
	}
	rev, err := cache.Lookup[ReverseKey, Reverse](store, cache.ReverseGeocoding)
	if err != nil {
		return nil, err
	}

	s := &Service{
		provider: p,
		store:    store,
		forward:  fwd,
		reverse:  rev,
		uncached:     DefaultUncachedAddress,
		fetchTimeout: provider.MaxDuration(p),
		latency:      metrics.NewLatencyTracker(metrics.DefaultRelativeAccuracy),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStore creates a store with both lookup regions and an eviction listener
// that logs every entry leaving either of them.
func NewStore(forward, reverse cache.Config, opts ...cache.Option) (*cache.Store, error) {
	store := cache.NewStore()

	fwd, err := cache.AddRegion[string, Forward](store, cache.Geocoding, forward, opts...)
	if err != nil {
		return nil, err
	}
	fwd.OnEvict(func(ev cache.EvictionEvent[string, Forward]) {
		logEviction(ev.Region, ev.Cause, ev.Key, ev.Value)
	})

	rev, err := cache.AddRegion[ReverseKey, Reverse](store, cache.ReverseGeocoding, reverse, opts...)
	if err != nil {
		return nil, err
	}
	rev.OnEvict(func(ev cache.EvictionEvent[ReverseKey, Reverse]) {
		logEviction(ev.Region, ev.Cause, ev.Key, ev.Value)
	})

	return store, nil
}

func logEviction(region string, cause cache.Cause, key, value any) {
	log.WithFields(log.Fields{
		"region": region,
		"cause":  string(cause),
		"key":    key,
		"value":  value,
	}).Debug("evicted cache entry")
}

// Store returns the backing store.
func (s *Service) Store() *cache.Store {
	return s.store
}

// Latency returns the provider latency tracker.
func (s *Service) Latency() *metrics.LatencyTracker {
	return s.latency
}

// Stats returns the counters for a region.
func (s *Service) Stats(region string) (cache.Stats, error) {
	return s.store.Stats(region)
}

// ResolveForward returns the coordinates for address. The address is the
// cache key verbatim. Results for the uncached address, compared without
// regard to case, are never read from or written to the cache.
func (s *Service) ResolveForward(ctx context.Context, address string) (Forward, error) {
	ctxLog := log.WithField("address", address)

	if s.isUncached(address) {
		ctxLog.Debug("cache bypassed")
		return s.fetchForward(ctx, address)
	}

	if v, ok := s.forward.Get(address); ok {
		ctxLog.Debug("cache hit")
		return v, nil
	}
	ctxLog.Debug("cache miss")

	load := func(ctx context.Context) (Forward, error) {
		v, err := s.fetchForward(ctx, address)
		if err != nil {
			return Forward{}, err
		}
		s.forward.Put(address, v)
		return v, nil
	}

	if s.flight == nil {
		return load(ctx)
	}
	return shared(ctx, s, cache.Geocoding+":"+strconv.Quote(address), load, "forward")
}

// ResolveReverse returns the address for a latitude and longitude. Every
// successful result is cached.
func (s *Service) ResolveReverse(ctx context.Context, lat, lon string) (Reverse, error) {
	key := ReverseKey{Latitude: lat, Longitude: lon}
	ctxLog := log.WithField("key", key.String())

	if v, ok := s.reverse.Get(key); ok {
		ctxLog.Debug("cache hit")
		return v, nil
	}
	ctxLog.Debug("cache miss")

	load := func(ctx context.Context) (Reverse, error) {
		v, err := s.fetchReverse(ctx, key)
		if err != nil {
			return Reverse{}, err
		}
		s.reverse.Put(key, v)
		return v, nil
	}

	if s.flight == nil {
		return load(ctx)
	}
	return shared(ctx, s, cache.ReverseGeocoding+":"+key.String(), load, "reverse")
}

func (s *Service) isUncached(address string) bool {
	return s.uncached != "" && strings.EqualFold(address, s.uncached)
}

func (s *Service) fetchForward(ctx context.Context, address string) (Forward, error) {
	var v Forward
	err := s.latency.Time("forward", func() error {
		log.WithField("address", address).Info("fetching forward geocode")
		body, err := s.provider.FetchForward(ctx, address)
		if err != nil {
			return err
		}
		v, err = ParseForward(body)
		return err
	})
	if err != nil {
		err = geoerr.WithOp(err, "forward")
		log.WithError(err).WithField("address", address).Warn("forward lookup failed")
		return Forward{}, err
	}
	return v, nil
}

func (s *Service) fetchReverse(ctx context.Context, key ReverseKey) (Reverse, error) {
	var v Reverse
	err := s.latency.Time("reverse", func() error {
		log.WithField("key", key.String()).Info("fetching reverse geocode")
		body, err := s.provider.FetchReverse(ctx, key.Latitude, key.Longitude)
		if err != nil {
			return err
		}
		v, err = ParseReverse(body)
		return err
	})
	if err != nil {
		err = geoerr.WithOp(err, "reverse")
		log.WithError(err).WithField("key", key.String()).Warn("reverse lookup failed")
		return Reverse{}, err
	}
	return v, nil
}

// shared runs load once per key among concurrent callers. The call runs
// detached from the caller that started it. Each caller stops waiting when
// its own ctx is done.
func shared[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error), op string) (T, error) {
	var zero T

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		if s.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, s.fetchTimeout)
			defer cancel()
		}
		return load(fctx)
	})

	select {
	case <-ctx.Done():
		return zero, geoerr.WithOp(ctx.Err(), op)
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil //nolint:forcetypeassert
	}
}
