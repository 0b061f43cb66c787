// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package flush

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/staranto/geocache/internal/cache"
)

const (
	// DefaultInterval is how often each region is emptied.
	DefaultInterval = 6 * time.Hour
	// DefaultSweep is how often idle entries are purged across all regions.
	DefaultSweep = time.Minute
)

// Scheduler empties every region of a store on a fixed period and, separately,
// sweeps idle entries. It owns its goroutines from Start until Stop.
type Scheduler struct {
	store     *cache.Store
	interval  time.Duration
	intervals map[string]time.Duration
	sweep     time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type Option func(*Scheduler)

// WithDefaultInterval sets the flush period for regions without their own.
func WithDefaultInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithInterval sets the flush period for one region. A non-positive value
// disables flushing that region.
func WithInterval(region string, d time.Duration) Option {
	return func(s *Scheduler) { s.intervals[region] = d }
}

// WithSweep sets the idle sweep period. Zero disables sweeping.
func WithSweep(d time.Duration) Option {
	return func(s *Scheduler) { s.sweep = d }
}

// New returns a stopped scheduler for store.
func New(store *cache.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		interval:  DefaultInterval,
		intervals: make(map[string]time.Duration),
		sweep:     DefaultSweep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the flush period in effect for region.
func (s *Scheduler) Interval(region string) time.Duration {
	if d, ok := s.intervals[region]; ok {
		return d
	}
	return s.interval
}

// Start launches the flush and sweep loops. They run until ctx is done or
// Stop is called. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, region := range s.store.Regions() {
		d := s.Interval(region)
		if d <= 0 {
			log.Debugf("scheduled flush disabled for %s", region)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, d, func() { s.flush(region) })
		log.Debugf("flushing %s every %s", region, d)
	}

	if s.sweep > 0 {
		s.wg.Add(1)
		go s.loop(ctx, s.sweep, func() {
			if n := s.store.Sweep(); n > 0 {
				log.Debugf("swept %d idle cache entries", n)
			}
		})
	}
}

// Stop cancels the loops and waits for them to exit. It is safe to call more
// than once, and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, d time.Duration, fn func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (s *Scheduler) flush(region string) {
	log.Infof("Evicting all %s cache entries", region)
	if err := s.store.EvictAll(region); err != nil {
		log.WithError(err).Warnf("failed to flush %s", region)
	}
}
