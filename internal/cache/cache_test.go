// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRegion(t *testing.T, cfg Config, clk *fakeClock) *Region[string, int] {
	t.Helper()
	r, err := NewRegion[string, int](Geocoding, cfg, WithClock(clk.Now))
	require.NoError(t, err)
	return r
}

func TestNewRegion_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "no idle", cfg: Config{MaxEntries: 1}},
		{name: "zero entries", cfg: Config{MaxEntries: 0, Idle: time.Minute}, wantErr: true},
		{name: "negative idle", cfg: Config{MaxEntries: 5, Idle: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegion[string, int]("r", tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.Idle)
}

func TestRegion_GetPut(t *testing.T) {
	r := newRegion(t, DefaultConfig(), newFakeClock())

	_, ok := r.Get("paris")
	assert.False(t, ok)

	r.Put("paris", 1)
	v, ok := r.Get("paris")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	r.Put("paris", 2)
	v, _ = r.Get("paris")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, r.Len())

	st := r.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Size)
}

func TestRegion_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	clk := newFakeClock()
	r := newRegion(t, Config{MaxEntries: 3, Idle: time.Hour}, clk)

	var events []EvictionEvent[string, int]
	r.OnEvict(func(ev EvictionEvent[string, int]) { events = append(events, ev) })

	r.Put("a", 1)
	r.Put("b", 2)
	r.Put("c", 3)

	// Reading "a" makes "b" the least recently used.
	_, ok := r.Get("a")
	require.True(t, ok)

	r.Put("d", 4)

	assert.Equal(t, 3, r.Len())
	_, ok = r.Get("b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := r.Get(k)
		assert.True(t, ok, k)
	}

	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].Key)
	assert.Equal(t, 2, events[0].Value)
	assert.Equal(t, CauseSize, events[0].Cause)
	assert.Equal(t, Geocoding, events[0].Region)
	assert.Equal(t, uint64(1), r.Stats().Evictions)
}

func TestRegion_ReplaceDoesNotEvict(t *testing.T) {
	r := newRegion(t, Config{MaxEntries: 2}, newFakeClock())

	r.Put("a", 1)
	r.Put("b", 2)
	r.Put("a", 3)

	assert.Equal(t, 2, r.Len())
	assert.Zero(t, r.Stats().Evictions)
}

func TestRegion_IdleExpiry(t *testing.T) {
	clk := newFakeClock()
	r := newRegion(t, Config{MaxEntries: 10, Idle: 5 * time.Minute}, clk)

	var causes []Cause
	r.OnEvict(func(ev EvictionEvent[string, int]) { causes = append(causes, ev.Cause) })

	r.Put("paris", 1)

	clk.Advance(4 * time.Minute)
	_, ok := r.Get("paris")
	require.True(t, ok, "read inside the idle window")

	// The read above restarted the idle window.
	clk.Advance(4 * time.Minute)
	_, ok = r.Get("paris")
	require.True(t, ok)

	clk.Advance(5*time.Minute + time.Nanosecond)
	_, ok = r.Get("paris")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
	assert.Equal(t, []Cause{CauseExpired}, causes)

	st := r.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Evictions)
}

func TestRegion_PutPrefersExpiredOverLive(t *testing.T) {
	clk := newFakeClock()
	r := newRegion(t, Config{MaxEntries: 2, Idle: time.Minute}, clk)

	r.Put("old", 1)
	clk.Advance(2 * time.Minute)
	r.Put("live", 2)
	r.Put("new", 3)

	_, ok := r.Get("live")
	assert.True(t, ok)
	_, ok = r.Get("new")
	assert.True(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestRegion_Sweep(t *testing.T) {
	clk := newFakeClock()
	r := newRegion(t, Config{MaxEntries: 10, Idle: time.Minute}, clk)

	r.Put("a", 1)
	r.Put("b", 2)
	clk.Advance(30 * time.Second)
	r.Put("c", 3)
	clk.Advance(45 * time.Second)

	assert.Equal(t, 2, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.Zero(t, r.Sweep())

	// Without an idle bound nothing ever expires.
	r2 := newRegion(t, Config{MaxEntries: 10}, clk)
	r2.Put("a", 1)
	clk.Advance(24 * time.Hour)
	assert.Zero(t, r2.Sweep())
	_, ok := r2.Get("a")
	assert.True(t, ok)
}

func TestRegion_EvictAll(t *testing.T) {
	r := newRegion(t, DefaultConfig(), newFakeClock())

	var flushed []string
	r.OnEvict(func(ev EvictionEvent[string, int]) {
		assert.Equal(t, CauseFlush, ev.Cause)
		flushed = append(flushed, ev.Key)
	})

	r.Put("a", 1)
	r.Put("b", 2)
	_, _ = r.Get("a")
	_, _ = r.Get("zzz")

	before := r.Stats()
	r.EvictAll()
	after := r.Stats()

	assert.ElementsMatch(t, []string{"a", "b"}, flushed)
	assert.Zero(t, after.Size)
	assert.Equal(t, before.Hits, after.Hits)
	assert.Equal(t, before.Misses, after.Misses)
	assert.Equal(t, uint64(1), after.Flushes)

	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestRegion_ListenerMayReenter(t *testing.T) {
	r := newRegion(t, Config{MaxEntries: 1}, newFakeClock())
	r.OnEvict(func(EvictionEvent[string, int]) {
		_ = r.Len()
	})

	r.Put("a", 1)
	r.Put("b", 2)
	r.EvictAll()
}

func TestRegion_Concurrent(t *testing.T) {
	r, err := NewRegion[int, int]("concurrent", Config{MaxEntries: 16, Idle: time.Minute})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := (g*31 + i) % 64
				if v, ok := r.Get(k); ok {
					assert.Equal(t, k*10, v)
				}
				r.Put(k, k*10)
				if i%100 == 0 {
					r.Sweep()
				}
			}
		}(g)
	}
	wg.Wait()

	st := r.Stats()
	assert.LessOrEqual(t, st.Size, 16)
	assert.Equal(t, uint64(8*500), st.Hits+st.Misses)
}

func TestStore_Regions(t *testing.T) {
	s := NewStore()

	fwd, err := AddRegion[string, int](s, Geocoding, DefaultConfig())
	require.NoError(t, err)
	_, err = AddRegion[string, string](s, ReverseGeocoding, DefaultConfig())
	require.NoError(t, err)

	_, err = AddRegion[string, int](s, Geocoding, DefaultConfig())
	assert.ErrorIs(t, err, ErrDuplicateRegion)

	assert.Equal(t, []string{Geocoding, ReverseGeocoding}, s.Regions())

	fwd.Put("paris", 1)
	st, err := s.Stats(Geocoding)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Size)

	require.NoError(t, s.EvictAll(Geocoding))
	st, _ = s.Stats(Geocoding)
	assert.Zero(t, st.Size)

	require.NoError(t, Put[string, int](s, Geocoding, "lyon", 7))
	v, ok, err := Get[string, int](s, Geocoding, "lyon")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, _, err = Get[int, int](s, Geocoding, 1)
	assert.ErrorIs(t, err, ErrRegionType)
	assert.ErrorIs(t, Put[string, int](s, "nope", "x", 1), ErrUnknownRegion)

	_, err = s.Stats("nope")
	assert.ErrorIs(t, err, ErrUnknownRegion)
	assert.ErrorIs(t, s.EvictAll("nope"), ErrUnknownRegion)
}

func TestStore_Sweep(t *testing.T) {
	clk := newFakeClock()
	s := NewStore()
	a, err := AddRegion[string, int](s, "a", Config{MaxEntries: 5, Idle: time.Minute}, WithClock(clk.Now))
	require.NoError(t, err)
	b, err := AddRegion[string, int](s, "b", Config{MaxEntries: 5, Idle: time.Minute}, WithClock(clk.Now))
	require.NoError(t, err)

	a.Put("x", 1)
	b.Put("y", 2)
	b.Put("z", 3)
	clk.Advance(2 * time.Minute)

	assert.Equal(t, 3, s.Sweep())
}

func TestStore_Collect(t *testing.T) {
	s := NewStore()
	fwd, err := AddRegion[string, int](s, Geocoding, DefaultConfig())
	require.NoError(t, err)
	_, err = AddRegion[string, string](s, ReverseGeocoding, DefaultConfig())
	require.NoError(t, err)

	fwd.Put("paris", 1)
	_, _ = fwd.Get("paris")
	_, _ = fwd.Get("paris")
	_, _ = fwd.Get("lyon")

	assert.Equal(t, 10, testutil.CollectAndCount(s))

	want := fmt.Sprintf(`
# HELP geocache_cache_hits_total Lookups answered from a cache region.
# TYPE geocache_cache_hits_total counter
geocache_cache_hits_total{region=%q} 2
geocache_cache_hits_total{region=%q} 0
# HELP geocache_cache_entries Entries currently held by a cache region.
# TYPE geocache_cache_entries gauge
geocache_cache_entries{region=%q} 1
geocache_cache_entries{region=%q} 0
`, Geocoding, ReverseGeocoding, Geocoding, ReverseGeocoding)

	err = testutil.CollectAndCompare(s, strings.NewReader(want),
		"geocache_cache_hits_total", "geocache_cache_entries")
	assert.NoError(t, err)
}
