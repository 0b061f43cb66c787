// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRelativeAccuracy keeps quantile estimates within 1%.
const DefaultRelativeAccuracy = 0.01

var ErrNoData = errors.New("no latency data")

var latencyDesc = prometheus.NewDesc(
	"geocache_provider_latency_milliseconds",
	"Provider fetch latency by operation.",
	[]string{"operation"}, nil,
)

var quantiles = []float64{0.5, 0.9, 0.95, 0.99}

// LatencyTracker keeps a DDSketch of durations per operation name. It is a
// prometheus.Collector that reports each sketch as a summary.
type LatencyTracker struct {
	mu               sync.Mutex
	sketches         map[string]*ddsketch.DDSketch
	sums             map[string]float64
	relativeAccuracy float64
}

// NewLatencyTracker returns an empty tracker. A non-positive accuracy falls
// back to DefaultRelativeAccuracy.
func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	if relativeAccuracy <= 0 || relativeAccuracy >= 1 {
		relativeAccuracy = DefaultRelativeAccuracy
	}
	return &LatencyTracker{
		sketches:         make(map[string]*ddsketch.DDSketch),
		sums:             make(map[string]float64),
		relativeAccuracy: relativeAccuracy,
	}
}

// Record adds one duration, in milliseconds, to the operation's sketch.
func (lt *LatencyTracker) Record(operation string, d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, ok := lt.sketches[operation]
	if !ok {
		var err error
		sketch, err = ddsketch.LogUnboundedDenseDDSketch(lt.relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(DefaultRelativeAccuracy)
		}
		lt.sketches[operation] = sketch
	}

	ms := float64(d.Microseconds()) / 1000.0
	// Add only rejects negative values.
	if err := sketch.Add(ms); err == nil {
		lt.sums[operation] += ms
	}
}

// Time runs fn and records how long it took, whatever it returns.
func (lt *LatencyTracker) Time(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	lt.Record(operation, time.Since(start))
	return err
}

// Stats summarizes one operation. Durations are in milliseconds.
type Stats struct {
	Operation string  `json:"operation" yaml:"operation"`
	Count     int64   `json:"count" yaml:"count"`
	Min       float64 `json:"min_ms" yaml:"min_ms"`
	P50       float64 `json:"p50_ms" yaml:"p50_ms"`
	P90       float64 `json:"p90_ms" yaml:"p90_ms"`
	P99       float64 `json:"p99_ms" yaml:"p99_ms"`
	Max       float64 `json:"max_ms" yaml:"max_ms"`
}

func (s Stats) String() string {
	if s.Count == 0 {
		return s.Operation + ": no data"
	}
	return fmt.Sprintf("%s (n=%s): min=%.2fms p50=%.2fms p90=%.2fms p99=%.2fms max=%.2fms",
		s.Operation, humanize.Comma(s.Count), s.Min, s.P50, s.P90, s.P99, s.Max)
}

// Stats returns the summary for operation.
func (lt *LatencyTracker) Stats(operation string) (Stats, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.statsLocked(operation)
}

// AllStats returns a summary for every operation, sorted by name.
func (lt *LatencyTracker) AllStats() []Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	stats := make([]Stats, 0, len(lt.sketches))
	for _, op := range lt.operationsLocked() {
		if s, err := lt.statsLocked(op); err == nil {
			stats = append(stats, s)
		}
	}
	return stats
}

func (lt *LatencyTracker) operationsLocked() []string {
	ops := make([]string, 0, len(lt.sketches))
	for op := range lt.sketches {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (lt *LatencyTracker) statsLocked(operation string) (Stats, error) {
	sketch, ok := lt.sketches[operation]
	if !ok {
		return Stats{}, fmt.Errorf("%w for operation %s", ErrNoData, operation)
	}

	count := sketch.GetCount()
	if count == 0 {
		return Stats{Operation: operation}, nil
	}

	minV, _ := sketch.GetMinValue()
	maxV, _ := sketch.GetMaxValue()
	qs, _ := sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.99})

	s := Stats{
		Operation: operation,
		Count:     int64(count),
		Min:       minV,
		Max:       maxV,
	}
	if len(qs) == 3 {
		s.P50, s.P90, s.P99 = qs[0], qs[1], qs[2]
	}
	return s, nil
}

// Describe implements prometheus.Collector.
func (lt *LatencyTracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- latencyDesc
}

// Collect implements prometheus.Collector.
func (lt *LatencyTracker) Collect(ch chan<- prometheus.Metric) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, op := range lt.operationsLocked() {
		sketch := lt.sketches[op]
		values, err := sketch.GetValuesAtQuantiles(quantiles)
		if err != nil {
			continue
		}
		q := make(map[float64]float64, len(quantiles))
		for i, v := range values {
			q[quantiles[i]] = v
		}
		ch <- prometheus.MustNewConstSummary(latencyDesc,
			uint64(sketch.GetCount()), lt.sums[op], q, op)
	}
}
