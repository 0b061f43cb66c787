// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/cache"
	"github.com/staranto/geocache/internal/filters"
	"github.com/staranto/geocache/internal/geoerr"
	"github.com/staranto/geocache/internal/lookup"
	"github.com/staranto/geocache/internal/meta"
	"github.com/staranto/geocache/internal/output"
)

var (
	batchColumns   = []string{"line", "op", "query", "latitude", "longitude", "address", "error"}
	statsColumns   = []string{"region", "hits", "misses", "evictions", "flushes", "size"}
	latencyColumns = []string{"operation", "count", "p50_ms", "p90_ms", "p99_ms", "max_ms"}
)

// BatchCommandAction reads one directive per line and runs them all through a
// single cache:
//
//	forward <address>
//	reverse <latitude> <longitude>
//	flush <geocoding|reverse-geocoding|all>
//
// Blank lines and lines starting with # are ignored. A failed line is
// reported in its row and does not stop the batch. --filter narrows the rows
// written but not the failure count.
func BatchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	svc, err := NewService(cmd)
	if err != nil {
		return err
	}

	sched := NewScheduler(cmd, svc.Store())
	sched.Start(ctx)
	defer sched.Stop()

	var (
		rows     []output.Row
		failures int
		total    int
	)

	scanner := bufio.NewScanner(Reader(cmd))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		row := runDirective(ctx, svc, line)
		row["line"] = lineNo
		if _, failed := row["error"]; failed {
			failures++
		}
		total++
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read batch input: %w", err)
	}

	if rows, err = filters.Apply(rows, cmd.String("filter")); err != nil {
		return err
	}

	w := Writer(cmd)
	format := cmd.String("output")
	opts := OutputOptions(cmd)

	if cmd.Bool("stats") {
		err = emitWithStats(w, format, opts, rows, svc)
	} else {
		err = output.List(w, format, batchColumns, rows, opts)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("metrics") {
		if err := WriteMetrics(w, svc.Store(), svc.Latency()); err != nil {
			return err
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d batch lines failed", failures, total)
	}
	return nil
}

func runDirective(ctx context.Context, svc *lookup.Service, line string) output.Row {
	op, rest, _ := strings.Cut(line, " ")
	op = strings.ToLower(op)
	rest = strings.TrimSpace(rest)
	row := output.Row{"op": op, "query": rest}

	fail := func(err error) output.Row {
		var ge *geoerr.Error
		if errors.As(err, &ge) {
			row["error"] = fmt.Sprintf("%s: %v", ge.Kind, err)
		} else {
			row["error"] = err.Error()
		}
		return row
	}

	switch op {
	case "forward":
		if rest == "" {
			return fail(geoerr.Invalid("an address is required"))
		}
		f, err := svc.ResolveForward(ctx, rest)
		if err != nil {
			return fail(err)
		}
		row["latitude"] = f.Latitude
		row["longitude"] = f.Longitude

	case "reverse":
		coords := strings.Fields(rest)
		if len(coords) != 2 { //nolint:mnd
			return fail(geoerr.Invalid("latitude and longitude are required"))
		}
		row["query"] = coords[0] + "," + coords[1]
		r, err := svc.ResolveReverse(ctx, coords[0], coords[1])
		if err != nil {
			return fail(err)
		}
		row["address"] = r.Address

	case "flush":
		if err := RegionValidator(rest); err != nil {
			return fail(fmt.Errorf("region %w", err))
		}
		regions := []string{rest}
		if rest == "all" {
			regions = svc.Store().Regions()
		}
		for _, region := range regions {
			log.Infof("Evicting all %s cache entries", region)
			if err := svc.Store().EvictAll(region); err != nil {
				return fail(err)
			}
		}

	default:
		return fail(fmt.Errorf("unknown directive %q", op))
	}

	return row
}

// StatsRows renders each region's counters as a row.
func StatsRows(store *cache.Store) []output.Row {
	var rows []output.Row
	for _, region := range store.Regions() {
		st, err := store.Stats(region)
		if err != nil {
			continue
		}
		rows = append(rows, output.Row{
			"region":    region,
			"hits":      st.Hits,
			"misses":    st.Misses,
			"evictions": st.Evictions,
			"flushes":   st.Flushes,
			"size":      st.Size,
		})
	}
	return rows
}

// LatencyRows renders provider latency quantiles as rows.
func LatencyRows(svc *lookup.Service) []output.Row {
	var rows []output.Row
	for _, s := range svc.Latency().AllStats() {
		rows = append(rows, output.Row{
			"operation": s.Operation,
			"count":     s.Count,
			"p50_ms":    round2(s.P50),
			"p90_ms":    round2(s.P90),
			"p99_ms":    round2(s.P99),
			"max_ms":    round2(s.Max),
		})
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100 //nolint:mnd
}

func emitWithStats(w io.Writer, format string, opts output.Options, rows []output.Row, svc *lookup.Service) error {
	stats := StatsRows(svc.Store())
	latency := LatencyRows(svc)

	if format != "text" {
		if rows == nil {
			rows = []output.Row{}
		}
		doc := output.Row{"results": rows, "stats": stats, "latency": latency}
		return output.Object(w, format, []string{"results", "stats", "latency"}, doc, opts)
	}

	if err := output.List(w, format, batchColumns, rows, opts); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := output.List(w, format, statsColumns, stats, opts); err != nil {
		return err
	}
	if len(latency) > 0 {
		fmt.Fprintln(w)
		return output.List(w, format, latencyColumns, latency, opts)
	}
	return nil
}

// WriteMetrics writes the cache and latency collectors in the Prometheus text
// exposition format.
func WriteMetrics(w io.Writer, collectors ...prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}

	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// BatchCommandBuilder constructs the cli.Command for "batch".
func BatchCommandBuilder(meta meta.Meta) *cli.Command {
	b := &LookupCommandBuilder{
		Name:      "batch",
		Usage:     "run many lookups from stdin through one cache",
		UsageText: "geocache batch [options] < queries.txt",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "stats",
				Aliases: []string{"s"},
				Usage:   "append cache and provider latency statistics",
				Sources: fromConfig("batch", "stats"),
			},
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "only write result rows matching these expressions",
				Validator: func(value string) error {
					_, err := filters.Parse(value)
					return err
				},
			},
			&cli.BoolFlag{
				Name:    "metrics",
				Aliases: []string{"m"},
				Usage:   "append metrics in Prometheus text format",
			},
		},
		Action: BatchCommandAction,
		Meta:   meta,
	}
	return b.Build()
}
