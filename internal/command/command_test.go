// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/geoerr"
	"github.com/staranto/geocache/internal/provider"
)

// countingProvider answers forward lookups for paris and goa, and reverse
// lookups for any pair, counting calls per query.
type countingProvider struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingProvider) count(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[q]++
}

func (c *countingProvider) Calls(q string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[q]
}

func (c *countingProvider) Provider() provider.Provider {
	return provider.Func{
		Forward: func(_ context.Context, address string) ([]byte, error) {
			c.count(address)
			switch strings.ToLower(address) {
			case "paris":
				return []byte(`{"data":[{"latitude":48.8566,"longitude":2.3522}]}`), nil
			case "goa":
				return []byte(`{"data":[{"latitude":15.2993,"longitude":74.124}]}`), nil
			default:
				return []byte(`{"data":[]}`), nil
			}
		},
		Reverse: func(_ context.Context, lat, lon string) ([]byte, error) {
			c.count(lat + "|" + lon)
			return []byte(`{"data":[{"label":"` + lat + "/" + lon + `"}]}`), nil
		},
	}
}

func withFakeProvider(t *testing.T) *countingProvider {
	t.Helper()
	cp := &countingProvider{calls: map[string]int{}}
	orig := NewProvider
	NewProvider = func(*cli.Command) (provider.Provider, error) { return cp.Provider(), nil }
	t.Cleanup(func() { NewProvider = orig })
	return cp
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	args = append([]string{"geocache"}, args...)

	app, err := InitApp(context.Background(), args)
	require.NoError(t, err)

	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.Reader = strings.NewReader(stdin)

	err = app.Run(context.Background(), args)
	return out.String(), err
}

func TestForwardCommand(t *testing.T) {
	withFakeProvider(t)

	out, err := run(t, "", "forward", "-o", "json", "paris")
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"paris","latitude":48.8566,"longitude":2.3522}`, out)

	out, err = run(t, "", "forward", "-o", "yaml", "paris")
	require.NoError(t, err)
	assert.Equal(t, "query: paris\nlatitude: 48.8566\nlongitude: 2.3522\n", out)
}

func TestForwardCommand_JoinsArgs(t *testing.T) {
	cp := withFakeProvider(t)

	_, err := run(t, "", "forward", "-o", "json", "10", "Downing", "St")
	require.Error(t, err)
	assert.Equal(t, 1, cp.Calls("10 Downing St"))
	assert.Equal(t, geoerr.ResultNotFound, geoerr.KindOf(err))
}

func TestForwardCommand_NoAddress(t *testing.T) {
	withFakeProvider(t)

	_, err := run(t, "", "forward")
	assert.ErrorContains(t, err, "an address is required")
}

func TestReverseCommand(t *testing.T) {
	withFakeProvider(t)

	out, err := run(t, "", "reverse", "-o", "json", "48.85", "2.35")
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"48.85,2.35","address":"48.85/2.35"}`, out)

	_, err = run(t, "", "reverse", "48.85")
	assert.ErrorContains(t, err, "latitude and longitude are required")
}

func TestOutputFlagValidation(t *testing.T) {
	withFakeProvider(t)

	_, err := run(t, "", "forward", "-o", "xml", "paris")
	assert.ErrorContains(t, err, "must be one of")
}

const batchInput = `# warm up
forward paris
forward paris
forward goa
forward GOA
reverse 1 23
reverse 12 3
reverse 1 23

flush geocoding
forward paris
forward nowhere
bogus line
`

func TestBatchCommand(t *testing.T) {
	cp := withFakeProvider(t)

	out, err := run(t, batchInput, "batch", "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 11 batch lines failed")

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 11)

	assert.Equal(t, "forward", rows[0]["op"])
	assert.InDelta(t, 2.0, rows[0]["line"], 0)
	assert.InDelta(t, 48.8566, rows[0]["latitude"], 1e-9)
	assert.Equal(t, "1,23", rows[4]["query"])
	assert.Equal(t, "1/23", rows[4]["address"])
	assert.Equal(t, "12/3", rows[5]["address"])
	assert.Equal(t, "flush", rows[7]["op"])
	assert.Contains(t, rows[9]["error"], "RESULT_NOT_FOUND")
	assert.Contains(t, rows[10]["error"], `unknown directive "bogus"`)

	// paris: one miss, one hit, then a miss after the flush.
	assert.Equal(t, 2, cp.Calls("paris"))
	// The uncached address always reaches the provider.
	assert.Equal(t, 1, cp.Calls("goa"))
	assert.Equal(t, 1, cp.Calls("GOA"))
	// Structured reverse keys do not collide.
	assert.Equal(t, 1, cp.Calls("1|23"))
	assert.Equal(t, 1, cp.Calls("12|3"))
}

func TestBatchCommand_Stats(t *testing.T) {
	withFakeProvider(t)

	out, err := run(t, "forward paris\nforward paris\nreverse 1 2\n", "batch", "--stats", "-o", "json")
	require.NoError(t, err)

	var doc struct {
		Results []map[string]any `json:"results"`
		Stats   []map[string]any `json:"stats"`
		Latency []map[string]any `json:"latency"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.Results, 3)

	require.Len(t, doc.Stats, 2)
	assert.Equal(t, "geocoding", doc.Stats[0]["region"])
	assert.InDelta(t, 1.0, doc.Stats[0]["hits"], 0)
	assert.InDelta(t, 1.0, doc.Stats[0]["misses"], 0)
	assert.InDelta(t, 1.0, doc.Stats[0]["size"], 0)
	assert.Equal(t, "reverse-geocoding", doc.Stats[1]["region"])

	require.Len(t, doc.Latency, 2)
	assert.Equal(t, "forward", doc.Latency[0]["operation"])
	assert.InDelta(t, 1.0, doc.Latency[0]["count"], 0)
}

func TestBatchCommand_StatsText(t *testing.T) {
	withFakeProvider(t)

	out, err := run(t, "forward paris\n", "batch", "--stats", "--titles")
	require.NoError(t, err)
	assert.Contains(t, out, "evictions")
	assert.Contains(t, out, "reverse-geocoding")
	assert.Contains(t, out, "p99_ms")
}

func TestBatchCommand_Metrics(t *testing.T) {
	withFakeProvider(t)

	out, err := run(t, "forward paris\nforward paris\n", "batch", "--metrics", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `geocache_cache_hits_total{region="geocoding"} 1`)
	assert.Contains(t, out, `geocache_cache_entries{region="reverse-geocoding"} 0`)
	assert.Contains(t, out, `geocache_provider_latency_milliseconds_count{operation="forward"} 1`)
}

func TestBatchCommand_SmallCache(t *testing.T) {
	cp := withFakeProvider(t)

	in := "reverse 1 1\nreverse 2 2\nreverse 1 1\n"
	_, err := run(t, in, "batch", "--max-entries", "1", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Calls("1|1"))
}

func TestBatchCommand_IdleFlagParses(t *testing.T) {
	withFakeProvider(t)

	_, err := run(t, "forward paris\n", "batch", "--idle", "1s", "--flush-interval", "1h", "-o", "json")
	assert.NoError(t, err)

	_, err = run(t, "", "batch", "--max-entries", "0")
	assert.Error(t, err)

	_, err = run(t, "", "batch", "--idle=-1s")
	assert.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	out, err := run(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "complete -F _geocache geocache")

	out, err = run(t, "", "completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "compdef _geocache geocache")
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		validator FlagValidatorType
		wantErr   bool
	}{
		{name: "output text", value: "text", validator: OutputValidator},
		{name: "output yaml", value: "yaml", validator: OutputValidator},
		{name: "output raw", value: "raw", validator: OutputValidator, wantErr: true},
		{name: "jammed", value: "--titles", validator: JammedFlagValidator, wantErr: true},
		{name: "not jammed", value: "http://localhost", validator: JammedFlagValidator},
		{name: "positive", value: 1, validator: PositiveValidator},
		{name: "zero not positive", value: 0, validator: PositiveValidator, wantErr: true},
		{name: "zero duration", value: time.Duration(0), validator: NonNegativeValidator},
		{name: "negative duration", value: -time.Second, validator: NonNegativeValidator, wantErr: true},
		{name: "negative int", value: -1, validator: NonNegativeValidator, wantErr: true},
		{name: "region", value: "reverse-geocoding", validator: RegionValidator},
		{name: "all regions", value: "all", validator: RegionValidator},
		{name: "bad region", value: "forward", validator: RegionValidator, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FlagValidators(tt.value, tt.validator)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBatchCommand_Filter(t *testing.T) {
	withFakeProvider(t)

	out, err := run(t, batchInput, "batch", "-o", "json", "--filter", "error!=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 11 batch lines failed")

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "nowhere", rows[0]["query"])

	out, err = run(t, "forward paris\nreverse 1 2\n", "batch", "-o", "json", "-f", "op=reverse")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "1,2", rows[0]["query"])

	_, err = run(t, "", "batch", "--filter", "nonsense")
	assert.Error(t, err)
}
