// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/geocache/internal/output"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		delimiter string
		want      []Filter
		wantErr   bool
	}{
		{name: "empty spec"},
		{
			name: "exact match",
			spec: "op=forward",
			want: []Filter{{Key: "op", Operand: "=", Target: "forward"}},
		},
		{
			name: "negated with empty target",
			spec: "error!=",
			want: []Filter{{Key: "error", Operand: "=", Negate: true}},
		},
		{
			name: "multiple",
			spec: "op=reverse,latitude>40",
			want: []Filter{
				{Key: "op", Operand: "=", Target: "reverse"},
				{Key: "latitude", Operand: ">", Target: "40"},
			},
		},
		{
			name:      "custom delimiter",
			spec:      "query@a,b;op^f",
			delimiter: ";",
			want: []Filter{
				{Key: "query", Operand: "@", Target: "a,b"},
				{Key: "op", Operand: "^", Target: "f"},
			},
		},
		{name: "no operand", spec: "op", wantErr: true},
		{name: "no key", spec: "=forward", wantErr: true},
		{name: "bad regex", spec: "query/([", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delimiter != "" {
				t.Setenv("GEOCACHE_FILTER_DELIM", tt.delimiter)
			}
			got, err := Parse(tt.spec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_String(t *testing.T) {
	assert.Equal(t, "error!=", Filter{Key: "error", Operand: "=", Negate: true}.String())
	assert.Equal(t, "op^rev", Filter{Key: "op", Operand: "^", Target: "rev"}.String())
}

func TestCheckString(t *testing.T) {
	tests := []struct {
		value  string
		filter Filter
		want   bool
	}{
		{"paris", Filter{Operand: "=", Target: "paris"}, true},
		{"paris", Filter{Operand: "=", Target: "Paris"}, false},
		{"paris", Filter{Operand: "~", Target: "PARIS"}, true},
		{"paris", Filter{Operand: "~", Target: "PARIS", Negate: true}, false},
		{"reverse", Filter{Operand: "^", Target: "rev"}, true},
		{"10 Downing St", Filter{Operand: "@", Target: "Downing"}, true},
		{"10 Downing St", Filter{Operand: "/", Target: `^\d+ `}, true},
		{"b", Filter{Operand: ">", Target: "a"}, true},
		{"b", Filter{Operand: "<", Target: "a"}, false},
		{"x", Filter{Operand: "?", Target: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.value+tt.filter.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, checkString(tt.value, tt.filter))
		})
	}
}

func TestCheckNumeric(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		filter Filter
		want   bool
	}{
		{"equal", 48.8566, Filter{Operand: "=", Target: "48.8566"}, true},
		{"greater", 48.8566, Filter{Operand: ">", Target: "40"}, true},
		{"not greater", 48.8566, Filter{Operand: ">", Target: "40", Negate: true}, false},
		{"less", -74.04, Filter{Operand: "<", Target: "0"}, true},
		{"prefix falls back to string", 48.8566, Filter{Operand: "^", Target: "48."}, true},
		{"non-numeric target", 2, Filter{Operand: "=", Target: "two"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkNumeric(tt.value, tt.filter))
		})
	}
}

func TestApply(t *testing.T) {
	rows := []output.Row{
		{"line": 1, "op": "forward", "query": "paris", "latitude": 48.8566, "longitude": 2.3522},
		{"line": 2, "op": "reverse", "query": "40.7,-74.0", "address": "New York"},
		{"line": 3, "op": "forward", "query": "nowhere", "error": "RESULT_NOT_FOUND: no geocoding results found"},
		{"line": 4, "op": "flush", "query": "all"},
	}

	tests := []struct {
		name      string
		spec      string
		wantLines []int
	}{
		{name: "no filter", spec: "", wantLines: []int{1, 2, 3, 4}},
		{name: "op", spec: "op=forward", wantLines: []int{1, 3}},
		{name: "failures", spec: "error!=", wantLines: []int{3}},
		{name: "successes", spec: "error=", wantLines: []int{1, 2, 4}},
		{name: "numeric", spec: "latitude>40", wantLines: []int{1}},
		{name: "line number", spec: "line>2", wantLines: []int{3, 4}},
		{name: "and", spec: "op=forward,error=", wantLines: []int{1}},
		{name: "none", spec: "op=batch", wantLines: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(rows, tt.spec)
			require.NoError(t, err)

			var lines []int
			for _, r := range got {
				lines = append(lines, r["line"].(int))
			}
			assert.Equal(t, tt.wantLines, lines)
		})
	}

	_, err := Apply(rows, "nonsense")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
