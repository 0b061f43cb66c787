// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/geocache/internal/output"
)

// filterRegex splits an expression into key, operand and target. Operands are
// one of = ^ ~ < > @ or /, optionally prefixed with '!'.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

var ErrInvalidFilter = errors.New("invalid filter")

// Filter is a single parsed --filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

func (f Filter) String() string {
	neg := ""
	if f.Negate {
		neg = "!"
	}
	return f.Key + neg + f.Operand + f.Target
}

// Parse splits spec on "," (or $GEOCACHE_FILTER_DELIM) and parses each
// expression. An empty spec yields no filters.
func Parse(spec string) ([]Filter, error) {
	if spec == "" {
		return nil, nil
	}

	delim := ","
	if d, ok := os.LookupEnv("GEOCACHE_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	var filters []Filter //nolint:prealloc
	for _, expr := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(expr)
		if parts == nil || parts[1] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, expr)
		}

		negate := strings.HasPrefix(parts[2], "!")
		f := Filter{
			Key:     strings.TrimSpace(parts[1]),
			Negate:  negate,
			Operand: strings.TrimPrefix(parts[2], "!"),
			Target:  parts[3],
		}
		if f.Operand == "/" {
			if _, err := regexp.Compile(f.Target); err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFilter, expr, err)
			}
		}
		filters = append(filters, f)
	}

	return filters, nil
}

// Apply returns the rows matching every expression in spec, in their
// original order.
func Apply(rows []output.Row, spec string) ([]output.Row, error) {
	filters, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return rows, nil
	}

	var kept []output.Row //nolint:prealloc
	for _, row := range rows {
		if Match(row, filters) {
			kept = append(kept, row)
		}
	}
	log.Debugf("filter %q kept %d of %d rows", spec, len(kept), len(rows))
	return kept, nil
}

// Match reports whether row satisfies every filter. A column missing from the
// row compares as the empty string, so "error=" selects rows that did not
// fail.
func Match(row output.Row, filters []Filter) bool {
	for _, f := range filters {
		var ok bool
		switch v := row[f.Key].(type) {
		case nil:
			ok = checkString("", f)
		case string:
			ok = checkString(v, f)
		case bool:
			ok = checkString(strconv.FormatBool(v), f)
		default:
			if num, isNum := toFloat64(v); isNum {
				ok = checkNumeric(num, f)
			} else {
				ok = checkString(fmt.Sprintf("%v", v), f)
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// checkNumeric compares using numeric semantics. Supported operands are =, >
// and <. A non-numeric target falls back to a string comparison.
func checkNumeric(value float64, f Filter) bool {
	tgt, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		return checkString(strconv.FormatFloat(value, 'f', -1, 64), f)
	}

	switch f.Operand {
	case "=":
		return (value == tgt) == !f.Negate
	case ">":
		return (value > tgt) == !f.Negate
	case "<":
		return (value < tgt) == !f.Negate
	default:
		return checkString(strconv.FormatFloat(value, 'f', -1, 64), f)
	}
}

func checkString(value string, f Filter) bool {
	switch f.Operand {
	case "=":
		return value == f.Target == !f.Negate
	case "~":
		return strings.EqualFold(value, f.Target) == !f.Negate
	case "^":
		return strings.HasPrefix(value, f.Target) == !f.Negate
	case ">":
		return value > f.Target == !f.Negate
	case "<":
		return value < f.Target == !f.Negate
	case "@":
		return strings.Contains(value, f.Target) == !f.Negate
	case "/":
		matched, err := regexp.MatchString(f.Target, value)
		if err != nil {
			log.Error("invalid regex: " + f.Target)
			return false
		}
		return matched == !f.Negate
	default:
		log.Error("unsupported filtering operand: " + f.Operand)
		return false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
