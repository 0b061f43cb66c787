// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/staranto/geocache/internal/cache"
	"github.com/staranto/geocache/internal/output"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	if s, ok := value.(string); ok && slices.Contains(output.Formats, s) {
		return nil
	}
	return fmt.Errorf("must be one of %v", output.Formats)
}

func PositiveValidator(value any) error {
	if n, ok := value.(int); !ok || n <= 0 {
		return errors.New("must be greater than 0")
	}
	return nil
}

func NonNegativeValidator(value any) error {
	switch v := value.(type) {
	case int:
		if v >= 0 {
			return nil
		}
	case time.Duration:
		if v >= 0 {
			return nil
		}
	}
	return errors.New("must not be negative")
}

func RegionValidator(value any) error {
	s, _ := value.(string)
	if s == "all" || s == cache.Geocoding || s == cache.ReverseGeocoding {
		return nil
	}
	return fmt.Errorf("must be one of [%s %s all]", cache.Geocoding, cache.ReverseGeocoding)
}
