// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/cache"
	"github.com/staranto/geocache/internal/config"
	"github.com/staranto/geocache/internal/flush"
	"github.com/staranto/geocache/internal/lookup"
	"github.com/staranto/geocache/internal/provider"
)

func init() {
	cfg, _ = config.Load("")
}

var cfg config.Type

// fromConfig returns a source chain that checks ns.key, then key, in the
// config file.
func fromConfig(ns, key string, env ...string) cli.ValueSourceChain {
	var srcs []cli.ValueSource
	for _, e := range env {
		srcs = append(srcs, cli.EnvVar(e))
	}
	chain := cli.NewValueSourceChain(srcs...)
	if ns != "" {
		chain.Chain = append(chain.Chain, yaml.YAML(ns+"."+key, altsrc.StringSourcer(cfg.Source)))
	}
	chain.Chain = append(chain.Chain, yaml.YAML(key, altsrc.StringSourcer(cfg.Source)))
	return chain
}

// NewGlobalFlags returns the output flags shared by every lookup command.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	ns := ""
	if len(params) > 0 {
		ns = params[0]
	}

	flags = []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output (default when stdout is a terminal)",
			Sources: fromConfig(ns, "color"),
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: fromConfig(ns, "output", "GEOCACHE_OUTPUT"),
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OutputValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: fromConfig(ns, "titles"),
			Value:   false,
		},
	}

	return
}

// NewLookupFlags returns the cache, scheduler and provider flags used to
// build a lookup service.
func NewLookupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "max-entries",
			Usage:   "maximum entries per cache region",
			Sources: fromConfig("", "cache.max_entries", "GEOCACHE_MAX_ENTRIES"),
			Value:   cache.DefaultMaxEntries,
			Validator: func(value int) error {
				return FlagValidators(value, PositiveValidator)
			},
		},
		&cli.DurationFlag{
			Name:    "idle",
			Usage:   "evict entries not read for this long (0 disables)",
			Sources: fromConfig("", "cache.idle", "GEOCACHE_IDLE"),
			Value:   cache.DefaultIdle,
			Validator: func(value time.Duration) error {
				return FlagValidators(value, NonNegativeValidator)
			},
		},
		&cli.DurationFlag{
			Name:    "flush-interval",
			Usage:   "empty every cache region this often (0 disables)",
			Sources: fromConfig("", "flush.interval", "GEOCACHE_FLUSH_INTERVAL"),
			Value:   flush.DefaultInterval,
			Validator: func(value time.Duration) error {
				return FlagValidators(value, NonNegativeValidator)
			},
		},
		&cli.DurationFlag{
			Name:    "sweep",
			Usage:   "purge idle entries this often (0 disables)",
			Hidden:  true,
			Sources: fromConfig("", "flush.sweep"),
			Value:   flush.DefaultSweep,
			Validator: func(value time.Duration) error {
				return FlagValidators(value, NonNegativeValidator)
			},
		},
		&cli.BoolFlag{
			Name:    "singleflight",
			Usage:   "share one provider call between concurrent identical misses",
			Sources: fromConfig("", "lookup.singleflight", "GEOCACHE_SINGLEFLIGHT"),
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "uncached",
			Usage:   "forward query that is never cached",
			Hidden:  true,
			Sources: fromConfig("", "lookup.uncached_address"),
			Value:   lookup.DefaultUncachedAddress,
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "geocoding provider base URL",
			Sources: fromConfig("", "provider.base_url", "GEOCACHE_BASE_URL"),
			Value:   provider.DefaultBaseURL,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:        "access-key",
			Usage:       "geocoding provider access key",
			Sources:     fromConfig("", "provider.access_key", "GEOCACHE_ACCESS_KEY"),
			HideDefault: true,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "provider request timeout",
			Sources: fromConfig("", "provider.timeout", "GEOCACHE_TIMEOUT"),
			Value:   provider.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:    "retries",
			Usage:   "provider retries on server errors",
			Hidden:  true,
			Sources: fromConfig("", "provider.retries"),
			Value:   provider.DefaultRetries,
			Validator: func(value int) error {
				return FlagValidators(value, NonNegativeValidator)
			},
		},
	}
}
