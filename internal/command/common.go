// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/cache"
	"github.com/staranto/geocache/internal/config"
	"github.com/staranto/geocache/internal/flush"
	"github.com/staranto/geocache/internal/lookup"
	"github.com/staranto/geocache/internal/meta"
	"github.com/staranto/geocache/internal/output"
	"github.com/staranto/geocache/internal/provider"
)

// NewProvider builds the provider used by every command. Tests replace it.
var NewProvider = func(cmd *cli.Command) (provider.Provider, error) {
	p, err := provider.NewPositionStack(
		provider.WithBaseURL(cmd.String("base-url")),
		provider.WithAccessKey(cmd.String("access-key")),
		provider.WithTimeout(cmd.Duration("timeout")),
		provider.WithRetries(cmd.Int("retries")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w (set --access-key or GEOCACHE_ACCESS_KEY)", err)
	}
	return p, nil
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// RegionConfig resolves a region's bounds: cache.<region>.* in the config
// file wins over the --max-entries and --idle flags.
func RegionConfig(cmd *cli.Command, region string) cache.Config {
	base := cache.Config{
		MaxEntries: cmd.Int("max-entries"),
		Idle:       cmd.Duration("idle"),
	}
	if n, err := config.GetInt("cache."+region+".max_entries", base.MaxEntries); err == nil {
		base.MaxEntries = n
	} else {
		log.Warnf("ignoring cache.%s.max_entries: %v", region, err)
	}
	if d, err := config.GetDuration("cache."+region+".idle", base.Idle); err == nil {
		base.Idle = d
	} else {
		log.Warnf("ignoring cache.%s.idle: %v", region, err)
	}
	return base
}

// NewService wires the store, provider and lookup service from flags.
func NewService(cmd *cli.Command) (*lookup.Service, error) {
	store, err := lookup.NewStore(
		RegionConfig(cmd, cache.Geocoding),
		RegionConfig(cmd, cache.ReverseGeocoding),
	)
	if err != nil {
		return nil, err
	}

	p, err := NewProvider(cmd)
	if err != nil {
		return nil, err
	}
	if log.Log.(*log.Logger).Level == log.DebugLevel { //nolint:forcetypeassert
		p = provider.NewDebug(p)
	}

	return lookup.New(p, store,
		lookup.WithUncachedAddress(cmd.String("uncached")),
		lookup.WithSingleFlight(cmd.Bool("singleflight")),
	)
}

// NewScheduler builds the flush scheduler for a store from flags.
func NewScheduler(cmd *cli.Command, store *cache.Store) *flush.Scheduler {
	opts := []flush.Option{
		flush.WithDefaultInterval(cmd.Duration("flush-interval")),
		flush.WithSweep(cmd.Duration("sweep")),
	}
	for _, region := range store.Regions() {
		if d, err := config.GetDuration("flush." + region + ".interval"); err == nil {
			opts = append(opts, flush.WithInterval(region, d))
		}
	}
	return flush.New(store, opts...)
}

// Writer returns where command output goes.
func Writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// Reader returns where batch input comes from.
func Reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

// OutputOptions collects the text rendering flags. Color defaults on only
// when writing to a terminal.
func OutputOptions(cmd *cli.Command) output.Options {
	color := output.IsTerminal(Writer(cmd))
	if cmd.IsSet("color") {
		color = cmd.Bool("color")
	}
	return output.Options{
		Titles: cmd.Bool("titles"),
		Color:  color,
	}
}

// LookupCommandBuilder constructs a cli.Command for the lookup subcommands
// using a consistent pattern: metadata, global and lookup flags, and the
// action.
type LookupCommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (b *LookupCommandBuilder) Build() *cli.Command {
	flags := append([]cli.Flag{}, b.Flags...)
	flags = append(flags, NewGlobalFlags(b.Name)...)
	flags = append(flags, NewLookupFlags()...)

	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		Metadata: map[string]any{
			"meta": b.Meta,
		},
		Flags:  flags,
		Action: b.Action,
	}
}
