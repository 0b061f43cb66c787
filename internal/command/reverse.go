// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/lookup"
	"github.com/staranto/geocache/internal/meta"
	"github.com/staranto/geocache/internal/output"
)

var reverseColumns = []string{"query", "address"}

func reverseRow(lat, lon string, r lookup.Reverse) output.Row {
	return output.Row{"query": lat + "," + lon, "address": r.Address}
}

// ReverseCommandAction resolves one latitude/longitude pair.
func ReverseCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	args := cmd.Args().Slice()
	if len(args) != 2 { //nolint:mnd
		return errors.New("latitude and longitude are required")
	}

	svc, err := NewService(cmd)
	if err != nil {
		return err
	}

	result, err := svc.ResolveReverse(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	return output.Object(Writer(cmd), cmd.String("output"), reverseColumns,
		reverseRow(args[0], args[1], result), OutputOptions(cmd))
}

// ReverseCommandBuilder constructs the cli.Command for "reverse".
func ReverseCommandBuilder(meta meta.Meta) *cli.Command {
	b := &LookupCommandBuilder{
		Name:      "reverse",
		Usage:     "coordinates to address",
		UsageText: "geocache reverse [options] [--] <latitude> <longitude>",
		Action:    ReverseCommandAction,
		Meta:      meta,
	}
	return b.Build()
}
