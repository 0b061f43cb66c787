// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/lookup"
	"github.com/staranto/geocache/internal/meta"
	"github.com/staranto/geocache/internal/output"
)

var forwardColumns = []string{"query", "latitude", "longitude"}

func forwardRow(query string, f lookup.Forward) output.Row {
	return output.Row{"query": query, "latitude": f.Latitude, "longitude": f.Longitude}
}

// ForwardCommandAction resolves one address. Remaining args are joined with
// spaces so the address need not be quoted.
func ForwardCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	address := strings.Join(cmd.Args().Slice(), " ")
	if address == "" {
		return errors.New("an address is required")
	}

	svc, err := NewService(cmd)
	if err != nil {
		return err
	}

	result, err := svc.ResolveForward(ctx, address)
	if err != nil {
		return err
	}

	return output.Object(Writer(cmd), cmd.String("output"), forwardColumns,
		forwardRow(address, result), OutputOptions(cmd))
}

// ForwardCommandBuilder constructs the cli.Command for "forward".
func ForwardCommandBuilder(meta meta.Meta) *cli.Command {
	b := &LookupCommandBuilder{
		Name:      "forward",
		Usage:     "address to coordinates",
		UsageText: "geocache forward <address> [options]",
		Action:    ForwardCommandAction,
		Meta:      meta,
	}
	return b.Build()
}
