// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/staranto/geocache/internal/command"
	"github.com/staranto/geocache/internal/geoerr"
	mylog "github.com/staranto/geocache/internal/log"
	"github.com/staranto/geocache/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain(os.Args))
}

func realMain(args []string) int {
	mylog.InitLogger()

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	return 0
}

// exitCode maps a lookup failure to its kind's exit code. Anything else is a
// usage or batch failure.
func exitCode(err error) int {
	var ge *geoerr.Error
	if errors.As(err, &ge) {
		return geoerr.ExitCode(ge.Kind)
	}
	return 2 //nolint:mnd
}
