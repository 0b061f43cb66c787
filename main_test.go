// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staranto/geocache/internal/geoerr"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid", err: geoerr.Invalid("bad"), want: geoerr.ExitCode(geoerr.InvalidRequest)},
		{name: "not found", err: geoerr.NotFound("none"), want: geoerr.ExitCode(geoerr.ResultNotFound)},
		{name: "wrapped", err: fmt.Errorf("forward: %w", geoerr.Generic("down")), want: geoerr.ExitCode(geoerr.GenericFailure)},
		{name: "plain", err: errors.New("2 of 3 batch lines failed"), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRealMain_Version(t *testing.T) {
	assert.Zero(t, realMain([]string{"geocache", "--version"}))
}
