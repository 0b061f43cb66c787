// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package meta

import (
	"context"

	"github.com/staranto/geocache/internal/config"
)

// Meta are the meta-options that are available on all commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	// Namespace is the subcommand name, used as the config key prefix for
	// command-specific settings.
	Namespace string
}

// Command returns the subcommand name from Args, or "" if there is none.
func (m Meta) Command() string {
	if len(m.Args) > 1 {
		return m.Args[1]
	}
	return ""
}
