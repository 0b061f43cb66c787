// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package output renders lookup results and cache statistics as a text
// table, JSON or YAML.
package output
