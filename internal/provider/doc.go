// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package provider talks to the external geocoding service. PositionStack is
// the HTTP implementation; Debug wraps any Provider with per-call logging.
package provider
