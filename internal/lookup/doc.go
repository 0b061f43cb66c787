// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package lookup decides what gets cached. It checks the geocoding and
// reverse-geocoding regions, calls the provider on a miss, parses the
// response and stores only successful results.
package lookup
