// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package flush periodically empties cache regions so that frequently read
// entries cannot live forever, and sweeps idle entries in between.
package flush
