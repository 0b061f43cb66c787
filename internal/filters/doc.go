// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package filters narrows batch result rows with --filter expressions such
// as "op=forward", "latitude>40" or "error!=".
package filters
