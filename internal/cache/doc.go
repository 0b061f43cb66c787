// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package cache provides the in-memory regions that hold geocoding results.
// Each region is bounded by entry count and by how long an entry may go
// unread. A Store groups the regions so they can be flushed, swept and
// reported on by name.
package cache
