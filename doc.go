// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// geocache is the main package for the geocache command line tool. It
// resolves addresses and coordinates through a remote geocoding provider and
// keeps the results in bounded, idle-expiring cache regions.
package main
