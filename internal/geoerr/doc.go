// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package geoerr classifies lookup failures into the three kinds callers act
// on: InvalidRequest, ResultNotFound and GenericFailure. Transports and parsers
// return the narrowest kind that applies; raw transport errors never cross the
// lookup boundary unclassified.
package geoerr
