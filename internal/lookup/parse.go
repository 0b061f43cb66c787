// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"github.com/tidwall/gjson"

	"github.com/staranto/geocache/internal/geoerr"
)

// firstResult validates the envelope and returns data[0]. A body that is not
// JSON, has no data key, or whose data is not a list was not understood; a
// null or empty data list is a genuine empty result.
func firstResult(body []byte, notFound string) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, geoerr.Invalid("provider response is not valid JSON")
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return gjson.Result{}, geoerr.Invalid("provider response has no data")
	}
	if data.Type == gjson.Null {
		return gjson.Result{}, geoerr.NotFound(notFound)
	}
	if !data.IsArray() {
		return gjson.Result{}, geoerr.Invalid("provider response data is not a list")
	}

	first := data.Get("0")
	if !first.Exists() {
		return gjson.Result{}, geoerr.NotFound(notFound)
	}
	return first, nil
}

// ParseForward extracts coordinates from a forward response.
func ParseForward(body []byte) (Forward, error) {
	first, err := firstResult(body, "no geocoding results found")
	if err != nil {
		return Forward{}, err
	}

	lat := first.Get("latitude")
	if lat.Type != gjson.Number {
		return Forward{}, geoerr.Invalid("latitude is missing or invalid")
	}
	lon := first.Get("longitude")
	if lon.Type != gjson.Number {
		return Forward{}, geoerr.Invalid("longitude is missing or invalid")
	}

	return Forward{Latitude: lat.Float(), Longitude: lon.Float()}, nil
}

// ParseReverse extracts the formatted address from a reverse response.
func ParseReverse(body []byte) (Reverse, error) {
	first, err := firstResult(body, "no reverse geocoding results found")
	if err != nil {
		return Reverse{}, err
	}

	label := first.Get("label")
	if label.Type != gjson.String || label.String() == "" {
		return Reverse{}, geoerr.Invalid("label is missing or invalid")
	}

	return Reverse{Address: label.String()}, nil
}
