// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/staranto/geocache/internal/geoerr"
)

// Debug wraps any Provider and logs each fetch and its outcome at debug level.
type Debug struct {
	provider Provider
}

// NewDebug wraps p.
func NewDebug(p Provider) *Debug {
	return &Debug{provider: p}
}

// MaxDuration reports the wrapped provider's bound.
func (d *Debug) MaxDuration() time.Duration {
	return MaxDuration(d.provider)
}

func (d *Debug) FetchForward(ctx context.Context, address string) ([]byte, error) {
	ctxLog := log.WithField("address", address)
	ctxLog.Debug("FetchForward")

	start := time.Now()
	body, err := d.provider.FetchForward(ctx, address)
	d.done(ctxLog, "FetchForward", start, body, err)
	return body, err
}

func (d *Debug) FetchReverse(ctx context.Context, lat, lon string) ([]byte, error) {
	ctxLog := log.WithFields(log.Fields{"lat": lat, "lon": lon})
	ctxLog.Debug("FetchReverse")

	start := time.Now()
	body, err := d.provider.FetchReverse(ctx, lat, lon)
	d.done(ctxLog, "FetchReverse", start, body, err)
	return body, err
}

func (d *Debug) done(ctxLog *log.Entry, op string, start time.Time, body []byte, err error) {
	ctxLog = ctxLog.WithField("elapsed", time.Since(start).Round(time.Microsecond))
	if err != nil {
		ctxLog.WithError(err).WithField("kind", geoerr.KindOf(err)).Debugf("%s: ERROR", op)
		return
	}
	ctxLog.WithField("bytes", len(body)).Debugf("%s: OK", op)
}

var _ Provider = (*Debug)(nil)
