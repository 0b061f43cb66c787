// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"time"
)

// Provider performs the network lookup behind the cache. Implementations
// return the raw JSON body; parsing and classification of its contents is the
// caller's job. Transport failures should be classified with geoerr.Classify.
type Provider interface {
	FetchForward(ctx context.Context, address string) ([]byte, error)
	FetchReverse(ctx context.Context, lat, lon string) ([]byte, error)
}

// Func adapts a pair of functions into a Provider.
type Func struct {
	Forward func(ctx context.Context, address string) ([]byte, error)
	Reverse func(ctx context.Context, lat, lon string) ([]byte, error)
}

func (f Func) FetchForward(ctx context.Context, address string) ([]byte, error) {
	return f.Forward(ctx, address)
}

func (f Func) FetchReverse(ctx context.Context, lat, lon string) ([]byte, error) {
	return f.Reverse(ctx, lat, lon)
}

// Bounded is implemented by providers that know the longest one fetch,
// retries included, can take.
type Bounded interface {
	MaxDuration() time.Duration
}

// MaxDuration returns p's bound, or zero when p does not declare one.
func MaxDuration(p Provider) time.Duration {
	if b, ok := p.(Bounded); ok {
		return b.MaxDuration()
	}
	return 0
}
