// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/staranto/geocache/internal/geoerr"
)

const (
	DefaultBaseURL = "https://api.positionstack.com/v1"
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2

	// Error bodies beyond this are truncated before they reach a message.
	maxErrorBody = 512
)

var ErrNoAccessKey = errors.New("provider access key is not set")

// PositionStack fetches forward and reverse results from a
// positionstack-compatible HTTP API.
type PositionStack struct {
	baseURL   string
	accessKey string
	timeout   time.Duration
	retries   int
	waitMin   time.Duration
	waitMax   time.Duration
	client    *retryablehttp.Client
}

type PositionStackOption func(*PositionStack)

func WithBaseURL(u string) PositionStackOption {
	return func(p *PositionStack) { p.baseURL = strings.TrimRight(u, "/") }
}

func WithAccessKey(k string) PositionStackOption {
	return func(p *PositionStack) { p.accessKey = k }
}

// WithTimeout bounds each attempt. Zero keeps the default.
func WithTimeout(d time.Duration) PositionStackOption {
	return func(p *PositionStack) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRetries sets how many times a 5xx or connection failure is retried.
func WithRetries(n int) PositionStackOption {
	return func(p *PositionStack) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithRetryWait sets the backoff bounds between attempts.
func WithRetryWait(minWait, maxWait time.Duration) PositionStackOption {
	return func(p *PositionStack) {
		p.waitMin = minWait
		p.waitMax = maxWait
	}
}

// MaxDuration is the worst case for one fetch: every attempt timing out plus
// the longest backoff between them.
func (p *PositionStack) MaxDuration() time.Duration {
	return time.Duration(p.retries+1)*p.timeout + time.Duration(p.retries)*p.waitMax
}

// NewPositionStack builds the HTTP provider. An access key is required.
func NewPositionStack(opts ...PositionStackOption) (*PositionStack, error) {
	p := &PositionStack{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
		waitMin: 250 * time.Millisecond, //nolint:mnd
		waitMax: 2 * time.Second,        //nolint:mnd
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.accessKey == "" {
		return nil, ErrNoAccessKey
	}
	if _, err := url.Parse(p.baseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base url %q: %w", p.baseURL, err)
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = p.timeout

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = p.retries
	rc.RetryWaitMin = p.waitMin
	rc.RetryWaitMax = p.waitMax
	rc.Logger = leveledLogger{}
	// Hand the final response back instead of a "giving up" error so the
	// status can be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	p.client = rc

	return p, nil
}

// FetchForward implements Provider.
func (p *PositionStack) FetchForward(ctx context.Context, address string) ([]byte, error) {
	return p.fetch(ctx, "forward", address)
}

// FetchReverse implements Provider. The coordinates are sent as "lat,lon".
func (p *PositionStack) FetchReverse(ctx context.Context, lat, lon string) ([]byte, error) {
	return p.fetch(ctx, "reverse", lat+","+lon)
}

// URL returns the request URL for an endpoint and query.
func (p *PositionStack) URL(endpoint, query string) string {
	v := url.Values{}
	v.Set("access_key", p.accessKey)
	v.Set("query", query)
	return p.baseURL + "/" + endpoint + "?" + v.Encode()
}

func (p *PositionStack) fetch(ctx context.Context, endpoint, query string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.URL(endpoint, query), nil)
	if err != nil {
		return nil, geoerr.Wrap(err, geoerr.InvalidRequest, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, geoerr.Classify(err)
	}
	defer resp.Body.Close()

	var doc bytes.Buffer
	if _, err := doc.ReadFrom(resp.Body); err != nil {
		return nil, geoerr.Classify(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &geoerr.StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       errorMessage(doc.Bytes()),
		}
		return nil, geoerr.Classify(se)
	}

	return doc.Bytes(), nil
}

// errorMessage pulls the provider's own message out of an error body, falling
// back to the raw (truncated) text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message"); m.Type == gjson.String {
			return m.String()
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// leveledLogger routes retryablehttp's logging through apex/log.
type leveledLogger struct{}

func (leveledLogger) fields(kv []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		if k == "url" {
			kv[i+1] = redact(fmt.Sprint(kv[i+1]))
		}
		f[k] = kv[i+1]
	}
	return f
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { log.WithFields(l.fields(kv)).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { log.WithFields(l.fields(kv)).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { log.WithFields(l.fields(kv)).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { log.WithFields(l.fields(kv)).Warn(msg) }

// redact hides the access key in a logged URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("access_key") {
		q.Set("access_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

var _ Provider = (*PositionStack)(nil)
