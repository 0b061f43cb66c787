// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package geoerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the caller-facing classification of a lookup failure.
type Kind string

const (
	// InvalidRequest means the provider rejected the request or returned a
	// response missing required structure or fields.
	InvalidRequest Kind = "INVALID_REQUEST"
	// ResultNotFound means the provider returned a well-formed, empty result.
	ResultNotFound Kind = "RESULT_NOT_FOUND"
	// GenericFailure covers timeouts, unavailability and everything else.
	GenericFailure Kind = "GENERIC_FAILURE"
)

func (k Kind) String() string {
	return string(k)
}

// Error satisfies the error interface so a Kind can be used as an
// errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Error is a classified lookup failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare Kind, so errors.Is(err, geoerr.ResultNotFound) works
// through any amount of wrapping.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(message string) *Error {
	return New(InvalidRequest, message)
}

func Invalidf(format string, args ...any) *Error {
	return Newf(InvalidRequest, format, args...)
}

func NotFound(message string) *Error {
	return New(ResultNotFound, message)
}

func Generic(message string) *Error {
	return New(GenericFailure, message)
}

func Genericf(format string, args ...any) *Error {
	return Newf(GenericFailure, format, args...)
}

// Wrap classifies err as kind. A nil err yields nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns a copy of err tagged with the operation name. Errors outside
// the taxonomy are classified first.
func WithOp(err error, op string) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		cp := *ge
		cp.Op = op
		return &cp
	}
	cp := *Classify(err)
	cp.Op = op
	return &cp
}

// KindOf returns the classification of err. Anything outside the taxonomy
// is a GenericFailure.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return GenericFailure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusError is returned by transports when the provider answered with a
// non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider returned %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("provider returned %s", e.Status)
}

// Classify maps a raw failure to the taxonomy. Taxonomy errors pass through
// unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 400 && se.StatusCode < 500 {
			return Wrap(err, InvalidRequest, "provider rejected the request")
		}
		return Wrap(err, GenericFailure, "provider unavailable")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, GenericFailure, "provider request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, GenericFailure, "provider request canceled")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Wrap(err, GenericFailure, "provider request timed out")
	}

	return Wrap(err, GenericFailure, "provider request failed")
}

// HTTPStatus is the status code a boundary layer should answer with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidRequest:
		return http.StatusBadRequest
	case ResultNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode is the process exit status for a failed command-line lookup.
func ExitCode(kind Kind) int {
	switch kind {
	case InvalidRequest:
		return 3
	case ResultNotFound:
		return 4
	default:
		return 5
	}
}
