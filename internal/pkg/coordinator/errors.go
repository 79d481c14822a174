// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned when an operation is attempted on a coordinator
	// after teardown. An attempt that is still in flight when the coordinator
	// stops resolves to ErrStopped and its result is discarded.
	ErrStopped = errors.New("coordinator stopped")

	// ErrInvalidInterval is returned by New when the refresh interval is not positive.
	ErrInvalidInterval = errors.New("refresh interval must be positive")

	// ErrNoFetch is returned by New when no fetch function is given.
	ErrNoFetch = errors.New("fetch function is required")
)

// TransientError wraps a fetch failure that is expected to clear up on a
// later attempt: timeouts, connection resets, malformed payloads. The
// coordinator records it and keeps polling on schedule.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch failure for %s: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// AuthError wraps a fetch failure caused by rejected credentials. Scheduled
// refreshes halt until Reauthorized is called; retrying on a timer with the
// same credentials would only lock the account out.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization rejected for %s: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NotReadyError is returned by FirstRefresh when the initial fetch fails for
// any reason other than authorization. Callers treat it as a signal to retry
// setup later rather than to fail the source permanently.
type NotReadyError struct {
	Source string
	Err    error
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("source %s not ready: %v", e.Source, e.Err)
}

func (e *NotReadyError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsNotReady reports whether err is or wraps a NotReadyError.
func IsNotReady(err error) bool {
	var e *NotReadyError
	return errors.As(err, &e)
}
