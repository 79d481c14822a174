// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package testing

import (
	"context"
	"testing"
	"time"

	"github.com/hearthlab/hearthd/internal/pkg/sleep"
)

// RetryFunc is retried until it returns nil or the attempts run out.
type RetryFunc func(context.Context) error

// RetryOption tunes Retry.
type RetryOption func(o *retryOptions)

type retryOptions struct {
	sleep time.Duration
	count int
}

// RetrySleep sets the pause between attempts.
func RetrySleep(sleep time.Duration) RetryOption {
	return func(o *retryOptions) {
		o.sleep = sleep
	}
}

// RetryCount sets how many attempts are made before failing the test.
func RetryCount(count int) RetryOption {
	return func(o *retryOptions) {
		o.count = count
	}
}

// Retry runs f until it succeeds, and fails the test with the last error
// when the attempts run out. Defaults to 3 attempts 100ms apart.
func Retry(t *testing.T, ctx context.Context, f RetryFunc, opts ...RetryOption) {
	t.Helper()

	o := retryOptions{
		sleep: 100 * time.Millisecond,
		count: 3,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	for i := 0; i < o.count; i++ {
		if err = f(ctx); err == nil {
			return
		}
		_ = sleep.WithContext(ctx, o.sleep)
	}
	t.Fatal(err)
}
