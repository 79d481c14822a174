// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package log

import (
	"testing"

	"github.com/rs/zerolog"
)

// SetLogger returns a debug-level logger that writes through the test's
// output so log lines interleave with failures.
func SetLogger(tb testing.TB) zerolog.Logger {
	tb.Helper()
	tw := zerolog.TestWriter{T: tb, Frame: 4}
	return zerolog.New(tw).Level(zerolog.DebugLevel)
}
