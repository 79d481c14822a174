// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

// Runtime tunes the Go runtime for the host the hub runs on. Both knobs
// default to zero, which leaves the runtime untouched; small boards with
// little memory can pin a soft memory limit here instead of GOMEMLIMIT.
type Runtime struct {
	GCPercent   int   `config:"gc_percent"`
	MemoryLimit int64 `config:"memory_limit"`
}
