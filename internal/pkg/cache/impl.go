// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package cache

import (
	"time"
)

// CacheImpl is the surface the hub needs from ristretto. Integration builds
// swap in NoCache so every lookup hits the real path.
type CacheImpl interface {
	Get(key interface{}) (interface{}, bool)
	SetWithTTL(key, value interface{}, cost int64, ttl time.Duration) bool
	Wait()
	Close()
}
