// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

import (
	"errors"
	"time"

	"github.com/pbnjay/memory"
)

const (
	defaultCacheNumCounters = 100000

	minCacheMaxCost = 16 * 1024 * 1024  // 16 MiB
	maxCacheMaxCost = 128 * 1024 * 1024 // 128 MiB

	defaultAPIKeyTTL    = 15 * time.Minute
	defaultAPIKeyJitter = 5 * time.Minute
)

// Cache sizes the verified-key cache.
type Cache struct {
	NumCounters  int64         `config:"num_counters"`
	MaxCost      int64         `config:"max_cost"`
	APIKeyTTL    time.Duration `config:"api_key_ttl"`
	APIKeyJitter time.Duration `config:"api_key_jitter"`
}

func (c *Cache) InitDefaults() {
	c.NumCounters = defaultCacheNumCounters
	c.MaxCost = defaultMaxCost()
	c.APIKeyTTL = defaultAPIKeyTTL
	c.APIKeyJitter = defaultAPIKeyJitter
}

// Validate ensures that the configuration is valid.
func (c *Cache) Validate() error {
	if c.APIKeyTTL <= 0 {
		return errors.New("api_key_ttl must be positive")
	}
	if c.APIKeyJitter < 0 || c.APIKeyJitter >= c.APIKeyTTL {
		return errors.New("api_key_jitter must be smaller than api_key_ttl")
	}
	return nil
}

// defaultMaxCost sizes the cache off system memory: half a percent of RAM,
// clamped to a sane range for small boards and big hosts alike.
func defaultMaxCost() int64 {
	cost := int64(totalMemory() / 200)
	if cost < minCacheMaxCost {
		return minCacheMaxCost
	}
	if cost > maxCacheMaxCost {
		return maxCacheMaxCost
	}
	return cost
}

// totalMemory wraps memory.TotalMemory so unit tests can pin the value.
var totalMemory = func() uint64 {
	return memory.TotalMemory()
}
