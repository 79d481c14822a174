// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build integration
// +build integration

package cache

import (
	"time"

	"github.com/hearthlab/hearthd/internal/pkg/config"
)

func newCache(_ config.Cache) (CacheImpl, error) {
	return &NoCache{}, nil
}

// NoCache misses on every read and drops every write.
type NoCache struct{}

func (c *NoCache) Get(_ interface{}) (interface{}, bool) {
	return nil, false
}

func (c *NoCache) SetWithTTL(_, _ interface{}, _ int64, _ time.Duration) bool {
	return true
}

func (c *NoCache) Wait() {
}

func (c *NoCache) Close() {
}
