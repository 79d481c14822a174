// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package cache implements an in-memory cache of api key verification
// verdicts, so the PBKDF2 work happens once per key instead of per request.
package cache

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/token"
)

type Cache interface {
	Reconfigure(config.Cache) error

	SetAPIKey(key token.APIKey, enabled bool)
	ValidAPIKey(key token.APIKey) (valid, ok bool)
}

type CacheT struct {
	cache CacheImpl
	cfg   config.Cache
	mut   sync.RWMutex
}

// New creates a new cache.
func New(cfg config.Cache) (*CacheT, error) {
	cache, err := newCache(cfg)
	if err != nil {
		return nil, err
	}

	c := CacheT{
		cache: cache,
		cfg:   cfg,
	}

	return &c, nil
}

// Reconfigure will drop cache
func (c *CacheT) Reconfigure(cfg config.Cache) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	cache, err := newCache(cfg)
	if err != nil {
		return err
	}

	// Close down previous cache
	c.cache.Close()

	// And assign new one
	c.cfg = cfg
	c.cache = cache
	return nil
}

// SetAPIKey caches a verification verdict for the key.
//
// The valid key secret is the payload of the record; a key marked not
// enabled is stored with an empty payload, so repeated bad presentations
// don't burn KDF cycles either.
func (c *CacheT) SetAPIKey(key token.APIKey, enabled bool) {
	c.mut.RLock()
	defer c.mut.RUnlock()

	scopedKey := "api:" + key.ID

	val := key.Key
	if !enabled {
		val = ""
	}

	// Jitter randomizes expiry so keys verified together don't all need
	// re-deriving at the same instant.
	ttl := c.cfg.APIKeyTTL
	if c.cfg.APIKeyJitter != 0 {
		jitter := time.Duration(rand.Int63n(int64(c.cfg.APIKeyJitter))) //nolint:gosec // used to generate a jitter offset value
		if jitter < ttl {
			ttl = ttl - jitter
		}
	}

	cost := len(scopedKey) + len(val)
	ok := c.cache.SetWithTTL(scopedKey, val, int64(cost), ttl)
	log.Trace().
		Bool("ok", ok).
		Bool("enabled", enabled).
		Str("key", key.ID).
		Dur("ttl", ttl).
		Int("cost", cost).
		Msg("ApiKey cache SET")
}

// ValidAPIKey returns the cached verdict for the key. ok reports whether a
// verdict was cached at all; valid is the verdict itself. A cached entry
// whose secret does not match the presented one counts as a miss, forcing
// re-verification.
func (c *CacheT) ValidAPIKey(key token.APIKey) (valid, ok bool) {
	c.mut.RLock()
	defer c.mut.RUnlock()

	scopedKey := "api:" + key.ID
	v, ok := c.cache.Get(scopedKey)
	if !ok {
		log.Trace().Str("id", key.ID).Msg("ApiKey cache MISS")
		return false, false
	}

	switch v {
	case "":
		log.Trace().Str("id", key.ID).Msg("ApiKey cache HIT on disabled KEY")
		return false, true
	case key.Key:
		log.Trace().Str("id", key.ID).Msg("ApiKey cache HIT")
		return true, true
	default:
		log.Trace().Str("id", key.ID).Msg("ApiKey cache MISMATCH")
		return false, false
	}
}

// Wait blocks until pending sets are applied. Handy in tests; the serving
// path never needs it.
func (c *CacheT) Wait() {
	c.mut.RLock()
	defer c.mut.RUnlock()
	c.cache.Wait()
}
