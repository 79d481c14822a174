// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package throttle hands out per-key leases with a parallelism cap. The
// manager keys leases by source id: one source is refreshed at most once at
// a time, and a sweep never has more than maxParallel fetches in flight.
// A lease not released within its ttl is reclaimed, so a wedged fetch cannot
// pin its slot forever.
package throttle

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Token is a held lease. Release returns it; a token whose lease already
// expired and was reclaimed reports false on Release.
type Token struct {
	id       uint64
	key      string
	throttle *Throttle
}

type lease struct {
	id     uint64
	expire time.Time
}

type Throttle struct {
	mut         sync.Mutex
	maxParallel int
	leaseCnt    uint64
	leases      map[string]lease
}

// NewThrottle caps concurrent leases at max. Zero means no cap; per-key
// exclusivity still applies.
func NewThrottle(max int) *Throttle {
	return &Throttle{
		maxParallel: max,
		leases:      make(map[string]lease),
	}
}

// Acquire takes the lease for key, or returns nil when the key is already
// leased or the throttle is at capacity.
func (tt *Throttle) Acquire(key string, ttl time.Duration) *Token {
	tt.mut.Lock()
	defer tt.mut.Unlock()

	if tt.atCapacity(key) {
		log.Trace().
			Str("key", key).
			Int("max", tt.maxParallel).
			Int("held", len(tt.leases)).
			Msg("Throttle fail acquire on max pending")
		return nil
	}

	// A live lease on the key blocks the acquire; an expired one is taken
	// over in place.
	now := time.Now()
	if cur, ok := tt.leases[key]; ok && !cur.expire.Before(now) {
		log.Trace().
			Str("key", key).
			Msg("Throttle fail acquire on existing token")
		return nil
	}

	tt.leaseCnt += 1
	token := &Token{
		id:       tt.leaseCnt,
		key:      key,
		throttle: tt,
	}
	tt.leases[key] = lease{
		id:     token.id,
		expire: now.Add(ttl),
	}

	log.Trace().
		Str("key", key).
		Uint64("token", token.id).
		Time("expire", now.Add(ttl)).
		Msg("Throttle acquired")

	return token
}

// atCapacity reports whether no slot can be freed up for key. Expired
// leases are reclaimed on the way, the target key first. Assumes the mutex
// is held.
func (tt *Throttle) atCapacity(key string) bool {
	if tt.maxParallel == 0 || len(tt.leases) < tt.maxParallel {
		return false
	}

	now := time.Now()

	if cur, ok := tt.leases[key]; ok && cur.expire.Before(now) {
		delete(tt.leases, key)
		log.Trace().
			Str("key", key).
			Msg("Ejected target token on expiration")
		return false
	}

	// O(N) scan for anything expired; the map never grows past maxParallel.
	for k, cur := range tt.leases {
		if cur.expire.Before(now) {
			delete(tt.leases, k)
			log.Trace().
				Str("key", k).
				Msg("Ejected token on expiration")
			return false
		}
	}

	return true
}

func (tt *Throttle) release(id uint64, key string) bool {
	tt.mut.Lock()
	defer tt.mut.Unlock()

	cur, ok := tt.leases[key]
	if !ok {
		log.Trace().Uint64("id", id).Str("key", key).Msg("Token not found to release")
		return false
	}

	// A stale token whose lease was reclaimed must not free the new holder.
	if cur.id == id {
		log.Trace().Uint64("id", id).Str("key", key).Msg("Token released")
		delete(tt.leases, key)
		return true
	}

	return false
}

func (t Token) Release() bool {
	return t.throttle.release(t.id, t.key)
}
