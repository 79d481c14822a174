// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package history keeps a bounded in-memory window of recent fetch attempts
// per source. It backs the history API endpoint without touching sqlite on
// the hot path; the durable log lives in the store.
package history

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hearthlab/hearthd/internal/pkg/source"
)

// History is a set of per-source attempt rings, each holding the most recent
// size attempts. Entries are keyed by a monotonic sequence so the underlying
// LRU evicts strictly oldest-first.
type History struct {
	mut  sync.Mutex
	seq  uint64
	size int
	byID map[string]*lru.Cache[uint64, source.Attempt]
}

func New(size int) (*History, error) {
	if size <= 0 {
		return nil, errors.New("history size must be positive")
	}
	return &History{
		size: size,
		byID: make(map[string]*lru.Cache[uint64, source.Attempt]),
	}, nil
}

// Record appends one attempt to the source's ring, evicting the oldest entry
// when full.
func (h *History) Record(sourceID string, att source.Attempt) {
	h.mut.Lock()
	defer h.mut.Unlock()
	h.ring(sourceID).Add(h.next(), att)
}

// Seed restores a window loaded from the store, oldest first. Meant for
// startup; attempts recorded afterwards stack on top.
func (h *History) Seed(sourceID string, atts []source.Attempt) {
	h.mut.Lock()
	defer h.mut.Unlock()
	r := h.ring(sourceID)
	for _, att := range atts {
		r.Add(h.next(), att)
	}
}

// Recent returns up to limit attempts for the source, newest first. A limit
// of zero or less means the whole ring.
func (h *History) Recent(sourceID string, limit int) []source.Attempt {
	h.mut.Lock()
	defer h.mut.Unlock()

	r, ok := h.byID[sourceID]
	if !ok {
		return nil
	}

	keys := r.Keys() // oldest first
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}

	out := make([]source.Attempt, 0, limit)
	for i := len(keys) - 1; i >= len(keys)-limit; i-- {
		// Peek, not Get: reading history must not disturb eviction order
		if att, ok := r.Peek(keys[i]); ok {
			out = append(out, att)
		}
	}
	return out
}

// Size returns the per-source window depth.
func (h *History) Size() int {
	return h.size
}

// Sources lists the ids with at least one recorded attempt.
func (h *History) Sources() []string {
	h.mut.Lock()
	defer h.mut.Unlock()

	out := make([]string, 0, len(h.byID))
	for id := range h.byID {
		out = append(out, id)
	}
	return out
}

func (h *History) ring(sourceID string) *lru.Cache[uint64, source.Attempt] {
	r, ok := h.byID[sourceID]
	if !ok {
		// size was validated in New, construction cannot fail
		r, _ = lru.New[uint64, source.Attempt](h.size)
		h.byID[sourceID] = r
	}
	return r
}

func (h *History) next() uint64 {
	h.seq++
	return h.seq
}
