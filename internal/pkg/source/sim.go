// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/Pallinder/go-randomdata"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
)

// SimConfig scripts a synthetic source, used for local development and as
// a stand-in in tests and examples.
type SimConfig struct {
	Name string
	// FailEvery makes every n-th fetch fail with a transient error.
	// Zero disables scripted failures.
	FailEvery int
	// Latency is added to every fetch before it resolves.
	Latency time.Duration
}

// SimFetcher produces a slowly drifting synthetic temperature curve.
type SimFetcher struct {
	cfg    SimConfig
	serial string
	seq    int64
}

func NewSimFetcher(cfg SimConfig) *SimFetcher {
	return &SimFetcher{
		cfg: cfg,
		// A fabricated serial gives each instance a stable device identity.
		serial: "SIM-" + randomdata.Alphanumeric(8),
	}
}

var _ Fetcher = (*SimFetcher)(nil)

func (f *SimFetcher) Fetch(ctx context.Context) (Reading, error) {
	var r Reading

	if f.cfg.Latency > 0 {
		select {
		case <-time.After(f.cfg.Latency):
		case <-ctx.Done():
			return r, ctx.Err()
		}
	}

	n := atomic.AddInt64(&f.seq, 1)
	if f.cfg.FailEvery > 0 && n%int64(f.cfg.FailEvery) == 0 {
		return r, &coordinator.TransientError{Source: f.cfg.Name, Err: errors.New("scripted failure")}
	}

	fields := map[string]any{
		"seq":    n,
		"serial": f.serial,
		"temp_c": 21.0 + 2.5*math.Sin(float64(n)/10),
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return r, fmt.Errorf("marshal synthetic reading: %w", err)
	}

	return Reading{
		At:     time.Now().UTC(),
		Bytes:  uint64(len(raw)),
		Raw:    raw,
		Fields: fields,
	}, nil
}

func (f *SimFetcher) Close() error {
	return nil
}
