// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
	"github.com/hearthlab/hearthd/internal/pkg/source"
	"github.com/hearthlab/hearthd/internal/pkg/store"
	"github.com/hearthlab/hearthd/internal/pkg/ver"
)

// EntryState is where a source sits in its lifecycle.
type EntryState string

const (
	// EntryStarting spans from construction until the first refresh
	// attempt resolved, including not-ready setup retries.
	EntryStarting EntryState = "STARTING"
	// EntryReady sources run their scheduled loop. A ready source may
	// still be failing attempts; that shows in its status counters.
	EntryReady EntryState = "READY"
	// EntryAuthRequired sources hold their schedule until Reauthorize
	// succeeds with new credentials.
	EntryAuthRequired EntryState = "AUTH_REQUIRED"
	// EntryFailed sources failed setup for good: fetcher construction or
	// the version gate. A config change and restart clears it.
	EntryFailed EntryState = "FAILED"
	// EntryStopped is everything after teardown began.
	EntryStopped EntryState = "STOPPED"
)

// entry pairs one configured source with its fetcher and coordinator.
type entry struct {
	cfg   config.Source
	stats *fetchStats
	log   zerolog.Logger

	mut     sync.Mutex
	state   EntryState
	lastErr error
	fetcher source.Fetcher
	cord    *coordinator.Coordinator[source.Reading]
	subs    []*coordinator.Listener
	seed    *source.Reading
	version string
}

func newEntry(cfg config.Source) *entry {
	return &entry{
		cfg:   cfg,
		state: EntryStarting,
		stats: newFetchStats(cfg.ID),
		log:   log.With().Str("source", cfg.ID).Str("ctx", "source manager").Logger(),
	}
}

func (e *entry) setState(st EntryState, err error) {
	e.mut.Lock()
	prev := e.state
	e.state = st
	e.lastErr = err
	e.mut.Unlock()

	if prev != st {
		e.log.Info().Err(err).Str("prev", string(prev)).Str("state", string(st)).Msg("source state change")
	}
}

func (e *entry) currentState() EntryState {
	e.mut.Lock()
	defer e.mut.Unlock()
	return e.state
}

func (e *entry) coordinator() *coordinator.Coordinator[source.Reading] {
	e.mut.Lock()
	defer e.mut.Unlock()
	return e.cord
}

func (e *entry) setFetcher(f source.Fetcher) {
	e.mut.Lock()
	e.fetcher = f
	e.mut.Unlock()
}

func (e *entry) setCoordinator(c *coordinator.Coordinator[source.Reading]) {
	e.mut.Lock()
	e.cord = c
	e.mut.Unlock()
}

func (e *entry) addListeners(ls ...*coordinator.Listener) {
	e.mut.Lock()
	e.subs = append(e.subs, ls...)
	e.mut.Unlock()
}

func (e *entry) setSeed(r *source.Reading) {
	e.mut.Lock()
	e.seed = r
	e.mut.Unlock()
}

func (e *entry) setVersion(v string) {
	e.mut.Lock()
	e.version = v
	e.mut.Unlock()
}

// snapshot assembles the API view. Live data wins; the stored seed is served
// stale until the first live success.
func (e *entry) snapshot() SourceSnapshot {
	e.mut.Lock()
	snap := SourceSnapshot{
		ID:      e.cfg.ID,
		Name:    e.cfg.DisplayName(),
		Kind:    e.cfg.Kind,
		Class:   e.cfg.Class,
		State:   e.state,
		Version: e.version,
		Status:  coordinator.Status{Source: e.cfg.ID},
	}
	if e.lastErr != nil {
		snap.Error = e.lastErr.Error()
	}
	cord := e.cord
	seed := e.seed
	e.mut.Unlock()

	if cord != nil {
		snap.Status = cord.Status()
		if r, ok := cord.Data(); ok {
			snap.Reading = &r
			return snap
		}
	}
	if seed != nil {
		snap.Reading = seed
		snap.Stale = true
	}
	return snap
}

// lastAttempt reconstructs the just-completed attempt from coordinator
// state; it only makes sense from inside a refresh listener.
func (e *entry) lastAttempt() source.Attempt {
	cord := e.coordinator()
	st := cord.Status()

	att := source.Attempt{At: st.LastAttempt, OK: st.LastSuccess}
	if st.LastSuccess {
		if r, ok := cord.Data(); ok {
			att.Bytes = r.Bytes
			att.Raw = r.Raw
		}
	} else {
		att.Err = st.LastError
	}
	return att
}

// observeOutcome keeps the per-source gauges current after an attempt.
func (e *entry) observeOutcome() {
	st := e.coordinator().Status()
	e.stats.SetStreak(st.Failures)
	if !st.LastSuccess {
		return
	}
	if !st.LastUpdate.IsZero() {
		e.stats.MarkGood(st.LastUpdate)
	}
	// A success proves whatever credentials are in place. Reauthorize may
	// have cleared the halt and then failed its validating refresh on a
	// network error; the first scheduled success must still unpark the
	// entry.
	if e.currentState() == EntryAuthRequired {
		e.setState(EntryReady, nil)
	}
}

// setupEntry runs the source's setup pipeline: store row, seed, fetcher,
// version gate, coordinator wiring and the first refresh. The returned error
// classifies how the entry parks when setup cannot finish.
func (m *Manager) setupEntry(ctx context.Context, e *entry) error {
	meta := store.SourceMeta{
		ID:    e.cfg.ID,
		Name:  e.cfg.DisplayName(),
		Kind:  e.cfg.Kind,
		Class: e.cfg.Class,
	}
	// The source row goes in first; reading and credential rows hang off it.
	if err := m.st.UpsertSource(ctx, meta); err != nil {
		return err
	}
	m.seedEntry(ctx, e)

	f, err := m.newFetcher(e.cfg, m.credFunc(e.cfg.ID))
	if err != nil {
		return err
	}
	e.setFetcher(f)

	if e.cfg.MinVersion != "" {
		if p, ok := f.(ver.Prober); ok {
			reported, err := ver.CheckCompatibility(ctx, p, e.cfg.ID, e.cfg.MinVersion)
			if reported != "" {
				e.setVersion(reported)
			}
			if err != nil {
				return fmt.Errorf("source %s failed version gate: %w", e.cfg.ID, err)
			}
		}
	}

	cord, err := coordinator.New(e.cfg.ID, e.stats.instrument(f.Fetch), e.cfg.Interval,
		coordinator.WithFetchTimeout(fetchTimeout(e.cfg)),
		coordinator.WithAuthSignal(func(err error) {
			e.setState(EntryAuthRequired, err)
			m.rollup()
		}),
	)
	if err != nil {
		return err
	}
	e.setCoordinator(cord)

	// Listener order is load-bearing: history first so the API sees the
	// attempt as soon as it is queryable, then the durable record, then
	// gauges and the state rollup.
	e.addListeners(
		cord.Subscribe(func() { m.hist.Record(e.cfg.ID, e.lastAttempt()) }),
		cord.Subscribe(func() { m.recordAttempt(e) }),
		cord.Subscribe(func() { e.observeOutcome(); m.rollup() }),
	)

	return m.firstRefresh(ctx, e, cord)
}

// seedEntry restores what the store remembers: the newest good reading,
// served stale until a live success, and the recent attempt window for the
// history endpoint.
func (m *Manager) seedEntry(ctx context.Context, e *entry) {
	att, err := m.st.LastGood(ctx, e.cfg.ID)
	switch {
	case err == nil:
		e.setSeed(readingFromAttempt(att))
		e.log.Debug().Time("at", att.At).Msg("seeded last good reading")
	case !errors.Is(err, store.ErrNotFound):
		e.log.Warn().Err(err).Msg("load last good reading")
	}

	atts, err := m.st.RecentAttempts(ctx, e.cfg.ID, m.hist.Size())
	if err != nil {
		e.log.Warn().Err(err).Msg("load recent attempts")
		return
	}
	// Store rows come back newest first; the ring wants oldest first.
	for i, j := 0, len(atts)-1; i < j; i, j = i+1, j-1 {
		atts[i], atts[j] = atts[j], atts[i]
	}
	m.hist.Seed(e.cfg.ID, atts)
}

// firstRefresh runs the setup-time fetch, retrying while the source is
// merely not ready. Auth failures and shutdown pass through untouched.
func (m *Manager) firstRefresh(ctx context.Context, e *entry, cord *coordinator.Coordinator[source.Reading]) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.setupBackoff
	bo.MaxInterval = e.cfg.Interval
	bo.MaxElapsedTime = 0 // not ready is retried until shutdown

	retries := 0
	return backoff.Retry(func() error {
		err := cord.FirstRefresh(ctx)
		switch {
		case err == nil:
			return nil
		case coordinator.IsAuth(err),
			errors.Is(err, context.Canceled),
			errors.Is(err, coordinator.ErrStopped):
			return backoff.Permanent(err)
		default:
			retries++
			e.log.Info().Err(err).Int("retries", retries).Msg("source not ready, backing off")
			return err
		}
	}, backoff.WithContext(bo, ctx))
}

// recordAttempt writes the attempt outcome behind its own short deadline;
// the fetch context may already be gone when the listener runs.
func (m *Manager) recordAttempt(e *entry) {
	att := e.lastAttempt()
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if err := m.st.RecordAttempt(ctx, e.cfg.ID, att); err != nil {
		e.log.Error().Err(err).Msg("record attempt outcome")
	}
}

// credFunc resolves the source's sealed credentials at fetch time, so a
// reauthorized secret is picked up on the very next attempt. A source with
// no stored credentials fetches unauthenticated.
func (m *Manager) credFunc(id string) source.CredFunc {
	return func(ctx context.Context) (source.Credentials, error) {
		blob, err := m.st.LoadCredentials(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return source.Credentials{}, nil
		}
		if err != nil {
			return source.Credentials{}, err
		}
		return m.vlt.Open(id, blob)
	}
}

// buildFetcher maps a source config onto its kind's fetcher.
func buildFetcher(cfg config.Source, creds source.CredFunc) (source.Fetcher, error) {
	switch cfg.Kind {
	case config.KindRest:
		rc := source.RestConfig{
			Name:      cfg.ID,
			URL:       cfg.URL,
			Headers:   cfg.Headers,
			ProbePath: cfg.ProbePath,
			MaxBody:   cfg.MaxBody,
			Timeout:   cfg.FetchTimeout,
		}
		var v *source.Validator
		if cfg.Schema != "" {
			rc.Schema = json.RawMessage(cfg.Schema)
			v = source.NewValidator()
		}
		return source.NewRestFetcher(rc, creds, v)
	case config.KindSerial:
		return source.NewSerialFetcher(source.SerialConfig{
			Name:     cfg.ID,
			Path:     cfg.Path,
			BaudRate: cfg.BaudRate,
			PollCmd:  cfg.PollCmd,
			Timeout:  cfg.FetchTimeout,
		})
	case config.KindSim:
		return source.NewSimFetcher(source.SimConfig{
			Name:      cfg.ID,
			FailEvery: cfg.FailEvery,
			Latency:   cfg.Latency,
		}), nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", cfg.ID, cfg.Kind)
	}
}

// readingFromAttempt rebuilds a reading from a stored good attempt. Decoding
// the payload is best effort; a reading without fields still serves.
func readingFromAttempt(att source.Attempt) *source.Reading {
	r := &source.Reading{At: att.At, Bytes: att.Bytes, Raw: att.Raw}
	if len(att.Raw) > 0 {
		_ = json.Unmarshal(att.Raw, &r.Fields)
	}
	return r
}

// fetchTimeout picks the attempt bound: the configured one, or half the
// interval capped at 30s when unset.
func fetchTimeout(cfg config.Source) time.Duration {
	if cfg.FetchTimeout > 0 {
		return cfg.FetchTimeout
	}
	d := cfg.Interval / 2
	if d > maxDefaultFetchTimeout {
		d = maxDefaultFetchTimeout
	}
	return d
}
