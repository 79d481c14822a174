// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package manager owns the configured sources end to end: it builds a
// fetcher and a refresh coordinator per source, seeds them from the store,
// drives their scheduled loops and answers the API's queries. A source that
// cannot fetch parks in a terminal state instead of taking the hub down.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
	"github.com/hearthlab/hearthd/internal/pkg/history"
	"github.com/hearthlab/hearthd/internal/pkg/sleep"
	"github.com/hearthlab/hearthd/internal/pkg/source"
	"github.com/hearthlab/hearthd/internal/pkg/state"
	"github.com/hearthlab/hearthd/internal/pkg/store"
	"github.com/hearthlab/hearthd/internal/pkg/throttle"
	"github.com/hearthlab/hearthd/internal/pkg/vault"
)

var (
	// ErrUnknownSource is returned for source ids that are not configured.
	ErrUnknownSource = errors.New("unknown source")
	// ErrSourceNotRunning is returned when an operation needs a coordinator
	// and the source never got one, typically after a failed setup.
	ErrSourceNotRunning = errors.New("source is not running")
	// ErrEmptyCredentials is returned by Reauthorize when no secret material
	// was submitted.
	ErrEmptyCredentials = errors.New("credentials are empty")
)

const (
	defaultRefreshParallel = 4
	defaultSetupBackoff    = 500 * time.Millisecond
	maxDefaultFetchTimeout = 30 * time.Second

	// storeWriteTimeout bounds recorder writes; the fetch context may
	// already be gone when a listener runs.
	storeWriteTimeout = 5 * time.Second

	// refreshTokenTTL is how long a sweep slot may sit unreleased before
	// the throttle reclaims it from a wedged fetch.
	refreshTokenTTL    = 30 * time.Second
	throttleRetryDelay = 20 * time.Millisecond
)

// Manager runs one entry per configured source.
type Manager struct {
	st   *store.Store
	hist *history.History
	vlt  *vault.Vault
	rep  state.Reporter

	refreshLimit *throttle.Throttle

	entries map[string]*entry
	order   []string

	// newFetcher builds the kind-specific fetcher; swapped in tests.
	newFetcher   func(cfg config.Source, creds source.CredFunc) (source.Fetcher, error)
	setupBackoff time.Duration

	mut       sync.Mutex
	lastState state.State
	stopping  bool

	log zerolog.Logger
}

// New wires a manager for the configured sources. Entry shells exist from
// construction on, so the API can answer queries while setup is still
// running.
func New(srcs []config.Source, st *store.Store, hist *history.History, vlt *vault.Vault, rep state.Reporter, maxParallel int) (*Manager, error) {
	if st == nil || hist == nil || vlt == nil {
		return nil, errors.New("manager requires a store, a history and a vault")
	}
	if rep == nil {
		rep = state.NewLog()
	}
	if maxParallel <= 0 {
		maxParallel = defaultRefreshParallel
	}

	m := &Manager{
		st:           st,
		hist:         hist,
		vlt:          vlt,
		rep:          rep,
		refreshLimit: throttle.NewThrottle(maxParallel),
		entries:      make(map[string]*entry, len(srcs)),
		newFetcher:   buildFetcher,
		setupBackoff: defaultSetupBackoff,
		lastState:    state.StateStarting,
		log:          log.With().Str("ctx", "source manager").Logger(),
	}

	for _, cfg := range srcs {
		if _, dup := m.entries[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", cfg.ID)
		}
		m.entries[cfg.ID] = newEntry(cfg)
		m.order = append(m.order, cfg.ID)
	}
	return m, nil
}

// Run sets up every source and drives their refresh loops until ctx is
// cancelled. Entries that cannot become ready park; a hub whose sources all
// failed still serves status and reauthorization.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info().Int("sources", len(m.order)).Msg("source manager starting")
	m.report(state.StateStarting, "Starting sources")

	g, gctx := errgroup.WithContext(ctx)

	// Keeps the group alive while every source is parked.
	g.Go(func() error {
		<-gctx.Done()
		m.mut.Lock()
		m.stopping = true
		m.mut.Unlock()
		m.report(state.StateStopping, "Stopping sources")
		return nil
	})

	for _, id := range m.order {
		e := m.entries[id]
		g.Go(func() error {
			return m.runEntry(gctx, e)
		})
	}

	err := g.Wait()
	m.stop()
	m.report(state.StateStopped, "Sources stopped")
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	m.log.Info().Err(err).Msg("source manager exited")
	return err
}

// runEntry walks one source through setup and, once it can fetch, runs its
// scheduled loop until shutdown. Parked states are terminal for the process
// lifetime except AUTH_REQUIRED, which Reauthorize clears.
func (m *Manager) runEntry(ctx context.Context, e *entry) error {
	err := m.setupEntry(ctx, e)
	switch {
	case err == nil:
		e.setState(EntryReady, nil)
	case errors.Is(err, context.Canceled) || errors.Is(err, coordinator.ErrStopped):
		e.setState(EntryStopped, nil)
		return nil
	case coordinator.IsAuth(err):
		// The coordinator halted itself; its loop still runs so the
		// schedule resumes on reauthorization without rebuilding anything.
		e.setState(EntryAuthRequired, err)
	default:
		e.setState(EntryFailed, err)
		m.rollup()
		return nil
	}
	m.rollup()

	err = e.coordinator().Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// stop tears every entry down: coordinators first so no listener fires
// afterward, then the fetchers' underlying transports.
func (m *Manager) stop() {
	for _, id := range m.order {
		e := m.entries[id]

		e.mut.Lock()
		cord, f, subs := e.cord, e.fetcher, e.subs
		e.subs = nil
		e.state = EntryStopped
		e.mut.Unlock()

		if cord != nil {
			for _, l := range subs {
				cord.Unsubscribe(l)
			}
			cord.Stop()
		}
		if f != nil {
			if err := f.Close(); err != nil {
				e.log.Warn().Err(err).Msg("close fetcher")
			}
		}
	}
}

func (m *Manager) entry(id string) (*entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return e, nil
}

// SourceSnapshot is one source's full state as the API serves it. Reading
// is the live value when the coordinator has one, otherwise the newest
// stored value marked stale.
type SourceSnapshot struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Kind    string             `json:"kind"`
	Class   string             `json:"class"`
	State   EntryState         `json:"state"`
	Stale   bool               `json:"stale,omitempty"`
	Version string             `json:"version,omitempty"`
	Error   string             `json:"error,omitempty"`
	Status  coordinator.Status `json:"status"`
	Reading *source.Reading    `json:"reading,omitempty"`
}

// List snapshots every source in configuration order.
func (m *Manager) List() []SourceSnapshot {
	out := make([]SourceSnapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].snapshot())
	}
	return out
}

// Source snapshots one source.
func (m *Manager) Source(id string) (SourceSnapshot, error) {
	e, err := m.entry(id)
	if err != nil {
		return SourceSnapshot{}, err
	}
	return e.snapshot(), nil
}

// History returns the source's recent attempts, newest first. A limit of
// zero or less means the whole window.
func (m *Manager) History(id string, limit int) ([]source.Attempt, error) {
	if _, err := m.entry(id); err != nil {
		return nil, err
	}
	return m.hist.Recent(id, limit), nil
}

// Refresh forces one source to fetch now, joining any attempt already in
// flight. The classified attempt error passes through for the API to map.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	cord := e.coordinator()
	if cord == nil {
		return fmt.Errorf("%w: %s", ErrSourceNotRunning, id)
	}
	return cord.Refresh(ctx)
}

// RefreshResult tallies one refresh-all sweep.
type RefreshResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RefreshAll forces a refresh of every ready source, at most maxParallel
// fetches at a time. Individual failures are recorded on their source and
// tallied, never fatal to the sweep.
func (m *Manager) RefreshAll(ctx context.Context) (RefreshResult, error) {
	res := RefreshResult{Total: len(m.order)}
	var mut sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range m.order {
		e := m.entries[id]
		cord := e.coordinator()
		if cord == nil || e.currentState() != EntryReady {
			res.Skipped++
			continue
		}

		g.Go(func() error {
			tok, err := m.acquireToken(gctx, e.cfg.ID)
			if err != nil {
				return err
			}
			defer tok.Release()

			rerr := cord.Refresh(gctx)
			mut.Lock()
			if rerr != nil {
				res.Failed++
			} else {
				res.Success++
			}
			mut.Unlock()
			return nil
		})
	}

	err := g.Wait()
	m.log.Info().
		Int("total", res.Total).
		Int("success", res.Success).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("refresh sweep complete")
	return res, err
}

// acquireToken waits for a sweep slot. Tokens are keyed by source id so a
// second sweep cannot double up on a source still mid-fetch.
func (m *Manager) acquireToken(ctx context.Context, key string) (*throttle.Token, error) {
	for {
		if tok := m.refreshLimit.Acquire(key, refreshTokenTTL); tok != nil {
			return tok, nil
		}
		if err := sleep.WithContext(ctx, throttleRetryDelay); err != nil {
			return nil, err
		}
	}
}

// Reauthorize seals new credentials for the source, clears its halt and
// validates them with an immediate refresh. On success the entry returns to
// READY and its schedule resumes.
func (m *Manager) Reauthorize(ctx context.Context, id string, creds source.Credentials) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	if creds.Empty() {
		return ErrEmptyCredentials
	}
	cord := e.coordinator()
	if cord == nil {
		return fmt.Errorf("%w: %s", ErrSourceNotRunning, id)
	}

	blob, err := m.vlt.Seal(id, creds)
	if err != nil {
		return fmt.Errorf("seal credentials for %s: %w", id, err)
	}
	if err := m.st.SaveCredentials(ctx, id, blob); err != nil {
		return err
	}

	cord.Reauthorized()
	if err := cord.Refresh(ctx); err != nil {
		// A fresh auth failure has already re-parked the entry through
		// the auth signal hook. On any other failure the schedule has
		// resumed and the outcome listener unparks the entry on the
		// first success.
		return err
	}
	e.setState(EntryReady, nil)
	m.rollup()
	e.log.Info().Msg("source reauthorized")
	return nil
}

// CurrentState rolls the per-entry states up into one service state for the
// status endpoint and the reporters.
func (m *Manager) CurrentState() (state.State, string) {
	var total, starting, ready, failing, authReq, failed int
	for _, id := range m.order {
		e := m.entries[id]
		total++
		switch e.currentState() {
		case EntryStarting:
			starting++
		case EntryReady:
			ready++
			if cord := e.coordinator(); cord != nil && cord.Status().Failures > 0 {
				failing++
			}
		case EntryAuthRequired:
			authReq++
		case EntryFailed:
			failed++
		}
	}

	switch {
	case total == 0:
		return state.StateHealthy, "no sources configured"
	case starting > 0:
		return state.StateStarting, fmt.Sprintf("%d of %d sources starting", starting, total)
	case failed == total:
		return state.StateFailed, "all sources failed"
	case failed+authReq+failing > 0:
		return state.StateDegraded, fmt.Sprintf("%d of %d sources degraded", failed+authReq+failing, total)
	default:
		return state.StateHealthy, fmt.Sprintf("%d sources polling", ready)
	}
}

// rollup reports the service state when it changed. Quiet once shutdown has
// begun so late attempt fanouts cannot mask STOPPING.
func (m *Manager) rollup() {
	st, msg := m.CurrentState()

	m.mut.Lock()
	if m.stopping || st == m.lastState {
		m.mut.Unlock()
		return
	}
	m.lastState = st
	m.mut.Unlock()

	if err := m.rep.UpdateState(st, msg, nil); err != nil {
		m.log.Error().Err(err).Msg("update reported state")
	}
}

func (m *Manager) report(st state.State, msg string) {
	m.mut.Lock()
	m.lastState = st
	m.mut.Unlock()

	if err := m.rep.UpdateState(st, msg, nil); err != nil {
		m.log.Error().Err(err).Msg("update reported state")
	}
}
