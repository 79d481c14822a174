// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
	"github.com/hearthlab/hearthd/internal/pkg/history"
	"github.com/hearthlab/hearthd/internal/pkg/source"
	"github.com/hearthlab/hearthd/internal/pkg/state"
	"github.com/hearthlab/hearthd/internal/pkg/store"
	ftesting "github.com/hearthlab/hearthd/internal/pkg/testing"
	"github.com/hearthlab/hearthd/internal/pkg/vault"
)

type recordingReporter struct {
	mut    sync.Mutex
	states []state.State
}

func (r *recordingReporter) UpdateState(st state.State, _ string, _ map[string]interface{}) error {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.states = append(r.states, st)
	return nil
}

func (r *recordingReporter) seen() []state.State {
	r.mut.Lock()
	defer r.mut.Unlock()
	out := make([]state.State, len(r.states))
	copy(out, r.states)
	return out
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "hearthd.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	var kdf config.PBKDF2
	kdf.InitDefaults()
	kdf.Iterations = 2048 // keep key derivation cheap in tests
	v, err := vault.New([]byte("test master key"), kdf)
	require.NoError(t, err)
	return v
}

func simSource(id string, interval time.Duration) config.Source {
	return config.Source{
		ID:       id,
		Kind:     config.KindSim,
		Class:    string(source.ClassLocal),
		Interval: interval,
	}
}

func newTestManager(t *testing.T, srcs []config.Source, rep state.Reporter) (*Manager, *store.Store) {
	t.Helper()
	st := testStore(t)
	hist, err := history.New(16)
	require.NoError(t, err)
	m, err := New(srcs, st, hist, testVault(t), rep, 1)
	require.NoError(t, err)
	m.setupBackoff = 10 * time.Millisecond
	return m, st
}

func startManager(t *testing.T, m *Manager) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Run(ctx)
	}()
	return cancel, errCh
}

func stopManager(t *testing.T, cancel context.CancelFunc, errCh chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
}

func waitForState(t *testing.T, m *Manager, id string, want EntryState) {
	t.Helper()
	ftesting.Retry(t, context.Background(), func(_ context.Context) error {
		snap, err := m.Source(id)
		if err != nil {
			return err
		}
		if snap.State != want {
			return fmt.Errorf("source %s is %s, want %s", id, snap.State, want)
		}
		return nil
	}, ftesting.RetryCount(100), ftesting.RetrySleep(20*time.Millisecond))
}

func TestManagerRunsSimSources(t *testing.T) {
	m, st := newTestManager(t, []config.Source{
		simSource("attic", 50*time.Millisecond),
		simSource("cellar", 50*time.Millisecond),
	}, nil)

	cancel, errCh := startManager(t, m)

	for _, id := range []string{"attic", "cellar"} {
		waitForState(t, m, id, EntryReady)

		snap, err := m.Source(id)
		require.NoError(t, err)
		require.NotNil(t, snap.Reading)
		require.False(t, snap.Stale)
		require.True(t, snap.Status.LastSuccess)
		require.NotZero(t, snap.Status.Successes)

		atts, err := m.History(id, 0)
		require.NoError(t, err)
		require.NotEmpty(t, atts)
		require.True(t, atts[0].OK)
	}

	// Both sources got their store rows before any attempt was recorded.
	metas, err := st.Sources(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 2)

	cur, _ := m.CurrentState()
	require.Equal(t, state.StateHealthy, cur)

	list := m.List()
	require.Len(t, list, 2)
	require.Equal(t, "attic", list[0].ID)
	require.Equal(t, "cellar", list[1].ID)

	stopManager(t, cancel, errCh)

	snap, err := m.Source("attic")
	require.NoError(t, err)
	require.Equal(t, EntryStopped, snap.State)
}

func TestManagerServesSeededReadingStale(t *testing.T) {
	ctx := context.Background()

	st := testStore(t)
	require.NoError(t, st.UpsertSource(ctx, store.SourceMeta{ID: "attic", Name: "Attic", Kind: config.KindSim, Class: "local"}))
	raw := json.RawMessage(`{"temp": 12}`)
	require.NoError(t, st.RecordAttempt(ctx, "attic", source.Attempt{
		At:    time.Now().Add(-time.Hour).UTC(),
		OK:    true,
		Bytes: uint64(len(raw)),
		Raw:   raw,
	}))

	hist, err := history.New(16)
	require.NoError(t, err)

	src := simSource("attic", 50*time.Millisecond)
	src.FailEvery = 1 // every attempt fails; the source never leaves setup
	m, err := New([]config.Source{src}, st, hist, testVault(t), nil, 1)
	require.NoError(t, err)
	m.setupBackoff = 10 * time.Millisecond

	cancel, errCh := startManager(t, m)

	ftesting.Retry(t, ctx, func(_ context.Context) error {
		snap, err := m.Source("attic")
		if err != nil {
			return err
		}
		if snap.Reading == nil {
			return errors.New("no reading served yet")
		}
		return nil
	}, ftesting.RetryCount(100), ftesting.RetrySleep(20*time.Millisecond))

	snap, err := m.Source("attic")
	require.NoError(t, err)
	require.Equal(t, EntryStarting, snap.State)
	require.True(t, snap.Stale)
	require.NotNil(t, snap.Reading)
	require.JSONEq(t, string(raw), string(snap.Reading.Raw))
	require.Equal(t, float64(12), snap.Reading.Fields["temp"])

	// The stored window was seeded into the history ring.
	atts, err := m.History("attic", 0)
	require.NoError(t, err)
	require.NotEmpty(t, atts)

	stopManager(t, cancel, errCh)
}

// authFetcher rejects every fetch until the resolved token matches.
type authFetcher struct {
	creds source.CredFunc
	want  string
}

func (f *authFetcher) Fetch(ctx context.Context) (source.Reading, error) {
	creds, err := f.creds(ctx)
	if err != nil {
		return source.Reading{}, err
	}
	if creds.Token != f.want {
		return source.Reading{}, &coordinator.AuthError{Source: "lock", Err: errors.New("token rejected")}
	}
	raw := json.RawMessage(`{"locked": false}`)
	return source.Reading{
		At:     time.Now().UTC(),
		Bytes:  uint64(len(raw)),
		Raw:    raw,
		Fields: map[string]any{"locked": false},
	}, nil
}

func (f *authFetcher) Close() error { return nil }

func TestManagerReauthorize(t *testing.T) {
	ctx := context.Background()
	rep := &recordingReporter{}

	m, st := newTestManager(t, []config.Source{simSource("lock", 50*time.Millisecond)}, rep)
	m.newFetcher = func(_ config.Source, creds source.CredFunc) (source.Fetcher, error) {
		return &authFetcher{creds: creds, want: "letmein"}, nil
	}

	cancel, errCh := startManager(t, m)

	waitForState(t, m, "lock", EntryAuthRequired)
	cur, _ := m.CurrentState()
	require.Equal(t, state.StateDegraded, cur)

	// Still-bad credentials are sealed and stored, but the refresh fails
	// and the source stays parked.
	err := m.Reauthorize(ctx, "lock", source.Credentials{Token: "wrong"})
	require.Error(t, err)
	require.True(t, coordinator.IsAuth(err))
	snap, err := m.Source("lock")
	require.NoError(t, err)
	require.Equal(t, EntryAuthRequired, snap.State)

	require.NoError(t, m.Reauthorize(ctx, "lock", source.Credentials{Token: "letmein"}))

	snap, err = m.Source("lock")
	require.NoError(t, err)
	require.Equal(t, EntryReady, snap.State)
	require.NotNil(t, snap.Reading)
	require.False(t, snap.Stale)

	// The sealed blob round-trips through the vault.
	blob, err := st.LoadCredentials(ctx, "lock")
	require.NoError(t, err)
	creds, err := m.vlt.Open("lock", blob)
	require.NoError(t, err)
	require.Equal(t, "letmein", creds.Token)

	cur, _ = m.CurrentState()
	require.Equal(t, state.StateHealthy, cur)

	stopManager(t, cancel, errCh)

	require.Equal(t, []state.State{
		state.StateStarting,
		state.StateDegraded,
		state.StateHealthy,
		state.StateStopping,
		state.StateStopped,
	}, rep.seen())
}

// flakyAuthFetcher rejects fetches until the token matches, then fails a
// set number of fetches with a network-style error before recovering.
type flakyAuthFetcher struct {
	creds     source.CredFunc
	want      string
	transient int64
}

func (f *flakyAuthFetcher) Fetch(ctx context.Context) (source.Reading, error) {
	creds, err := f.creds(ctx)
	if err != nil {
		return source.Reading{}, err
	}
	if creds.Token != f.want {
		return source.Reading{}, &coordinator.AuthError{Source: "lock", Err: errors.New("token rejected")}
	}
	if atomic.AddInt64(&f.transient, -1) >= 0 {
		return source.Reading{}, &coordinator.TransientError{Source: "lock", Err: errors.New("connection reset")}
	}
	raw := json.RawMessage(`{"locked": true}`)
	return source.Reading{
		At:     time.Now().UTC(),
		Bytes:  uint64(len(raw)),
		Raw:    raw,
		Fields: map[string]any{"locked": true},
	}, nil
}

func (f *flakyAuthFetcher) Close() error { return nil }

func TestManagerReauthorizeTransientValidation(t *testing.T) {
	ctx := context.Background()

	m, _ := newTestManager(t, []config.Source{simSource("lock", 50*time.Millisecond)}, nil)
	m.newFetcher = func(_ config.Source, creds source.CredFunc) (source.Fetcher, error) {
		return &flakyAuthFetcher{creds: creds, want: "letmein", transient: 1}, nil
	}

	cancel, errCh := startManager(t, m)
	waitForState(t, m, "lock", EntryAuthRequired)

	// Good credentials, but the validating refresh dies on the network.
	err := m.Reauthorize(ctx, "lock", source.Credentials{Token: "letmein"})
	require.Error(t, err)
	require.True(t, coordinator.IsTransient(err))

	// The halt is gone and the schedule keeps polling, so the first
	// scheduled success must bring the entry back to READY on its own.
	waitForState(t, m, "lock", EntryReady)

	cur, _ := m.CurrentState()
	require.Equal(t, state.StateHealthy, cur)

	stopManager(t, cancel, errCh)
}

func TestManagerRefreshAllSweep(t *testing.T) {
	ctx := context.Background()

	// Hour-long intervals freeze the schedule so attempt counts only move
	// when the sweep does.
	broken := simSource("boiler", time.Hour)
	broken.FailEvery = 1
	m, _ := newTestManager(t, []config.Source{
		simSource("attic", time.Hour),
		simSource("cellar", time.Hour),
		broken,
	}, nil)

	cancel, errCh := startManager(t, m)

	waitForState(t, m, "attic", EntryReady)
	waitForState(t, m, "cellar", EntryReady)

	before := make(map[string]uint64, 2)
	for _, id := range []string{"attic", "cellar"} {
		snap, err := m.Source(id)
		require.NoError(t, err)
		before[id] = snap.Status.Attempts
	}

	res, err := m.RefreshAll(ctx)
	require.NoError(t, err)
	require.Equal(t, RefreshResult{Total: 3, Success: 2, Skipped: 1}, res)

	for _, id := range []string{"attic", "cellar"} {
		snap, err := m.Source(id)
		require.NoError(t, err)
		require.Equal(t, before[id]+1, snap.Status.Attempts)
	}

	stopManager(t, cancel, errCh)
}

func TestManagerSingleRefresh(t *testing.T) {
	ctx := context.Background()

	m, _ := newTestManager(t, []config.Source{simSource("attic", time.Hour)}, nil)
	cancel, errCh := startManager(t, m)

	waitForState(t, m, "attic", EntryReady)
	snap, err := m.Source("attic")
	require.NoError(t, err)
	before := snap.Status.Attempts

	require.NoError(t, m.Refresh(ctx, "attic"))

	snap, err = m.Source("attic")
	require.NoError(t, err)
	require.Equal(t, before+1, snap.Status.Attempts)

	stopManager(t, cancel, errCh)
}

func TestManagerUnknownSource(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, []config.Source{simSource("attic", time.Hour)}, nil)

	_, err := m.Source("nope")
	require.ErrorIs(t, err, ErrUnknownSource)

	_, err = m.History("nope", 10)
	require.ErrorIs(t, err, ErrUnknownSource)

	require.ErrorIs(t, m.Refresh(ctx, "nope"), ErrUnknownSource)
	require.ErrorIs(t, m.Reauthorize(ctx, "nope", source.Credentials{Token: "x"}), ErrUnknownSource)

	// Known source that has not started yet: no coordinator to refresh.
	require.ErrorIs(t, m.Refresh(ctx, "attic"), ErrSourceNotRunning)
	require.ErrorIs(t, m.Reauthorize(ctx, "attic", source.Credentials{}), ErrEmptyCredentials)
}

func TestManagerRejectsDuplicateIDs(t *testing.T) {
	st := testStore(t)
	hist, err := history.New(16)
	require.NoError(t, err)

	_, err = New([]config.Source{
		simSource("attic", time.Hour),
		simSource("attic", time.Hour),
	}, st, hist, testVault(t), nil, 1)
	require.Error(t, err)
}
