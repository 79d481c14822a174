// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/source"
	"github.com/hearthlab/hearthd/internal/pkg/state"
	ftesting "github.com/hearthlab/hearthd/internal/pkg/testing"
	testlog "github.com/hearthlab/hearthd/internal/pkg/testing/log"
	"github.com/hearthlab/hearthd/internal/pkg/vault"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	port, err := ftesting.FreePort()
	require.NoError(t, err)

	// InitDefaults does not cascade outside of unpacking, so every nested
	// block is initialized by hand.
	cfg := &config.Config{}
	cfg.Server.InitDefaults()
	cfg.Server.Timeouts.InitDefaults()
	cfg.Server.Rate.InitDefaults()
	cfg.Server.Limits.InitDefaults()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = port
	cfg.Logging.InitDefaults()
	cfg.Cache.InitDefaults()
	cfg.Storage.InitDefaults()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "hearthd.db")
	cfg.Vault.InitDefaults()
	cfg.Sources = []config.Source{{
		ID:       "attic",
		Name:     "Attic sensor",
		Kind:     config.KindSim,
		Class:    string(source.ClassLocal),
		Interval: time.Hour,
	}}
	return cfg
}

func TestHearthRun(t *testing.T) {
	t.Setenv(vault.EnvKey, "test master key")

	cfg := testConfig(t)
	h := NewHearth(cfg, build.Info{Version: "1.2.3"}, state.NewLog())

	log := testlog.SetLogger(t)
	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	defer cancel()

	errCh := make(chan error)
	go func() {
		errCh <- h.Run(ctx)
	}()

	// Status flips to 200 once the sim source finished its first refresh.
	url := fmt.Sprintf("http://%s/api/status", cfg.Server.BindAddress())
	ftesting.Retry(t, ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("status answered %d", res.StatusCode)
		}
		return nil
	}, ftesting.RetryCount(200), ftesting.RetrySleep(20*time.Millisecond))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestHearthRunNoVaultKey(t *testing.T) {
	t.Setenv(vault.EnvKey, "")

	cfg := testConfig(t)
	h := NewHearth(cfg, build.Info{}, state.NewLog())

	log := testlog.SetLogger(t)
	err := h.Run(log.WithContext(t.Context()))
	require.ErrorIs(t, err, vault.ErrNoKey)
}

func TestSafeWait(t *testing.T) {
	t.Run("group finishes", func(t *testing.T) {
		g := &errgroup.Group{}
		g.Go(func() error { return nil })
		require.NoError(t, safeWait(g, time.Second))
	})

	t.Run("group locked up", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		g := &errgroup.Group{}
		g.Go(func() error {
			<-release
			return nil
		})
		err := safeWait(g, 10*time.Millisecond)
		require.EqualError(t, err, "group wait timeout")
	})
}

func TestLoggedRunFunc(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "clean exit", in: nil, want: nil},
		{name: "cancel collapses to nil", in: context.Canceled, want: nil},
		{name: "wrapped cancel collapses to nil", in: fmt.Errorf("serve: %w", context.Canceled), want: nil},
		{name: "real error passes through", in: boom, want: boom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := testlog.SetLogger(t)
			ctx := log.WithContext(t.Context())

			fn := loggedRunFunc(ctx, "Test subsystem", func(_ context.Context) error {
				return tc.in
			})
			assert.Equal(t, tc.want, fn())
		})
	}
}
