// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hearthlab/hearthd/internal/pkg/api"
	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/internal/pkg/cache"
	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/gc"
	"github.com/hearthlab/hearthd/internal/pkg/history"
	"github.com/hearthlab/hearthd/internal/pkg/manager"
	"github.com/hearthlab/hearthd/internal/pkg/monitor"
	"github.com/hearthlab/hearthd/internal/pkg/scheduler"
	"github.com/hearthlab/hearthd/internal/pkg/state"
	"github.com/hearthlab/hearthd/internal/pkg/store"
	"github.com/hearthlab/hearthd/internal/pkg/token"
	"github.com/hearthlab/hearthd/internal/pkg/vault"
)

// Hearth is an instance of the hub.
type Hearth struct {
	bi       build.Info
	cfg      *config.Config
	reporter state.Reporter
}

// NewHearth creates the hub service from its loaded configuration.
func NewHearth(cfg *config.Config, bi build.Info, reporter state.Reporter) *Hearth {
	return &Hearth{
		bi:       bi,
		cfg:      cfg,
		reporter: reporter,
	}
}

type runFunc func(context.Context) error

// Run builds the hub out of its configuration and serves until ctx is
// cancelled or a subsystem fails. The manager reports the lifecycle states;
// Run only adds the FAILED report when the group comes down on an error.
func (h *Hearth) Run(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	initRuntime(h.cfg)

	cache, err := cache.New(h.cfg.Cache)
	if err != nil {
		return err
	}

	st, err := store.Open(h.cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("error encountered while closing store")
		}
	}()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	hist, err := history.New(h.cfg.Storage.HistorySize)
	if err != nil {
		return err
	}

	vlt, err := vault.FromEnv(h.cfg.Vault)
	if err != nil {
		return err
	}

	mgr, err := manager.New(h.cfg.Sources, st, hist, vlt, h.reporter, h.cfg.Server.RefreshParallel)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := h.runSubsystems(gctx, g, st, mgr, cache); err != nil {
		return err
	}

	// Hold until shutdown or the first subsystem error cancels the group,
	// then give the goroutines a bounded window to unwind.
	<-gctx.Done()
	err = safeWait(g, h.cfg.Server.Timeouts.Drain)

	// Eat cancel error to minimize confusion in logs
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		h.reporter.UpdateState(state.StateFailed, fmt.Sprintf("Error - %s", err), nil) //nolint:errcheck // unclear on what should we do if updating the status fails?
	}

	log.Info().Err(err).Msg("Hearthd exited")
	return err
}

// runSubsystems starts the long-running pieces on the group: the monitoring
// endpoint, the retention sweeps, the source manager and the API server.
func (h *Hearth) runSubsystems(ctx context.Context, g *errgroup.Group, st *store.Store, mgr *manager.Manager, ck cache.Cache) error {
	g.Go(loggedRunFunc(ctx, "Monitoring server", func(ctx context.Context) error {
		return monitor.Run(ctx, h.cfg.Monitor, h.bi)
	}))

	sched, err := scheduler.New(gc.Schedules(st, h.cfg.Storage.GCInterval, h.cfg.Storage.Retention))
	if err != nil {
		return fmt.Errorf("failed to create storage gc: %w", err)
	}
	g.Go(loggedRunFunc(ctx, "Storage GC", sched.Run))

	g.Go(loggedRunFunc(ctx, "Source manager", mgr.Run))

	router := api.NewRouter(&h.cfg.Server, mgr, token.NewVerifier(h.cfg.APIKeys, h.cfg.Vault), ck, h.bi)
	g.Go(loggedRunFunc(ctx, "Http server", func(ctx context.Context) error {
		return api.Run(ctx, router, &h.cfg.Server)
	}))

	return nil
}

func safeWait(g *errgroup.Group, to time.Duration) error {
	var err error
	waitCh := make(chan error)
	go func() {
		waitCh <- g.Wait()
	}()

	select {
	case err = <-waitCh:
	case <-time.After(to):
		zerolog.Ctx(context.TODO()).Warn().Msg("deadlock: goroutine locked up on errgroup.Wait()")
		err = errors.New("group wait timeout")
	}

	return err
}

func loggedRunFunc(ctx context.Context, tag string, runfn runFunc) func() error {
	log := zerolog.Ctx(ctx)
	return func() error {
		log.Debug().Msg(tag + " started")

		err := runfn(ctx)

		lvl := zerolog.DebugLevel
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			err = nil
		default:
			lvl = zerolog.ErrorLevel
		}

		log.WithLevel(lvl).Err(err).Msg(tag + " exited")
		return err
	}
}

func initRuntime(cfg *config.Config) {
	gcPercent := cfg.Server.Runtime.GCPercent
	if gcPercent != 0 {
		old := debug.SetGCPercent(gcPercent)

		zerolog.Ctx(context.TODO()).Info().
			Int("old", old).
			Int("new", gcPercent).
			Msg("SetGCPercent")
	}
	memoryLimit := cfg.Server.Runtime.MemoryLimit
	if memoryLimit != 0 {
		old := debug.SetMemoryLimit(memoryLimit)

		zerolog.Ctx(context.TODO()).Info().
			Int64("old", old).
			Int64("new", memoryLimit).
			Msg("SetMemoryLimit")
	}
}
