// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package monitor serves the monitoring endpoint: Prometheus metrics, the
// pprof handlers and a liveness probe on a single local address.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/profile"
)

var infoOnce sync.Once

// registerInfo publishes the service_info series carrying the service name
// and version as constant labels. Registration is process-wide, so a second
// monitor in the same process must not repeat it.
func registerInfo(bi build.Info) {
	infoOnce.Do(func() {
		info := promauto.NewCounter(prometheus.CounterOpts{
			Name: "service_info",
			Help: "Service information",
			ConstLabels: prometheus.Labels{
				"version": bi.Version,
				"name":    build.ServiceName,
			},
		})
		info.Inc()
	})
}

func newMux(bi build.Info) *http.ServeMux {
	registerInfo(bi)

	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/live", handleLive)
	profile.AddRoutes(r)
	return r
}

func handleLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"HEALTHY"}`))
}

// Run serves the monitoring endpoint on the configured address until ctx is
// cancelled. It returns right away when monitoring is disabled.
func Run(ctx context.Context, cfg config.Monitor, bi build.Info) error {
	if !cfg.Enabled {
		zerolog.Ctx(ctx).Info().Msg("Monitoring endpoint disabled")
		return nil
	}
	addr := cfg.BindAddress()

	bctx := func(net.Listener) context.Context { return ctx }

	timeouts := &config.ServerTimeouts{}
	timeouts.InitDefaults()

	server := http.Server{
		Addr:              addr,
		Handler:           newMux(bi),
		BaseContext:       bctx,
		ReadTimeout:       timeouts.Read,
		ReadHeaderTimeout: timeouts.ReadHeader,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}

	zerolog.Ctx(ctx).Info().Str("bind", addr).Msg("Installing monitoring endpoint")
	errCh := make(chan error)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		zerolog.Ctx(ctx).Error().Err(err).Str("bind", addr).Msg("Fail install monitoring endpoint")
		return err
	case <-ctx.Done():
		sCtx, cancel := context.WithTimeout(context.Background(), timeouts.Drain)
		defer cancel()
		if err := server.Shutdown(sCtx); err != nil {
			cErr := server.Close() // force it closed
			return errors.Join(fmt.Errorf("error while shutting down monitoring listener: %w", err), cErr)
		}
	}
	return nil
}
