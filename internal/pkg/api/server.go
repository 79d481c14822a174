// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"context"
	"errors"
	slog "log"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/limit"
	"github.com/hearthlab/hearthd/internal/pkg/logger"
	"github.com/hearthlab/hearthd/internal/pkg/rate"
)

func diagConn(c net.Conn, s http.ConnState) {
	if c == nil {
		return
	}

	log.Trace().
		Str("local", c.LocalAddr().String()).
		Str("remote", c.RemoteAddr().String()).
		Str("state", s.String()).
		Msg("connection state change")

	switch s {
	case http.StateNew:
		cntHTTPNew.Inc()
	case http.StateClosed:
		cntHTTPClose.Inc()
	}
}

// Run serves handler on the configured bind address until ctx is done, then
// drains in-flight requests for at most the drain timeout before forcing
// connections closed.
func Run(ctx context.Context, handler http.Handler, cfg *config.Server) error {

	addr := cfg.BindAddress()
	rdto := cfg.Timeouts.Read
	wrto := cfg.Timeouts.Write
	mhbz := cfg.MaxHeaderByteSize
	bctx := func(net.Listener) context.Context { return ctx }

	log.Info().
		Str("bind", addr).
		Dur("rdTimeout", rdto).
		Dur("wrTimeout", wrto).
		Msg("server listening")

	server := http.Server{
		Addr:              addr,
		ReadTimeout:       rdto,
		ReadHeaderTimeout: cfg.Timeouts.ReadHeader,
		WriteTimeout:      wrto,
		IdleTimeout:       cfg.Timeouts.Idle,
		Handler:           logger.Middleware(handler),
		BaseContext:       bctx,
		ConnState:         diagConn,
		MaxHeaderBytes:    mhbz,
		ErrorLog:          errLogger(),
	}

	forceCh := make(chan struct{})
	defer close(forceCh)

	// handler to drain and close the server
	go func() {
		select {
		case <-ctx.Done():
			log.Debug().Dur("drain", cfg.Timeouts.Drain).Msg("server drain on ctx.Done()")
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Drain)
			defer cancel()
			if err := server.Shutdown(sctx); err != nil {
				log.Debug().Err(err).Msg("force server close after drain")
				server.Close()
			}
		case <-forceCh:
			log.Debug().Msg("go routine forced closed on exit")
		}
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	defer ln.Close()

	ln = wrapConnLimiter(ln, cfg)
	ln = wrapRateLimiter(ctx, ln, cfg)

	if err := server.Serve(ln); err != nil &&
		!errors.Is(err, http.ErrServerClosed) &&
		!errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func wrapConnLimiter(ln net.Listener, cfg *config.Server) net.Listener {
	hardLimit := cfg.Limits.MaxConnections

	if hardLimit != 0 {
		log.Info().
			Int("hardConnLimit", hardLimit).
			Msg("server hard connection limiter installed")

		ln = limit.Listener(ln, hardLimit, &log.Logger)
	} else {
		log.Info().Msg("server hard connection limiter disabled")
	}

	return ln
}

func wrapRateLimiter(ctx context.Context, ln net.Listener, cfg *config.Server) net.Listener {
	if cfg.Rate.Interval != 0 {
		log.Info().
			Dur("interval", cfg.Rate.Interval).
			Int("burst", cfg.Rate.Burst).
			Msg("server rate limiter installed")
		ln = rate.NewRateListener(ctx, ln, cfg.Rate.Burst, cfg.Rate.Interval)
	} else {
		log.Info().Msg("server connection rate limiter disabled")
	}

	return ln
}

type stubLogger struct {
}

func (s *stubLogger) Write(p []byte) (n int, err error) {
	log.Error().Bytes(logger.EcsMessage, p).Send()
	return len(p), nil
}

func errLogger() *slog.Logger {
	stub := &stubLogger{}
	return slog.New(stub, "", 0)
}
