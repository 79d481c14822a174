// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package hearthd wires the command line. The root command loads the YAML
// configuration and runs the hub; apikey mints credentials for the POST
// endpoints.
package hearthd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/env"
	"github.com/hearthlab/hearthd/internal/pkg/logger"
	"github.com/hearthlab/hearthd/internal/pkg/reload"
	"github.com/hearthlab/hearthd/internal/pkg/server"
	"github.com/hearthlab/hearthd/internal/pkg/signal"
	"github.com/hearthlab/hearthd/internal/pkg/state"
)

func defaultConfigPath() string {
	return env.GetStr("HEARTHD_CONFIG", "hearthd.yml")
}

func installSignalHandler() context.Context {
	rootCtx := context.Background()
	return signal.HandleInterrupt(rootCtx)
}

// watchReload re-reads the configuration file after each SIGHUP and hands it
// to the reload manager. A file that no longer parses is logged and skipped;
// the running settings stay in place.
func watchReload(ctx context.Context, cfgPath string, rl reload.Reloadable) {
	for range signal.HandleReload(ctx) {
		cfg, err := config.LoadFile(cfgPath)
		if err != nil {
			log.Error().Err(err).Str("path", cfgPath).Msg("reload skipped, config file does not parse")
			continue
		}
		if err := rl.Reload(ctx, cfg); err != nil {
			log.Error().Err(err).Msg("reload failed")
		} else {
			log.Info().Str("path", cfgPath).Msg("configuration reloaded")
		}
	}
}

func getRunCommand(bi build.Info) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfgPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(cfgPath)
		if err != nil {
			return err
		}

		l := logger.Init(cfg.Logging, build.ServiceName)
		log.Info().
			Str("version", bi.Version).
			Str("commit", bi.Commit).
			Msg("Boot hearthd")

		ctx := installSignalHandler()
		ctx = log.Logger.WithContext(ctx)

		// Only the logging block applies live; everything else needs a
		// restart.
		rl := reload.NewReloadManager(reload.Func(func(ctx context.Context, cfg *config.Config) error {
			return l.Reload(ctx, cfg.Logging)
		}))
		go watchReload(ctx, cfgPath, rl)

		srv := server.NewHearth(cfg, bi, state.NewLog())
		return srv.Run(ctx)
	}
}

// NewCommand builds the hearthd command tree.
func NewCommand(bi build.Info) *cobra.Command {
	cmd := &cobra.Command{
		Use:   build.ServiceName,
		Short: "Hearthd polls home telemetry sources and serves their readings on the LAN",
		RunE:  getRunCommand(bi),
	}
	cmd.Flags().StringP("config", "c", defaultConfigPath(), "Configuration for Hearthd")
	cmd.AddCommand(newAPIKeyCommand())
	return cmd
}
