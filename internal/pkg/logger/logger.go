// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package logger provides logging utilities for hearthd.
// Currently it wraps rs/zerolog
package logger

import (
	"context"
	"sync"

	"go.elastic.co/ecszerolog"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/env"
)

var once sync.Once
var gLogger *Logger

// Logger for the hearth daemon.
//
// Logger will manage the zerolog/log.Logger variable.
// An instance with TraceLevel is always created and log level is controlled through zerolog.GlobalLevel.
type Logger struct {
	cfg  config.Logging
	name string
}

// Reload reloads the logger configuration.
// If only the log level has changed then only GlobalLogLevel is set.
func (l *Logger) Reload(_ context.Context, cfg config.Logging) error {
	if lvl := levelFor(cfg); lvl != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
	}
	if l.cfg.Destination != cfg.Destination || l.cfg.Pretty != cfg.Pretty {
		log.Logger = configure(cfg, l.name)
	}
	l.cfg = cfg
	return nil
}

// Init initializes the logger.
//
// The logger writes ECS JSON entries to the configured destination, or
// console-formatted entries when pretty output is enabled. Only the first
// call configures anything; later calls return the same instance.
func Init(cfg config.Logging, svcName string) *Logger {
	once.Do(func() {
		zerolog.SetGlobalLevel(levelFor(cfg))
		log.Logger = configure(cfg, svcName)
		gLogger = &Logger{
			cfg:  cfg,
			name: svcName,
		}
	})
	return gLogger
}

// levelFor resolves the configured level. Setting HEARTHD_DEBUG pins the
// level at debug or lower, so a misbehaving hub can be inspected without
// editing its config file.
func levelFor(cfg config.Logging) zerolog.Level {
	level := cfg.LogLevel()
	if env.GetBool("HEARTHD_DEBUG", false) && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	return level
}

func configure(cfg config.Logging, svcName string) zerolog.Logger {
	out := cfg.DestinationWriter()
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	lg := ecszerolog.New(out).Level(zerolog.TraceLevel)
	if svcName != "" {
		lg = lg.With().Str(EcsServiceName, svcName).Logger()
	}
	return lg
}
