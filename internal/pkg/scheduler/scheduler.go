// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package scheduler runs housekeeping functions on an interval with a
// randomized splay, so periodic work doesn't line up across restarts or
// with the polling timers.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSplayPercent  = 10
	defaultFirstRunDelay = 10 * time.Second
)

// WorkFunc is a unit of housekeeping work.
type WorkFunc func(ctx context.Context) error

// Schedule pairs a WorkFunc with how often it runs.
type Schedule struct {
	Name     string
	Interval time.Duration // Time between executions
	WorkFn   WorkFunc
}

// Scheduler owns a fixed set of schedules.
type Scheduler struct {
	log zerolog.Logger

	splayPercent  int
	firstRunDelay time.Duration // Wait before the first execution, splayed as well.

	rand      *rand.Rand
	schedules []Schedule
}

// OptFunc configures a scheduler at construction.
type OptFunc func(*Scheduler) error

// WithSplayPercent sets how far, in percent, an interval may stray in
// either direction. Values of 100 or more are rejected.
func WithSplayPercent(splayPercent uint) OptFunc {
	return func(s *Scheduler) error {
		if splayPercent >= 100 {
			return errors.New("invalid splay value, expected < 100")
		}
		s.splayPercent = int(splayPercent)
		return nil
	}
}

// WithFirstRunDelay sets how long every schedule waits before its first run.
func WithFirstRunDelay(delay time.Duration) OptFunc {
	return func(s *Scheduler) error {
		s.firstRunDelay = delay
		return nil
	}
}

// New creates a Scheduler. The schedule set is fixed at creation.
func New(schedules []Schedule, opts ...OptFunc) (*Scheduler, error) {
	s := &Scheduler{
		log:           log.With().Str("ctx", "housekeeping scheduler").Logger(),
		splayPercent:  defaultSplayPercent,
		firstRunDelay: defaultFirstRunDelay,
		rand:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // used for timing offsets
		schedules:     schedules,
	}

	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Run executes all scheduled functions according to their schedules.
// Interval is a guaranteed minimum: a slow execution delays the next one by
// the full interval. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, schedule := range s.schedules {
		g.Go(s.runLoop(ctx, schedule))
	}
	return g.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, schedule Schedule) func() error {
	return func() error {
		log := s.log.With().Str("schedule", schedule.Name).Logger()

		t := time.NewTimer(s.withSplay(s.firstRunDelay))
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug().Msg("exiting on context cancel")
				return nil
			case <-t.C:
				log.Debug().Dur("interval", schedule.Interval).Msg("started")
				if err := schedule.WorkFn(ctx); err != nil {
					log.Error().Err(err).Msg("failed running schedule function")
				}
				log.Debug().Msg("finished")
				t.Reset(s.withSplay(schedule.Interval))
			}
		}
	}
}

func (s *Scheduler) withSplay(interval time.Duration) time.Duration {
	percent := 100 - s.splayPercent + s.rand.Intn(2*s.splayPercent+1)
	return time.Duration(int64(interval) / int64(100.0) * int64(percent))
}
