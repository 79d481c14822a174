// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration
// +build !integration

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

var errStop = errors.New("stop the group")

type scheduleTester struct {
	called int
}

func (s *scheduleTester) Run(ctx context.Context) error {
	s.called++
	return nil
}

func TestScheduler(t *testing.T) {
	const (
		interval = 200 * time.Millisecond
		runFor   = 500 * time.Millisecond
		// The first run fires immediately, then once per interval.
		wantCalls = int(runFor/interval) + 1
	)

	st := scheduleTester{}

	schedules := []Schedule{
		{
			Name:     "history prune",
			Interval: interval,
			WorkFn:   st.Run,
		},
	}

	// Zero splay keeps the call count deterministic.
	sched, err := New(schedules, WithFirstRunDelay(0), WithSplayPercent(0))
	if err != nil {
		t.Fatal(err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return sched.Run(ctx)
	})

	// Pull the plug on the group once runFor has elapsed.
	g.Go(func() error {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errStop
		}
	})

	err = g.Wait()
	if !errors.Is(err, errStop) {
		t.Errorf("unexpected err, want: %v, got: %v", errStop, err)
	}

	if diff := cmp.Diff(wantCalls, st.called); diff != "" {
		t.Fatal(diff)
	}
}

func TestSchedulerRejectsBadSplay(t *testing.T) {
	_, err := New(nil, WithSplayPercent(100))
	if err == nil {
		t.Fatal("expected splay >= 100 to be rejected")
	}
}

func TestSchedulerContainsFailure(t *testing.T) {
	calls := 0
	schedules := []Schedule{
		{
			Name:     "failing schedule",
			Interval: 50 * time.Millisecond,
			WorkFn: func(_ context.Context) error {
				calls++
				return errors.New("boom")
			},
		},
	}

	sched, err := New(schedules, WithFirstRunDelay(0), WithSplayPercent(0))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 130*time.Millisecond)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("a failing WorkFn must not stop the scheduler: %v", err)
	}
	if calls < 2 {
		t.Fatalf("schedule should keep firing after failure, got %d calls", calls)
	}
}
