// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package coordinator keeps the last known good data for one source fresh.
//
// A coordinator owns a fetch function and runs it on a schedule, on demand,
// or both. At most one fetch is ever in flight; a refresh requested while an
// attempt is running joins that attempt instead of starting another. Failed
// attempts never overwrite the last good data. Every completed attempt
// notifies the registered listeners exactly once, in subscription order.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FetchFunc retrieves one snapshot of source data. It must honor ctx
// cancellation and classify its failures with TransientError or AuthError;
// unclassified errors are treated as retryable.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// attemptT is the single in-flight fetch slot. Joiners wait on done and read
// err afterward; err is written exactly once, before done is closed.
type attemptT struct {
	id   string
	done chan struct{}
	err  error
}

// Coordinator serializes refreshes of a single source and fans completion
// out to listeners.
type Coordinator[T any] struct {
	name     string
	fetch    FetchFunc[T]
	interval time.Duration

	timeout time.Duration
	authSig func(error)

	log zerolog.Logger

	mut        sync.Mutex
	data       T
	hasData    bool
	lastOK     bool
	lastErr    error
	failures   int
	attempts   uint64
	successes  uint64
	lastAt     time.Time
	lastGoodAt time.Time
	authHalted bool
	stopped    bool

	inflight *attemptT
	subs     *Listener // list head sentinel
	nsubs    int
}

type optionsT struct {
	timeout time.Duration
	authSig func(error)
	log     *zerolog.Logger
}

// Option is a coordinator functional option.
type Option func(*optionsT)

// WithFetchTimeout bounds each fetch attempt. Zero leaves attempts bounded
// only by the caller's context.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *optionsT) {
		o.timeout = d
	}
}

// WithAuthSignal registers a hook invoked once per authorization failure
// streak, after listeners have been notified. The hook is how credential
// trouble escalates out of the polling loop.
func WithAuthSignal(fn func(error)) Option {
	return func(o *optionsT) {
		o.authSig = fn
	}
}

// WithLogger overrides the package logger, mostly for tests.
func WithLogger(l zerolog.Logger) Option {
	return func(o *optionsT) {
		o.log = &l
	}
}

// New creates a coordinator for the named source. No fetch is performed;
// the first attempt happens in FirstRefresh, Refresh or Run.
func New[T any](name string, fetch FetchFunc[T], interval time.Duration, opts ...Option) (*Coordinator[T], error) {
	if fetch == nil {
		return nil, ErrNoFetch
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	var o optionsT
	for _, opt := range opts {
		opt(&o)
	}

	c := &Coordinator[T]{
		name:     name,
		fetch:    fetch,
		interval: interval,
		timeout:  o.timeout,
		authSig:  o.authSig,
		subs:     makeHead(),
	}

	parent := log.Logger
	if o.log != nil {
		parent = *o.log
	}
	c.log = parent.With().Str("source", name).Str("ctx", "refresh coordinator").Logger()

	return c, nil
}

// Name returns the source name the coordinator was created with.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Interval returns the scheduled refresh interval.
func (c *Coordinator[T]) Interval() time.Duration {
	return c.interval
}

// Data returns the last successfully fetched value. The second return is
// false until the first success; failures never clear it.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.data, c.hasData
}

// LastSuccess reports whether the most recent completed attempt succeeded.
func (c *Coordinator[T]) LastSuccess() bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.lastOK
}

// LastError returns the error from the most recent completed attempt, or
// nil if it succeeded.
func (c *Coordinator[T]) LastError() error {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.lastErr
}

// Status is a consolidated state snapshot, shaped for status endpoints and
// attempt history records.
type Status struct {
	Source       string    `json:"source"`
	HasData      bool      `json:"has_data"`
	LastSuccess  bool      `json:"last_success"`
	LastError    string    `json:"last_error,omitempty"`
	Failures     int       `json:"consecutive_failures"`
	Attempts     uint64    `json:"attempts"`
	Successes    uint64    `json:"successes"`
	AuthRequired bool      `json:"auth_required"`
	InFlight     bool      `json:"in_flight"`
	LastAttempt  time.Time `json:"last_attempt,omitzero"`
	LastUpdate   time.Time `json:"last_update,omitzero"`
}

// Status returns the current snapshot under the coordinator mutex.
func (c *Coordinator[T]) Status() Status {
	c.mut.Lock()
	defer c.mut.Unlock()

	s := Status{
		Source:       c.name,
		HasData:      c.hasData,
		LastSuccess:  c.lastOK,
		Failures:     c.failures,
		Attempts:     c.attempts,
		Successes:    c.successes,
		AuthRequired: c.authHalted,
		InFlight:     c.inflight != nil,
		LastAttempt:  c.lastAt,
		LastUpdate:   c.lastGoodAt,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Listeners returns the number of registered listeners.
func (c *Coordinator[T]) Listeners() int {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.nsubs
}

// Subscribe registers fn to run after every completed refresh attempt,
// success or failure. Listeners are invoked in subscription order on the
// goroutine that ran the attempt; a listener added while an attempt is in
// flight is not notified for that attempt.
func (c *Coordinator[T]) Subscribe(fn func()) *Listener {
	l := newListener(fn)

	c.mut.Lock()
	c.subs.pushBack(l)
	c.nsubs++
	c.mut.Unlock()

	c.log.Debug().Str("listener", l.id).Msg("listener subscribed")
	return l
}

// Unsubscribe removes a listener. Safe to call from inside the listener's
// own callback, and safe to call more than once.
func (c *Coordinator[T]) Unsubscribe(l *Listener) {
	if l == nil {
		return
	}

	c.mut.Lock()
	if l.unlink() {
		c.nsubs--
	}
	c.mut.Unlock()
}

// Refresh fetches now, or joins the attempt already in flight. It returns
// the attempt's error; current data and state are read separately.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.mut.Lock()
	if c.stopped {
		c.mut.Unlock()
		return ErrStopped
	}
	if a := c.inflight; a != nil {
		c.mut.Unlock()
		return c.await(ctx, a)
	}
	a := &attemptT{
		id:   xid.New().String(),
		done: make(chan struct{}),
	}
	c.inflight = a
	c.mut.Unlock()

	c.execute(ctx, a)
	return a.err
}

// FirstRefresh performs the setup-time fetch. Authorization failures pass
// through so the caller can park the source for reauthorization; any other
// failure is wrapped in NotReadyError so the caller can retry setup later.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	err := c.Refresh(ctx)
	switch {
	case err == nil:
		return nil
	case IsAuth(err):
		return err
	case errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled):
		return err
	default:
		return &NotReadyError{Source: c.name, Err: err}
	}
}

// Run drives scheduled refreshes until ctx is cancelled. The interval is a
// guaranteed minimum gap: the timer is re-armed only after an attempt
// completes, and a tick that fires while another attempt is in flight is
// skipped outright. Failures are recorded and logged, never returned.
func (c *Coordinator[T]) Run(ctx context.Context) (err error) {
	c.log.Info().Dur("interval", c.interval).Msg("start")
	defer func() {
		c.log.Info().Err(err).Msg("exited")
	}()

	t := time.NewTimer(c.interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.tick(ctx)
			t.Reset(c.interval)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tick runs one scheduled attempt, unless one is already in flight or the
// source is halted pending reauthorization.
func (c *Coordinator[T]) tick(ctx context.Context) {
	c.mut.Lock()
	switch {
	case c.stopped:
		c.mut.Unlock()
		return
	case c.authHalted:
		c.mut.Unlock()
		c.log.Debug().Msg("tick skipped, reauthorization pending")
		return
	case c.inflight != nil:
		c.mut.Unlock()
		c.log.Debug().Msg("tick skipped, attempt already in flight")
		return
	}
	a := &attemptT{
		id:   xid.New().String(),
		done: make(chan struct{}),
	}
	c.inflight = a
	c.mut.Unlock()

	c.execute(ctx, a)
	if a.err != nil && !errors.Is(a.err, ErrStopped) {
		c.log.Warn().Err(a.err).Msg("scheduled refresh failed")
	}
}

// Reauthorized clears the authorization halt after new credentials are in
// place, allowing scheduled refreshes to resume. It does not fetch; callers
// typically follow up with Refresh to validate the new credentials.
func (c *Coordinator[T]) Reauthorized() {
	c.mut.Lock()
	was := c.authHalted
	c.authHalted = false
	c.mut.Unlock()

	if was {
		c.log.Info().Msg("reauthorized, scheduled refreshes resume")
	}
}

// Stop tears the coordinator down. No listener is invoked afterward; an
// attempt still in flight runs to completion but its result is discarded
// and resolves to ErrStopped. Stop is idempotent.
func (c *Coordinator[T]) Stop() {
	c.mut.Lock()
	if c.stopped {
		c.mut.Unlock()
		return
	}
	c.stopped = true

	// Detach every listener so late Unsubscribe calls stay no-ops.
	for !c.subs.isEmpty() {
		c.subs.popFront()
	}
	c.nsubs = 0
	c.mut.Unlock()

	c.log.Info().Msg("stopped")
}

// await blocks until the given attempt resolves or ctx is cancelled. The
// attempt keeps running either way; only the wait is abandoned.
func (c *Coordinator[T]) await(ctx context.Context, a *attemptT) error {
	c.log.Debug().Str("attempt", a.id).Msg("joining in-flight attempt")
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute runs the fetch for the attempt occupying the in-flight slot,
// applies the outcome to coordinator state and notifies listeners. It runs
// on the goroutine that claimed the slot and holds the slot through the
// fan-out, so two attempts can never interleave their notifications; a
// Refresh arriving mid-fan-out joins this attempt instead of starting the
// next one.
func (c *Coordinator[T]) execute(ctx context.Context, a *attemptT) {
	fctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := c.fetch(fctx)
	took := time.Since(start)

	// A deadline blown inside the fetch is transient by definition. Typed
	// failures from the fetcher pass through untouched.
	if err != nil && !IsAuth(err) && !IsTransient(err) && errors.Is(err, context.DeadlineExceeded) {
		err = &TransientError{Source: c.name, Err: err}
	}

	c.mut.Lock()
	if c.stopped {
		c.inflight = nil
		c.mut.Unlock()
		a.err = ErrStopped
		close(a.done)
		return
	}

	now := time.Now().UTC()
	c.attempts++
	c.lastAt = now

	var escalate bool
	if err != nil {
		c.lastOK = false
		c.lastErr = err
		c.failures++
		if IsAuth(err) && !c.authHalted {
			c.authHalted = true
			escalate = true
		}
	} else {
		c.data = data
		c.hasData = true
		c.lastOK = true
		c.lastErr = nil
		c.failures = 0
		c.successes++
		c.lastGoodAt = now
		c.authHalted = false
	}
	snap := c.subs.snapshot()
	c.mut.Unlock()

	c.log.Debug().
		Str("attempt", a.id).
		Dur("took", took).
		Bool("success", err == nil).
		Int("listeners", len(snap)).
		Msg("attempt complete")

	c.notify(snap)

	if escalate && c.authSig != nil {
		c.authSig(err)
	}

	// The slot is released only now; joiners still resolve through done.
	c.mut.Lock()
	c.inflight = nil
	c.mut.Unlock()

	a.err = err
	close(a.done)
}

// notify invokes the snapshotted listeners in order. Teardown mid-fanout
// stops the remaining callbacks; a listener unsubscribed after the snapshot
// was taken is skipped. Callbacks run without the coordinator mutex held,
// so they may subscribe and unsubscribe freely; calling Refresh from a
// listener deadlocks, as the fan-out is still part of the attempt.
func (c *Coordinator[T]) notify(snap []*Listener) {
	for _, l := range snap {
		c.mut.Lock()
		stopped := c.stopped
		linked := l.linked()
		c.mut.Unlock()

		if stopped {
			return
		}
		if !linked {
			continue
		}
		c.invoke(l)
	}
}

func (c *Coordinator[T]) invoke(l *Listener) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("listener", l.id).Interface("panic", r).Msg("refresh listener panicked")
		}
	}()
	l.fn()
}
