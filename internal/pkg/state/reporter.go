// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package state names the run states the hub moves through and fans state
// transitions out to the configured reporters.
package state

import (
	"context"

	"github.com/rs/zerolog"
)

// State is the aggregate condition of the hub, rolled up from the
// per-source lifecycles by the manager.
type State int

const (
	// StateStarting covers the span from process start until every
	// configured source finished its first refresh attempt.
	StateStarting State = iota
	// StateHealthy means all sources are ready and polling.
	StateHealthy
	// StateDegraded means at least one source is waiting on setup retries
	// or on new credentials, while the rest keep serving.
	StateDegraded
	// StateFailed means no source is serving data.
	StateFailed
	// StateStopping is set once teardown begins.
	StateStopping
	// StateStopped is the terminal state after teardown.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateFailed:
		return "FAILED"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// Reporter is interface that reports updated state on.
type Reporter interface {
	// UpdateState triggers updating the state.
	UpdateState(state State, message string, payload map[string]interface{}) error
}

// Log will write state to log.
type Log struct{}

// NewLog creates a Log.
func NewLog() *Log {
	return &Log{}
}

// UpdateState triggers updating the state.
func (l *Log) UpdateState(state State, message string, _ map[string]interface{}) error {
	zerolog.Ctx(context.TODO()).Info().Str("state", state.String()).Msg(message)
	return nil
}

// Chained calls UpdateState on all the provided reporters in the provided order.
type Chained struct {
	reporters []Reporter
}

// NewChained creates a Chained with provided reporters.
func NewChained(reporters ...Reporter) *Chained {
	return &Chained{reporters}
}

// UpdateState triggers updating the state.
func (l *Chained) UpdateState(state State, message string, payload map[string]interface{}) error {
	for _, reporter := range l.reporters {
		if err := reporter.UpdateState(state, message, payload); err != nil {
			return err
		}
	}
	return nil
}
