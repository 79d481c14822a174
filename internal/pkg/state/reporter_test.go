// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "STARTING"},
		{StateHealthy, "HEALTHY"},
		{StateDegraded, "DEGRADED"},
		{StateFailed, "FAILED"},
		{StateStopping, "STOPPING"},
		{StateStopped, "STOPPED"},
		{State(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

type recordingReporter struct {
	states []State
	err    error
}

func (r *recordingReporter) UpdateState(state State, _ string, _ map[string]interface{}) error {
	r.states = append(r.states, state)
	return r.err
}

func TestChained(t *testing.T) {
	a := &recordingReporter{}
	b := &recordingReporter{}

	c := NewChained(a, b)
	require.NoError(t, c.UpdateState(StateHealthy, "all sources ready", nil))
	assert.Equal(t, []State{StateHealthy}, a.states)
	assert.Equal(t, []State{StateHealthy}, b.states)
}

func TestChainedStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingReporter{err: boom}
	b := &recordingReporter{}

	c := NewChained(a, b)
	err := c.UpdateState(StateDegraded, "source offline", nil)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, b.states)
}
