// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package coordinator

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	cause := errors.New("tcp reset")

	tests := []struct {
		name      string
		err       error
		transient bool
		auth      bool
		notReady  bool
	}{
		{
			name: "nil",
		},
		{
			name:      "transient",
			err:       &TransientError{Source: "hub", Err: cause},
			transient: true,
		},
		{
			name: "auth",
			err:  &AuthError{Source: "hub", Err: cause},
			auth: true,
		},
		{
			name:     "not ready plain",
			err:      &NotReadyError{Source: "hub", Err: cause},
			notReady: true,
		},
		{
			name:      "not ready wrapping transient",
			err:       &NotReadyError{Source: "hub", Err: &TransientError{Source: "hub", Err: cause}},
			notReady:  true,
			transient: true,
		},
		{
			name:      "wrapped once more",
			err:       fmt.Errorf("setup: %w", &TransientError{Source: "hub", Err: cause}),
			transient: true,
		},
		{
			name: "unclassified",
			err:  cause,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.transient {
				t.Errorf("IsTransient = %v, want %v", got, tc.transient)
			}
			if got := IsAuth(tc.err); got != tc.auth {
				t.Errorf("IsAuth = %v, want %v", got, tc.auth)
			}
			if got := IsNotReady(tc.err); got != tc.notReady {
				t.Errorf("IsNotReady = %v, want %v", got, tc.notReady)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("tcp reset")

	for _, err := range []error{
		&TransientError{Source: "hub", Err: cause},
		&AuthError{Source: "hub", Err: cause},
		&NotReadyError{Source: "hub", Err: cause},
	} {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}
