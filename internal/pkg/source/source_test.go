// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
)

func TestClassMinInterval(t *testing.T) {
	tests := []struct {
		class Class
		want  time.Duration
		valid bool
	}{
		{ClassLocal, 5 * time.Second, true},
		{ClassCloud, 60 * time.Second, true},
		{Class("satellite"), 60 * time.Second, false},
		{Class(""), 60 * time.Second, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.class), func(t *testing.T) {
			require.Equal(t, tc.want, tc.class.MinInterval())
			require.Equal(t, tc.valid, tc.class.Valid())
		})
	}
}

func TestCredentialsEmpty(t *testing.T) {
	require.True(t, Credentials{}.Empty())
	require.False(t, Credentials{Token: "t"}.Empty())
	require.False(t, Credentials{User: "u"}.Empty())
	require.False(t, Credentials{Pass: "p"}.Empty())
}

func TestSimFetcher(t *testing.T) {
	f := NewSimFetcher(SimConfig{Name: "sim", FailEvery: 3})
	defer f.Close()

	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		r, err := f.Fetch(ctx)
		if i%3 == 0 {
			if !coordinator.IsTransient(err) {
				t.Fatalf("fetch %d: expected scripted transient failure, got %v", i, err)
			}
			continue
		}
		require.NoError(t, err, "fetch %d", i)
		require.EqualValues(t, i, r.Fields["seq"])
		require.Contains(t, r.Fields, "temp_c")
		require.EqualValues(t, len(r.Raw), r.Bytes)
	}
}

func TestSimFetcherLatencyHonorsContext(t *testing.T) {
	f := NewSimFetcher(SimConfig{Name: "sim", Latency: time.Minute})
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx)
	require.Error(t, err)
	if took := time.Since(start); took > 5*time.Second {
		t.Fatalf("cancelled fetch took %v", took)
	}
}
