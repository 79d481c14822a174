// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package limit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unknown", err: errors.New("unknown"), want: "UnknownLimiter"},
		{name: "rate limit", err: ErrRateLimit, want: "RateLimit"},
		{name: "wrapped rate limit", err: fmt.Errorf("conn: %w", ErrRateLimit), want: "RateLimit"},
		{name: "max limit", err: ErrMaxLimit, want: "MaxLimit"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, writeError(w, tc.err))

			resp := w.Result()
			defer resp.Body.Close()
			require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
			require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

			var body struct {
				Status int    `json:"statusCode"`
				Error  string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, http.StatusTooManyRequests, body.Status)
			require.Equal(t, tc.want, body.Error)
		})
	}
}
