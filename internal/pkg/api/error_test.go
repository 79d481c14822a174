// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
	"github.com/hearthlab/hearthd/internal/pkg/limit"
	"github.com/hearthlab/hearthd/internal/pkg/manager"
	"github.com/hearthlab/hearthd/internal/pkg/token"
)

func TestRespFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		errStr string
	}{
		{"unknown source", fmt.Errorf("lookup: %w", manager.ErrUnknownSource), http.StatusNotFound, "UnknownSource"},
		{"source not running", manager.ErrSourceNotRunning, http.StatusServiceUnavailable, "SourceNotRunning"},
		{"empty credentials", manager.ErrEmptyCredentials, http.StatusBadRequest, "EmptyCredentials"},
		{"invalid limit", fmt.Errorf("%w: %q", ErrInvalidLimit, "x"), http.StatusBadRequest, "InvalidLimit"},
		{"invalid body", fmt.Errorf("%w: boom", ErrInvalidBody), http.StatusBadRequest, "InvalidBody"},
		{"source auth", &coordinator.AuthError{Source: "lock", Err: errors.New("401")}, http.StatusUnauthorized, "SourceAuthRequired"},
		{"source transient", &coordinator.TransientError{Source: "attic", Err: errors.New("timeout")}, http.StatusBadGateway, "SourceUnreachable"},
		{"source not ready", &coordinator.NotReadyError{Source: "boiler", Err: errors.New("booting")}, http.StatusServiceUnavailable, "SourceNotReady"},
		{"stopped", coordinator.ErrStopped, http.StatusServiceUnavailable, "ServiceUnavailable"},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, "ServiceUnavailable"},
		{"unauthorized", token.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"unknown key id", fmt.Errorf("%w: zed", token.ErrUnknownKeyID), http.StatusUnauthorized, "Unauthorized"},
		{"no auth header", token.ErrNoAuthHeader, http.StatusBadRequest, "BadAuthorization"},
		{"malformed token", token.ErrMalformedToken, http.StatusBadRequest, "BadAuthorization"},
		{"rate limit", limit.ErrRateLimit, http.StatusTooManyRequests, "RateLimit"},
		{"max limit", limit.ErrMaxLimit, http.StatusTooManyRequests, "MaxLimit"},
		{"internal", errors.New("kaboom"), http.StatusInternalServerError, "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := respFor(tt.err)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.errStr, resp.Error)
		})
	}
}

func TestErrRespWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := respFor(manager.ErrUnknownSource)
	require.NoError(t, resp.Write(rec))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body struct {
		StatusCode int    `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Equal(t, "UnknownSource", body.Error)
	assert.NotEmpty(t, body.Message)
}
