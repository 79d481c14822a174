// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
	"github.com/hearthlab/hearthd/internal/pkg/limit"
	"github.com/hearthlab/hearthd/internal/pkg/logger"
	"github.com/hearthlab/hearthd/internal/pkg/manager"
	"github.com/hearthlab/hearthd/internal/pkg/token"
)

var (
	// ErrInvalidLimit is returned when the history limit query parameter
	// does not parse as a non-negative integer.
	ErrInvalidLimit = errors.New("limit must be a non-negative integer")

	// ErrInvalidBody is returned when a request body does not decode.
	ErrInvalidBody = errors.New("invalid request body")
)

// errResp is the JSON error envelope every endpoint answers with.
type errResp struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	level      zerolog.Level
}

// respFor maps an error to its HTTP rendition. The fetch error taxonomy
// surfaces here: a device rejecting its credentials is the caller's problem
// to fix (401), a flaky device is a gateway-ish failure (502), a device
// still warming up is temporary (503).
func respFor(err error) errResp {
	switch {
	case errors.Is(err, manager.ErrUnknownSource):
		return errResp{http.StatusNotFound, "UnknownSource", "source is not configured", zerolog.InfoLevel}
	case errors.Is(err, manager.ErrSourceNotRunning):
		return errResp{http.StatusServiceUnavailable, "SourceNotRunning", "source is not running", zerolog.InfoLevel}
	case errors.Is(err, manager.ErrEmptyCredentials):
		return errResp{http.StatusBadRequest, "EmptyCredentials", "credentials are empty", zerolog.InfoLevel}
	case errors.Is(err, ErrInvalidLimit):
		return errResp{http.StatusBadRequest, "InvalidLimit", err.Error(), zerolog.InfoLevel}
	case errors.Is(err, ErrInvalidBody):
		return errResp{http.StatusBadRequest, "InvalidBody", err.Error(), zerolog.InfoLevel}
	case coordinator.IsAuth(err):
		return errResp{http.StatusUnauthorized, "SourceAuthRequired", err.Error(), zerolog.InfoLevel}
	case coordinator.IsTransient(err):
		return errResp{http.StatusBadGateway, "SourceUnreachable", err.Error(), zerolog.InfoLevel}
	case coordinator.IsNotReady(err):
		return errResp{http.StatusServiceUnavailable, "SourceNotReady", err.Error(), zerolog.InfoLevel}
	case errors.Is(err, coordinator.ErrStopped), errors.Is(err, context.Canceled):
		return errResp{http.StatusServiceUnavailable, "ServiceUnavailable", "server is stopping", zerolog.DebugLevel}
	case errors.Is(err, token.ErrUnauthorized):
		return errResp{http.StatusUnauthorized, "Unauthorized", "api key is not valid", zerolog.InfoLevel}
	case errors.Is(err, token.ErrNoAuthHeader),
		errors.Is(err, token.ErrMalformedHeader),
		errors.Is(err, token.ErrMalformedToken),
		errors.Is(err, token.ErrInvalidToken):
		return errResp{http.StatusBadRequest, "BadAuthorization", err.Error(), zerolog.InfoLevel}
	case errors.Is(err, limit.ErrRateLimit):
		return errResp{http.StatusTooManyRequests, "RateLimit", "exceeded the rate limit", zerolog.WarnLevel}
	case errors.Is(err, limit.ErrMaxLimit):
		return errResp{http.StatusTooManyRequests, "MaxLimit", "exceeded the max limit", zerolog.WarnLevel}
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errResp{http.StatusRequestEntityTooLarge, "BodyTooLarge", maxBytesErr.Error(), zerolog.InfoLevel}
	}

	return errResp{http.StatusInternalServerError, "Internal", err.Error(), zerolog.ErrorLevel}
}

// Write serializes the response with the proper headers.
func (er errResp) Write(w http.ResponseWriter) error {
	data, err := json.Marshal(&er)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(er.StatusCode)
	_, err = w.Write(data)
	return err
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	zlog := zerolog.Ctx(r.Context())
	resp := respFor(err)

	e := zlog.WithLevel(resp.level).Err(err).Int(logger.EcsHttpResponseCode, resp.StatusCode)
	if ts, ok := logger.CtxStartTime(r.Context()); ok {
		e = e.Int64(logger.EcsEventDuration, time.Since(ts).Nanoseconds())
	}
	e.Msg("HTTP request error")

	if wErr := resp.Write(w); wErr != nil && !errors.Is(wErr, context.Canceled) {
		zlog.Error().Err(wErr).Msg("fail writing error response")
	}
}
