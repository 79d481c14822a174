// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package limit

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrRateLimit = errors.New("rate limit")
	ErrMaxLimit  = errors.New("max limit")
)

// writeError answers a throttled request with the same JSON envelope the
// api package uses; it lives here rather than there to avoid a circular
// import. Every limiter outcome maps to 429.
func writeError(w http.ResponseWriter, err error) error {
	name, msg := "UnknownLimiter", "unknown limiter error encountered"
	switch {
	case errors.Is(err, ErrRateLimit):
		name, msg = "RateLimit", "exceeded the rate limit"
	case errors.Is(err, ErrMaxLimit):
		name, msg = "MaxLimit", "exceeded the max limit"
	}

	data, mErr := json.Marshal(&struct {
		StatusCode int    `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}{
		StatusCode: http.StatusTooManyRequests,
		Error:      name,
		Message:    msg,
	})
	if mErr != nil {
		return mErr
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusTooManyRequests)
	_, wErr := w.Write(data)
	return wErr
}
