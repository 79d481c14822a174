// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package limit

import (
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/config"
)

// HTTPWrapper enforces rate limits for each API endpoint.
type HTTPWrapper struct {
	status  *limiter
	sources *limiter
	history *limiter
	refresh *limiter
	reauth  *limiter
	log     zerolog.Logger
}

// Create a new HTTPWrapper using the specified limits.
func NewHTTPWrapper(addr string, cfg *config.ServerLimits) *HTTPWrapper {
	return &HTTPWrapper{
		status:  newLimiter(&cfg.StatusLimit),
		sources: newLimiter(&cfg.SourcesLimit),
		history: newLimiter(&cfg.HistoryLimit),
		refresh: newLimiter(&cfg.RefreshLimit),
		reauth:  newLimiter(&cfg.ReauthLimit),
		log:     log.With().Str("addr", addr).Logger(),
	}
}

// WrapStatus wraps the status handler with the rate limiter and tracks statistics for the endpoint.
func (l *HTTPWrapper) WrapStatus(h httprouter.Handle, i StatIncer) httprouter.Handle {
	return l.status.wrap(l.log.With().Str("route", "status").Logger(), zerolog.DebugLevel, h, i)
}

// WrapSources wraps the source listing handlers with the rate limiter and tracks statistics for the endpoint.
func (l *HTTPWrapper) WrapSources(h httprouter.Handle, i StatIncer) httprouter.Handle {
	return l.sources.wrap(l.log.With().Str("route", "sources").Logger(), zerolog.DebugLevel, h, i)
}

// WrapHistory wraps the history handler with the rate limiter and tracks statistics for the endpoint.
func (l *HTTPWrapper) WrapHistory(h httprouter.Handle, i StatIncer) httprouter.Handle {
	return l.history.wrap(l.log.With().Str("route", "history").Logger(), zerolog.DebugLevel, h, i)
}

// WrapRefresh wraps the refresh handler with the rate limiter and tracks statistics for the endpoint.
// Refreshes hold a device fetch open, so hitting this limit is warn-worthy.
func (l *HTTPWrapper) WrapRefresh(h httprouter.Handle, i StatIncer) httprouter.Handle {
	return l.refresh.wrap(l.log.With().Str("route", "refresh").Logger(), zerolog.WarnLevel, h, i)
}

// WrapReauth wraps the reauth handler with the rate limiter and tracks statistics for the endpoint.
func (l *HTTPWrapper) WrapReauth(h httprouter.Handle, i StatIncer) httprouter.Handle {
	return l.reauth.wrap(l.log.With().Str("route", "reauth").Logger(), zerolog.DebugLevel, h, i)
}
