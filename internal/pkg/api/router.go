// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package api serves the hub's HTTP surface: the status rollup, the source
// snapshots and their attempt history, and the refresh and reauth verbs.
// Read endpoints are open on the LAN; the verbs that touch a device or its
// credentials require an ApiKey authorization header.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/internal/pkg/cache"
	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/limit"
	"github.com/hearthlab/hearthd/internal/pkg/manager"
	"github.com/hearthlab/hearthd/internal/pkg/token"
)

const (
	routeStatus     = "/api/status"
	routeSources    = "/api/sources"
	routeSource     = "/api/sources/:id"
	routeHistory    = "/api/sources/:id/history"
	routeRefresh    = "/api/sources/:id/refresh"
	routeReauth     = "/api/sources/:id/reauth"
	routeRefreshAll = "/api/refresh"
)

// Router holds what the handlers need. The zero value is not usable; build
// one with NewRouter.
type Router struct {
	mgr           *manager.Manager
	vf            *token.Verifier
	ck            cache.Cache
	bi            build.Info
	maxReauthBody int64
}

func NewRouter(cfg *config.Server, mgr *manager.Manager, vf *token.Verifier, ck cache.Cache, bi build.Info) *httprouter.Router {

	rt := Router{
		mgr:           mgr,
		vf:            vf,
		ck:            ck,
		bi:            bi,
		maxReauthBody: cfg.Limits.ReauthLimit.MaxBody,
	}

	wrapper := limit.NewHTTPWrapper(cfg.BindAddress(), &cfg.Limits)

	router := httprouter.New()
	router.GET(routeStatus, wrapper.WrapStatus(rt.handleStatus, cntStatus))
	router.GET(routeSources, wrapper.WrapSources(rt.handleSources, cntSources))
	router.GET(routeSource, wrapper.WrapSources(rt.handleSource, cntSources))
	router.GET(routeHistory, wrapper.WrapHistory(rt.handleHistory, cntHistory))
	router.POST(routeRefresh, wrapper.WrapRefresh(rt.handleRefresh, cntRefresh))
	router.POST(routeReauth, wrapper.WrapReauth(rt.handleReauth, cntReauth))
	router.POST(routeRefreshAll, wrapper.WrapRefresh(rt.handleRefreshAll, cntRefresh))
	return router
}

// respond is the common tail of every handler: errors go out through the
// shared mapping, payloads with the JSON headers and a byte count on the
// route's stats.
func (rt Router) respond(w http.ResponseWriter, r *http.Request, stats *routeStats, data []byte, err error) {
	if err != nil {
		stats.IncError(err)
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	nWritten, err := w.Write(data)
	if err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("fail writing response")
	}
	stats.bodyOut.Add(float64(nWritten))
}
