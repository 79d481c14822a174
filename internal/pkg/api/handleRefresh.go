// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

func (rt Router) handleRefresh(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := rt.refreshSource(r, ps.ByName("id"))
	rt.respond(w, r, cntRefresh, data, err)
}

// refreshSource forces one fetch and answers with the snapshot it produced.
// Concurrent refreshes of the same source all ride the same attempt, so a
// burst of POSTs costs the device one request.
func (rt Router) refreshSource(r *http.Request, id string) ([]byte, error) {
	if _, err := rt.authAPIKey(r); err != nil {
		return nil, err
	}

	if err := rt.mgr.Refresh(r.Context(), id); err != nil {
		return nil, err
	}

	snap, err := rt.mgr.Source(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&snap)
}

func (rt Router) handleRefreshAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := rt.refreshAll(r)
	rt.respond(w, r, cntRefresh, data, err)
}

func (rt Router) refreshAll(r *http.Request) ([]byte, error) {
	key, err := rt.authAPIKey(r)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(r.Context()).Info().Str("key", key.ID).Msg("refresh sweep requested")

	res, err := rt.mgr.RefreshAll(r.Context())
	if err != nil {
		return nil, err
	}
	return json.Marshal(&res)
}
