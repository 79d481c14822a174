// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (rt Router) handleSources(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := json.Marshal(rt.mgr.List())
	rt.respond(w, r, cntSources, data, err)
}

func (rt Router) handleSource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := rt.sourceSnapshot(ps.ByName("id"))
	rt.respond(w, r, cntSources, data, err)
}

func (rt Router) sourceSnapshot(id string) ([]byte, error) {
	snap, err := rt.mgr.Source(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&snap)
}
