// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/hearthlab/hearthd/internal/pkg/source"
)

// HistoryResponse lists a source's recent fetch attempts, newest first.
type HistoryResponse struct {
	Source   string           `json:"source"`
	Attempts []source.Attempt `json:"attempts"`
}

func (rt Router) handleHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := rt.sourceHistory(r, ps.ByName("id"))
	rt.respond(w, r, cntHistory, data, err)
}

func (rt Router) sourceHistory(r *http.Request, id string) ([]byte, error) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLimit, s)
		}
		limit = v
	}

	atts, err := rt.mgr.History(id, limit)
	if err != nil {
		return nil, err
	}
	if atts == nil {
		atts = []source.Attempt{}
	}

	resp := HistoryResponse{Source: id, Attempts: atts}
	return json.Marshal(&resp)
}
