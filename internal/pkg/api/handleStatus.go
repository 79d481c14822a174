// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/internal/pkg/state"
)

// StatusResponse is the service rollup: the aggregate state plus each
// source's lifecycle state, keyed by source id.
type StatusResponse struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Sources map[string]string `json:"sources,omitempty"`
}

func (rt Router) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	zlog := zerolog.Ctx(r.Context())

	st, msg := rt.mgr.CurrentState()

	resp := StatusResponse{
		Name:    build.ServiceName,
		Version: rt.bi.Version,
		Status:  st.String(),
		Message: msg,
		Sources: make(map[string]string),
	}
	for _, snap := range rt.mgr.List() {
		resp.Sources[snap.ID] = string(snap.State)
	}

	data, err := json.Marshal(&resp)
	if err != nil {
		code := http.StatusInternalServerError
		zlog.Error().Err(err).Int("code", code).Msg("fail status")
		http.Error(w, "", code)
		return
	}

	// A hub that is starting, stopped or fully failed answers 503 so probes
	// treat it as not serving; degraded still counts as up.
	code := http.StatusServiceUnavailable
	if st == state.StateHealthy || st == state.StateDegraded {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	nWritten, err := w.Write(data)
	if err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error().Err(err).Int("code", code).Msg("fail status")
	}

	cntStatus.bodyOut.Add(float64(nWritten))
}
