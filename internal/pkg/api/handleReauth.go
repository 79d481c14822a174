// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/hearthlab/hearthd/internal/pkg/logger"
	"github.com/hearthlab/hearthd/internal/pkg/source"
)

func (rt Router) handleReauth(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := rt.reauthSource(w, r, ps.ByName("id"))
	rt.respond(w, r, cntReauth, data, err)
}

// reauthSource accepts replacement credentials for a source, seals them into
// the store and forces a fetch to prove them out. The credential body is
// never logged; only its byte count is.
func (rt Router) reauthSource(w http.ResponseWriter, r *http.Request, id string) ([]byte, error) {
	key, err := rt.authAPIKey(r)
	if err != nil {
		return nil, err
	}

	body := http.MaxBytesReader(w, r.Body, rt.maxReauthBody)
	counter := logger.NewReaderCounter(body)
	defer func() {
		cntReauth.bodyIn.Add(float64(counter.Count()))
	}()

	var creds source.Credentials
	if err := json.NewDecoder(counter).Decode(&creds); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	zerolog.Ctx(r.Context()).Info().
		Str("source", id).
		Str("key", key.ID).
		Msg("reauth requested")

	if err := rt.mgr.Reauthorize(r.Context(), id, creds); err != nil {
		return nil, err
	}

	snap, err := rt.mgr.Source(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&snap)
}
