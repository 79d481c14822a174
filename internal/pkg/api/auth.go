// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/token"
)

// authAPIKey guards the endpoints that touch a device or its credentials.
// Verified keys are cached so the PBKDF2 derivation runs once per key, not
// per request; a wrong secret for a known id is never cached, only ids that
// are not configured at all.
func (rt Router) authAPIKey(r *http.Request) (*token.APIKey, error) {

	key, err := token.ExtractAPIKey(r)
	if err != nil {
		return nil, err
	}

	if valid, ok := rt.ck.ValidAPIKey(*key); ok {
		if !valid {
			return nil, token.ErrUnauthorized
		}
		return key, nil
	}

	start := time.Now()

	if err := rt.vf.Verify(key); err != nil {
		if errors.Is(err, token.ErrUnknownKeyID) {
			// An id missing from config stays bad until a config change;
			// remember the verdict so repeat offenders skip the KDF.
			rt.ck.SetAPIKey(*key, false)
		}
		log.Info().
			Err(err).
			Dur("tdiff", time.Since(start)).
			Msg("ApiKey fail authentication")
		return nil, err
	}

	log.Trace().
		Str("id", key.ID).
		Dur("tdiff", time.Since(start)).
		Msg("ApiKey authenticated")

	rt.ck.SetAPIKey(*key, true)
	return key, nil
}
