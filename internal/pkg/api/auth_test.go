// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearthd/internal/pkg/cache"
	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/token"
)

func testKDF() config.PBKDF2 {
	var kdf config.PBKDF2
	kdf.InitDefaults()
	kdf.Iterations = 2048 // keep key derivation cheap in tests
	return kdf
}

func testCache(t *testing.T) *cache.CacheT {
	t.Helper()
	var cfg config.Cache
	cfg.InitDefaults()
	cfg.APIKeyJitter = 0
	ck, err := cache.New(cfg)
	require.NoError(t, err)
	return ck
}

func authReq(key *token.APIKey) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	if key != nil {
		r.Header.Set("Authorization", key.Authorization())
	}
	return r
}

func TestAuthAPIKey(t *testing.T) {
	kdf := testKDF()
	key, entry, err := token.Generate(kdf)
	require.NoError(t, err)

	ck := testCache(t)
	rt := Router{vf: token.NewVerifier([]config.APIKey{entry}, kdf), ck: ck}

	t.Run("valid key", func(t *testing.T) {
		got, err := rt.authAPIKey(authReq(&key))
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
	})

	t.Run("valid key is cached", func(t *testing.T) {
		ck.Wait()
		valid, ok := ck.ValidAPIKey(key)
		assert.True(t, ok)
		assert.True(t, valid)
	})

	t.Run("no header", func(t *testing.T) {
		_, err := rt.authAPIKey(authReq(nil))
		assert.ErrorIs(t, err, token.ErrNoAuthHeader)
	})

	t.Run("wrong secret", func(t *testing.T) {
		bad := token.APIKey{ID: key.ID, Key: "tampered"}
		_, err := rt.authAPIKey(authReq(&bad))
		assert.ErrorIs(t, err, token.ErrUnauthorized)

		// The right secret must still get through afterwards: a wrong
		// presentation is never allowed to poison the cache for the id.
		_, err = rt.authAPIKey(authReq(&key))
		assert.NoError(t, err)
	})

	t.Run("unknown id is remembered", func(t *testing.T) {
		ghost := token.APIKey{ID: "ghost", Key: "whatever"}
		_, err := rt.authAPIKey(authReq(&ghost))
		assert.ErrorIs(t, err, token.ErrUnknownKeyID)

		ck.Wait()
		valid, ok := ck.ValidAPIKey(ghost)
		assert.True(t, ok)
		assert.False(t, valid)

		_, err = rt.authAPIKey(authReq(&ghost))
		assert.ErrorIs(t, err, token.ErrUnauthorized)
	})
}
