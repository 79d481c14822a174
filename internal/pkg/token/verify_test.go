// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearthd/internal/pkg/config"
)

// testKDF keeps iterations low so the suite stays fast.
var testKDF = config.PBKDF2{Iterations: 16, KeyLength: 16, SaltLength: 8}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	key, entry, err := Generate(testKDF)
	require.NoError(t, err)
	require.Equal(t, key.ID, entry.ID)
	require.NoError(t, entry.Validate())

	v := NewVerifier([]config.APIKey{entry}, testKDF)
	assert.NoError(t, v.Verify(&key))
}

func TestVerifyRejects(t *testing.T) {
	key, entry, err := Generate(testKDF)
	require.NoError(t, err)
	v := NewVerifier([]config.APIKey{entry}, testKDF)

	t.Run("nil key", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(nil), ErrUnauthorized)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := v.Verify(&APIKey{ID: "nope", Key: key.Key})
		assert.ErrorIs(t, err, ErrUnknownKeyID)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := v.Verify(&APIKey{ID: key.ID, Key: "tampered"})
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.NotErrorIs(t, err, ErrUnknownKeyID)
	})

	t.Run("empty secret", func(t *testing.T) {
		err := v.Verify(&APIKey{ID: key.ID})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestGenerateUniqueKeys(t *testing.T) {
	a, ea, err := Generate(testKDF)
	require.NoError(t, err)
	b, eb, err := Generate(testKDF)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, ea.Salt, eb.Salt)
}
