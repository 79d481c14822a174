// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

//go:build !integration

package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/source"
)

// low iteration count keeps the suite fast
var testKDF = config.PBKDF2{Iterations: 16, KeyLength: 32, SaltLength: 64}

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New([]byte("hearth-test-master-key"), testKDF)
	require.NoError(t, err)
	return v
}

func TestVaultRoundTrip(t *testing.T) {
	v := testVault(t)
	creds := source.Credentials{Token: "tok-123", User: "pi", Pass: "s3cret"}

	blob, err := v.Seal("meteo", creds)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	got, err := v.Open("meteo", blob)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestVaultBlobsDiffer(t *testing.T) {
	v := testVault(t)
	creds := source.Credentials{Token: "tok-123"}

	a, err := v.Seal("meteo", creds)
	require.NoError(t, err)
	b, err := v.Seal("meteo", creds)
	require.NoError(t, err)

	// fresh salt and iv every time
	assert.NotEqual(t, a, b)
}

func TestVaultWrongSource(t *testing.T) {
	v := testVault(t)

	blob, err := v.Seal("meteo", source.Credentials{Token: "tok-123"})
	require.NoError(t, err)

	_, err = v.Open("attic", blob)
	assert.Error(t, err, "blob moved between sources must not open")
}

func TestVaultWrongKey(t *testing.T) {
	blob, err := testVault(t).Seal("meteo", source.Credentials{Token: "tok-123"})
	require.NoError(t, err)

	other, err := New([]byte("other-key"), testKDF)
	require.NoError(t, err)
	_, err = other.Open("meteo", blob)
	assert.Error(t, err)
}

func TestVaultTamper(t *testing.T) {
	v := testVault(t)

	blob, err := v.Seal("meteo", source.Credentials{Token: "tok-123"})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = v.Open("meteo", base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	t.Run("truncated", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString(raw[:saltLen+ivLen])
		_, err := v.Open("meteo", short)
		assert.ErrorIs(t, err, ErrBadCipherText)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := v.Open("meteo", "%%%")
		assert.Error(t, err)
	})
}

func TestVaultFromEnv(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv(EnvKey, "")
		_, err := FromEnv(testKDF)
		assert.ErrorIs(t, err, ErrNoKey)
	})

	t.Run("round trip", func(t *testing.T) {
		t.Setenv(EnvKey, "hearth-env-master-key")
		v, err := FromEnv(testKDF)
		require.NoError(t, err)

		blob, err := v.Seal("meter", source.Credentials{User: "u", Pass: "p"})
		require.NoError(t, err)
		got, err := v.Open("meter", blob)
		require.NoError(t, err)
		assert.Equal(t, "u", got.User)
	})
}
