// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package token

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/hearthlab/hearthd/internal/pkg/config"
)

var (
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownKeyID means the presented id is not configured at all, as
	// opposed to a configured id with the wrong secret. It wraps
	// ErrUnauthorized so callers matching the broad class still do.
	ErrUnknownKeyID = fmt.Errorf("unknown api key id: %w", ErrUnauthorized)
)

// Verifier checks presented api keys against the configured PBKDF2 hashes.
type Verifier struct {
	keys map[string]config.APIKey
	kdf  config.PBKDF2
}

func NewVerifier(keys []config.APIKey, kdf config.PBKDF2) *Verifier {
	m := make(map[string]config.APIKey, len(keys))
	for _, k := range keys {
		m[k.ID] = k
	}
	return &Verifier{keys: m, kdf: kdf}
}

// Verify derives the hash of the presented secret and compares it in
// constant time against the configured hash for the key id.
func (v *Verifier) Verify(key *APIKey) error {
	if key == nil {
		return ErrUnauthorized
	}
	cfg, ok := v.keys[key.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKeyID, key.ID)
	}
	hash := cfg.HashBytes()
	derived := pbkdf2.Key([]byte(key.Key), cfg.SaltBytes(), v.kdf.Iterations, len(hash), sha512.New)
	if subtle.ConstantTimeCompare(hash, derived) != 1 {
		return fmt.Errorf("%w: api key %s", ErrUnauthorized, key.ID)
	}
	return nil
}

// Generate mints a fresh api key: the presentable id/secret pair and the
// hash/salt entry to put in the server config.
func Generate(kdf config.PBKDF2) (APIKey, config.APIKey, error) {
	secret := make([]byte, kdf.KeyLength)
	if _, err := rand.Read(secret); err != nil {
		return APIKey{}, config.APIKey{}, err
	}
	salt := make([]byte, kdf.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return APIKey{}, config.APIKey{}, err
	}

	key := APIKey{
		ID:  xid.New().String(),
		Key: base64.RawURLEncoding.EncodeToString(secret),
	}
	hash := pbkdf2.Key([]byte(key.Key), salt, kdf.Iterations, kdf.KeyLength, sha512.New)

	entry := config.APIKey{
		ID:   key.ID,
		Hash: hex.EncodeToString(hash),
		Salt: hex.EncodeToString(salt),
	}
	return key, entry, nil
}
