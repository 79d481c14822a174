// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

import (
	"encoding/hex"
	"fmt"
)

// APIKey authorizes the write endpoints. The secret is never stored: the
// config carries its PBKDF2 hash and the salt used to derive it, both hex.
type APIKey struct {
	ID   string `config:"id"`
	Hash string `config:"hash"`
	Salt string `config:"salt"`
}

// Validate ensures that the configuration is valid.
func (k *APIKey) Validate() error {
	if k.ID == "" {
		return fmt.Errorf("api key is missing an id")
	}
	if _, err := hex.DecodeString(k.Hash); err != nil || k.Hash == "" {
		return fmt.Errorf("api key %s: hash must be non-empty hex", k.ID)
	}
	if _, err := hex.DecodeString(k.Salt); err != nil || k.Salt == "" {
		return fmt.Errorf("api key %s: salt must be non-empty hex", k.ID)
	}
	return nil
}

// HashBytes returns the decoded hash. Call after Validate.
func (k *APIKey) HashBytes() []byte {
	b, _ := hex.DecodeString(k.Hash)
	return b
}

// SaltBytes returns the decoded salt. Call after Validate.
func (k *APIKey) SaltBytes() []byte {
	b, _ := hex.DecodeString(k.Salt)
	return b
}
