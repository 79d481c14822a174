// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

import (
	"errors"
)

// PBKDF2 parameterizes key derivation for the credential vault and for API
// key verification.
type PBKDF2 struct {
	Iterations int `config:"iterations"`
	KeyLength  int `config:"key_length"`
	SaltLength int `config:"salt_length"`
}

// Validate the config options
func (p *PBKDF2) Validate() error {
	if p.Iterations <= 0 {
		return errors.New("iterations must be greater than 0")
	}
	if p.KeyLength <= 0 {
		return errors.New("key_length must be greater than 0")
	}
	if p.SaltLength <= 0 {
		return errors.New("salt_length must be greater than 0")
	}
	return nil
}

// InitDefaults sets the SHA-512 parameters OWASP recommends. Hashes derived
// under one set of parameters do not verify under another, so changing these
// orphans existing vault entries and API keys.
func (p *PBKDF2) InitDefaults() {
	p.Iterations = 210000
	p.KeyLength = 32
	p.SaltLength = 64
}
