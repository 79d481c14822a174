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

// Package vault seals per-source credentials with AES-256-GCM under keys
// derived from a master secret, so tokens never reach the database in the
// clear. A sealed blob is base64([salt, iv, tag, data]).
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/pbkdf2"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/env"
	"github.com/hearthlab/hearthd/internal/pkg/source"
)

// EnvKey names the environment variable carrying the master secret.
const EnvKey = "HEARTHD_VAULT_KEY"

const (
	tagLen  = 16
	ivLen   = 12
	saltLen = 64
	// AES-256 key size; independent of the api key KDF settings.
	keyLen = 32
)

var (
	ErrNoKey         = errors.New("vault master key is not set")
	ErrBadCipherText = errors.New("bad cipher text")
)

type Vault struct {
	key        []byte
	iterations int
}

func New(key []byte, kdf config.PBKDF2) (*Vault, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}
	return &Vault{key: key, iterations: kdf.Iterations}, nil
}

// FromEnv builds a vault from the HEARTHD_VAULT_KEY environment variable.
func FromEnv(kdf config.PBKDF2) (*Vault, error) {
	return New([]byte(env.GetStr(EnvKey, "")), kdf)
}

// Seal encrypts creds bound to the source id. The id participates as AAD, so
// a blob copied onto another source's row will not open.
func (v *Vault) Seal(sourceID string, creds source.Credentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}

	// Generate random data for iv and salt
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}

	aesgcm, err := v.cipherFor(nonce.salt())
	if err != nil {
		return "", err
	}

	ciphertext := aesgcm.Seal(nil, nonce.iv(), plaintext, aad(sourceID))

	// Expects binary buffer [salt, iv, tag, encrypted]; Seal puts the tag on
	// the back of the slice, so reorg a bit.
	tagOffset := len(ciphertext) - tagLen

	buf := bytes.Buffer{}
	buf.Grow(ivLen + saltLen + len(ciphertext))
	buf.Write(nonce.both())
	buf.Write(ciphertext[tagOffset:])
	buf.Write(ciphertext[:tagOffset])

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts a sealed blob for the given source id.
func (v *Vault) Open(sourceID, blob string) (source.Credentials, error) {
	var creds source.Credentials

	ciphertext, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return creds, err
	}

	// expects header [salt, iv, tag, encrypted]
	if len(ciphertext) <= saltLen+ivLen+tagLen {
		return creds, ErrBadCipherText
	}

	tagOffset := saltLen + ivLen
	dataOffset := tagOffset + tagLen

	salt := ciphertext[:saltLen]
	iv := ciphertext[saltLen:tagOffset]
	tag := ciphertext[tagOffset:dataOffset]
	data := ciphertext[dataOffset:]

	aesgcm, err := v.cipherFor(salt)
	if err != nil {
		return creds, err
	}

	// aesgcm expects the tag after the ciphertext
	buf := bytes.Buffer{}
	buf.Grow(len(data) + len(tag))
	buf.Write(data)
	buf.Write(tag)

	plaintext, err := aesgcm.Open(nil, iv, buf.Bytes(), aad(sourceID))
	if err != nil {
		return creds, err
	}

	err = json.Unmarshal(plaintext, &creds)
	return creds, err
}

func (v *Vault) cipherFor(salt []byte) (cipher.AEAD, error) {
	dk := pbkdf2.Key(v.key, salt, v.iterations, keyLen, sha512.New)
	block, err := aes.NewCipher(dk)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithTagSize(block, tagLen)
}

// aad binds a blob to its owning source row.
func aad(sourceID string) []byte {
	b, _ := json.Marshal([]string{"credentials", sourceID})
	return b
}

type nonceT struct {
	buf []byte
}

func newNonce() (nonceT, error) {
	n := nonceT{
		buf: make([]byte, saltLen+ivLen),
	}

	_, err := rand.Read(n.buf)
	return n, err
}

func (n nonceT) iv() []byte {
	return n.buf[saltLen:]
}

func (n nonceT) salt() []byte {
	return n.buf[:saltLen]
}

func (n nonceT) both() []byte {
	return n.buf
}
