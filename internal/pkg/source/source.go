// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package source defines the data sources hearthd polls: what a reading
// looks like and how one is fetched. Fetch failures are classified with the
// coordinator taxonomy so the polling layer can tell credential trouble
// from plain flakiness.
package source

import (
	"context"
	"encoding/json"
	"time"
)

// Class groups sources by where they live; it decides the minimum allowed
// refresh interval. Local devices tolerate tight polling, cloud APIs are
// polled gently.
type Class string

const (
	ClassLocal Class = "local"
	ClassCloud Class = "cloud"
)

const (
	MinLocalInterval = 5 * time.Second
	MinCloudInterval = 60 * time.Second
)

// MinInterval returns the interval floor for the class. Unknown classes get
// the cloud floor, the conservative choice.
func (c Class) MinInterval() time.Duration {
	if c == ClassLocal {
		return MinLocalInterval
	}
	return MinCloudInterval
}

// Valid reports whether the class is one hearthd knows.
func (c Class) Valid() bool {
	return c == ClassLocal || c == ClassCloud
}

// Reading is one fetched snapshot of a source's data.
type Reading struct {
	At     time.Time       `json:"at"`
	Bytes  uint64          `json:"bytes"`
	Raw    json.RawMessage `json:"raw,omitempty"`
	Fields map[string]any  `json:"fields,omitempty"`
}

// Attempt is the recorded outcome of one fetch, success or not. Failed
// attempts carry the error text and no payload.
type Attempt struct {
	At    time.Time       `json:"at"`
	OK    bool            `json:"ok"`
	Bytes uint64          `json:"bytes,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
	Err   string          `json:"error,omitempty"`
}

// Fetcher retrieves readings from one source. Implementations classify
// their failures: AuthError for rejected credentials, TransientError for
// anything expected to clear up on retry.
type Fetcher interface {
	Fetch(ctx context.Context) (Reading, error)
	Close() error
}

// Credentials carries a source's secret material. Either Token or the
// User/Pass pair is set, not both.
type Credentials struct {
	Token string `json:"token,omitempty"`
	User  string `json:"user,omitempty"`
	Pass  string `json:"pass,omitempty"`
}

// Empty reports whether no credential material is present.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.User == "" && c.Pass == ""
}

// CredFunc resolves the current credentials for a source at fetch time, so
// a reauthorized secret takes effect on the next attempt without rebuilding
// the fetcher.
type CredFunc func(ctx context.Context) (Credentials, error)
