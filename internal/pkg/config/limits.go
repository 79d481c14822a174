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

package config

import (
	"time"
)

// Limit is the rate/concurrency envelope for one API route. A zero Interval
// disables the rate limit, a zero Max disables the concurrency cap.
type Limit struct {
	Interval time.Duration `config:"interval"`
	Burst    int           `config:"burst"`
	Max      int64         `config:"max"`
	MaxBody  int64         `config:"max_body_byte_size"`
}

// ServerLimits bounds the API server as a whole and each route on it.
type ServerLimits struct {
	MaxConnections int `config:"max_connections"`

	StatusLimit  Limit `config:"status_limit"`
	SourcesLimit Limit `config:"sources_limit"`
	HistoryLimit Limit `config:"history_limit"`
	RefreshLimit Limit `config:"refresh_limit"`
	ReauthLimit  Limit `config:"reauth_limit"`
}

// InitDefaults initializes the defaults for the configuration.
func (c *ServerLimits) InitDefaults() {
	c.MaxConnections = 100

	// Status and source listings answer from memory.
	c.StatusLimit = Limit{Interval: 5 * time.Millisecond, Burst: 25, Max: 50}
	c.SourcesLimit = Limit{Interval: 5 * time.Millisecond, Burst: 25, Max: 50}
	// History reads sqlite.
	c.HistoryLimit = Limit{Interval: 10 * time.Millisecond, Burst: 25, Max: 25}
	// Refresh and reauth reach out to the device; keep them scarce.
	c.RefreshLimit = Limit{Interval: 100 * time.Millisecond, Burst: 10, Max: 8}
	c.ReauthLimit = Limit{Interval: 100 * time.Millisecond, Burst: 5, Max: 2, MaxBody: 64 * 1024}
}
