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
	"fmt"
	"time"
)

// ServerTimeouts is the configuration for the server timeouts
type ServerTimeouts struct {
	Read       time.Duration `config:"read"`
	ReadHeader time.Duration `config:"read_header"`
	Write      time.Duration `config:"write"`
	Idle       time.Duration `config:"idle"`
	Drain      time.Duration `config:"drain"`
}

// InitDefaults initializes the defaults for the configuration.
func (c *ServerTimeouts) InitDefaults() {
	// Handlers here answer from memory or local sqlite; a refresh endpoint
	// may wait on one fetch attempt, which the write timeout must cover.
	c.Read = 10 * time.Second
	c.ReadHeader = 5 * time.Second
	c.Write = 2 * time.Minute
	c.Idle = 30 * time.Second
	// Drain caps how long connections stay open for in-progress requests
	// once a shutdown signal arrives.
	c.Drain = 10 * time.Second
}

// ServerRate bounds how fast new connections are accepted.
type ServerRate struct {
	Interval time.Duration `config:"interval"`
	Burst    int           `config:"burst"`
}

// InitDefaults initializes the defaults for the configuration.
func (c *ServerRate) InitDefaults() {
	c.Interval = 5 * time.Millisecond
	c.Burst = 25
}

// Server is the configuration for the API server
type Server struct {
	Host              string         `config:"host"`
	Port              uint16         `config:"port"`
	MaxHeaderByteSize int            `config:"max_header_byte_size"`
	RefreshParallel   int            `config:"refresh_parallel"`
	Timeouts          ServerTimeouts `config:"timeouts"`
	Rate              ServerRate     `config:"rate"`
	Limits            ServerLimits   `config:"limits"`
	Runtime           Runtime        `config:"runtime"`
}

// InitDefaults initializes the defaults for the configuration.
func (c *Server) InitDefaults() {
	c.Host = "localhost"
	c.Port = 8420
	c.MaxHeaderByteSize = 8192 // 8k
	c.RefreshParallel = 4
}

// Validate ensures that the configuration is valid.
func (c *Server) Validate() error {
	if c.RefreshParallel <= 0 {
		return fmt.Errorf("refresh_parallel must be positive, got %d", c.RefreshParallel)
	}
	return nil
}

// BindAddress returns the host:port the API server listens on.
func (c *Server) BindAddress() string {
	return bindAddress(c.Host, c.Port)
}

func bindAddress(host string, port uint16) string {
	return fmt.Sprintf("%s:%d", host, port)
}
