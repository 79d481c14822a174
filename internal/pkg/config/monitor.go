// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

const kDefaultMonitorHost = "localhost"
const kDefaultMonitorPort = 8421

// Monitor is the configuration for the monitoring endpoint, which serves
// Prometheus metrics and the pprof handlers.
type Monitor struct {
	Enabled bool   `config:"enabled"`
	Host    string `config:"host"`
	Port    uint16 `config:"port"`
}

func (m *Monitor) InitDefaults() {
	m.Enabled = false
	m.Host = kDefaultMonitorHost
	m.Port = kDefaultMonitorPort
}

// BindAddress returns the host:port the monitoring server listens on.
func (m *Monitor) BindAddress() string {
	return bindAddress(m.Host, m.Port)
}
