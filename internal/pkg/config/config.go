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

// Package config handles hearthd's YAML configuration: the HTTP server, the
// polled sources and the storage, cache and logging settings around them.
package config

import (
	"fmt"

	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
)

// DefaultOptions defaults options used to read the configuration
var DefaultOptions = []ucfg.Option{
	ucfg.PathSep("."),
	ucfg.ResolveEnv,
	ucfg.VarExp,
}

// Config is the global configuration.
type Config struct {
	Server  Server   `config:"server"`
	Logging Logging  `config:"logging"`
	Cache   Cache    `config:"cache"`
	Storage Storage  `config:"storage"`
	Vault   PBKDF2   `config:"vault.pbkdf2"`
	Monitor Monitor  `config:"monitor"`
	Sources []Source `config:"sources"`
	APIKeys []APIKey `config:"api_keys"`
}

// Validate covers the cross-entry rules ucfg cannot express per field.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for _, src := range c.Sources {
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
	}

	keys := make(map[string]struct{}, len(c.APIKeys))
	for _, k := range c.APIKeys {
		if _, dup := keys[k.ID]; dup {
			return fmt.Errorf("duplicate api key id %q", k.ID)
		}
		keys[k.ID] = struct{}{}
	}
	return nil
}

// LoadFile take a path and load the file and return a new configuration.
func LoadFile(path string) (*Config, error) {
	c, err := yaml.NewConfigWithFile(path, DefaultOptions...)
	if err != nil {
		return nil, err
	}
	return unpack(c)
}

// Load reads the configuration from an in-memory YAML document, for tests.
func Load(doc string) (*Config, error) {
	c, err := yaml.NewConfig([]byte(doc), DefaultOptions...)
	if err != nil {
		return nil, err
	}
	return unpack(c)
}

func unpack(c *ucfg.Config) (*Config, error) {
	var cfg Config
	if err := c.Unpack(&cfg, DefaultOptions...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
