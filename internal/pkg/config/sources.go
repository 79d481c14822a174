// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthlab/hearthd/internal/pkg/source"
)

// Source kinds decide which fetcher a source entry gets.
const (
	KindRest   = "rest"
	KindSerial = "serial"
	KindSim    = "sim"
)

// Source configures one polled data source.
type Source struct {
	ID       string        `config:"id"`
	Name     string        `config:"name"`
	Kind     string        `config:"kind"`
	Class    string        `config:"class"`
	Interval time.Duration `config:"interval"`
	// FetchTimeout bounds a single fetch attempt. Zero picks a default
	// shorter than the interval.
	FetchTimeout time.Duration `config:"fetch_timeout"`

	// Rest source settings.
	URL        string            `config:"url"`
	Headers    map[string]string `config:"headers"`
	Schema     string            `config:"schema"`
	ProbePath  string            `config:"probe_path"`
	MinVersion string            `config:"min_version"`
	MaxBody    int64             `config:"max_body_byte_size"`

	// Serial source settings.
	Path     string `config:"path"`
	BaudRate int    `config:"baud_rate"`
	PollCmd  string `config:"poll_cmd"`

	// Sim source settings.
	FailEvery int           `config:"fail_every"`
	Latency   time.Duration `config:"latency"`
}

// InitDefaults initializes the defaults for the configuration.
func (s *Source) InitDefaults() {
	s.Kind = KindRest
	s.Class = string(source.ClassLocal)
}

// Validate enforces the per-class interval floor and the kind-specific
// required fields. Too-short intervals are rejected outright rather than
// clamped, so a typo cannot silently hammer an endpoint at the floor rate.
func (s *Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source is missing an id")
	}

	class := source.Class(s.Class)
	if !class.Valid() {
		return fmt.Errorf("source %s: unknown class %q", s.ID, s.Class)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("source %s: interval is required", s.ID)
	}
	if min := class.MinInterval(); s.Interval < min {
		return fmt.Errorf("source %s: interval %s below the %s floor for class %s",
			s.ID, s.Interval, min, s.Class)
	}
	if s.FetchTimeout < 0 {
		return fmt.Errorf("source %s: fetch_timeout cannot be negative", s.ID)
	}

	switch s.Kind {
	case KindRest:
		if s.URL == "" {
			return fmt.Errorf("source %s: url is required for rest sources", s.ID)
		}
		if s.Schema != "" && !json.Valid([]byte(s.Schema)) {
			return fmt.Errorf("source %s: schema is not valid JSON", s.ID)
		}
		if s.MinVersion != "" && s.ProbePath == "" {
			return fmt.Errorf("source %s: min_version requires probe_path", s.ID)
		}
	case KindSerial:
		if s.Path == "" {
			return fmt.Errorf("source %s: path is required for serial sources", s.ID)
		}
	case KindSim:
	default:
		return fmt.Errorf("source %s: unknown kind %q", s.ID, s.Kind)
	}
	return nil
}

// DisplayName returns the human name, falling back to the id.
func (s *Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// SourceClass returns the typed class.
func (s *Source) SourceClass() source.Class {
	return source.Class(s.Class)
}
