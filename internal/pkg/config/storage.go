// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package config

import (
	"errors"
	"time"
)

const (
	defaultStoragePath   = "hearthd.db"
	defaultRetention     = 7 * 24 * time.Hour
	defaultGCInterval    = time.Hour
	defaultHistoryPerSrc = 64
	minRetention         = time.Hour
)

// Storage is the configuration for the local reading store.
type Storage struct {
	Path string `config:"path"`
	// Retention bounds how long reading rows are kept; the last good
	// reading per source always survives pruning.
	Retention  time.Duration `config:"retention"`
	GCInterval time.Duration `config:"gc_interval"`
	// HistorySize is the per-source in-memory attempt history depth.
	HistorySize int `config:"history_size"`
}

func (s *Storage) InitDefaults() {
	s.Path = defaultStoragePath
	s.Retention = defaultRetention
	s.GCInterval = defaultGCInterval
	s.HistorySize = defaultHistoryPerSrc
}

// Validate ensures that the configuration is valid.
func (s *Storage) Validate() error {
	if s.Path == "" {
		return errors.New("storage path is required")
	}
	if s.Retention < minRetention {
		return errors.New("storage retention below one hour")
	}
	if s.GCInterval <= 0 {
		return errors.New("gc_interval must be positive")
	}
	if s.HistorySize <= 0 {
		return errors.New("history_size must be positive")
	}
	return nil
}
