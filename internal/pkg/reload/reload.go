// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package reload fans a re-read configuration out to the components that
// accept one at runtime.
package reload

import (
	"context"

	"github.com/hearthlab/hearthd/internal/pkg/config"
)

// Reloadable takes a freshly parsed config and applies whatever slice of it
// it owns. Implementations decide themselves whether anything relevant
// changed; a no-op Reload is fine.
type Reloadable interface {
	Reload(context.Context, *config.Config) error
}

// Func adapts a plain function to the Reloadable interface.
type Func func(context.Context, *config.Config) error

// Reload calls f.
func (f Func) Reload(ctx context.Context, cfg *config.Config) error {
	return f(ctx, cfg)
}

type group struct {
	targets []Reloadable
}

// NewReloadManager bundles targets so a single Reload reaches all of them.
// Targets run in order and the first error stops the fan-out.
func NewReloadManager(targets ...Reloadable) Reloadable {
	return &group{targets: targets}
}

func (g *group) Reload(ctx context.Context, cfg *config.Config) error {
	for _, t := range g.targets {
		if err := t.Reload(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}
