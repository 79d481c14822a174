// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package gc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/scheduler"
	"github.com/hearthlab/hearthd/internal/pkg/store"
)

func getReadingsGCFunc(st *store.Store, retention time.Duration) scheduler.WorkFunc {
	return func(ctx context.Context) error {
		return pruneReadings(ctx, st, retention)
	}
}

func pruneReadings(ctx context.Context, st *store.Store, retention time.Duration) error {
	log := log.With().Str("ctx", "readings retention").Dur("retention", retention).Logger()

	log.Debug().Msg("delete aged readings")

	deleted, err := st.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Debug().Err(err).Msg("failed to delete readings")
		return err
	}
	log.Debug().Int64("count", deleted).Msg("deleted aged readings")
	return nil
}
