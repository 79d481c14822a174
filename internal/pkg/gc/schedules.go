// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package gc prunes aged rows out of the readings log.
package gc

import (
	"time"

	"github.com/hearthlab/hearthd/internal/pkg/scheduler"
	"github.com/hearthlab/hearthd/internal/pkg/store"
)

const (
	defaultScheduleInterval = time.Hour
	defaultRetention        = 7 * 24 * time.Hour
)

// Schedules returns the GC schedules
func Schedules(st *store.Store, scheduleInterval, retention time.Duration) []scheduler.Schedule {
	if scheduleInterval == 0 {
		scheduleInterval = defaultScheduleInterval
	}
	if retention == 0 {
		retention = defaultRetention
	}

	return []scheduler.Schedule{
		{
			Name:     "readings retention",
			Interval: scheduleInterval,
			WorkFn:   getReadingsGCFunc(st, retention),
		},
	}
}
