// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package manager

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
	"github.com/hearthlab/hearthd/internal/pkg/source"
)

var (
	gaugeFetchActive prometheus.Gauge
	cntFetchTotal    *prometheus.CounterVec
	cntFetchFail     *prometheus.CounterVec
	durFetch         *prometheus.HistogramVec
	gaugeFailStreak  *prometheus.GaugeVec
	gaugeLastGood    *prometheus.GaugeVec
)

func init() {
	gaugeFetchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetch_active",
		Help: "Fetch attempts currently in flight",
	})
	cntFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_total",
		Help: "Fetch attempts started, per source",
	}, []string{"source"})
	cntFetchFail = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_fail",
		Help: "Failed fetch attempts, per source and failure reason",
	}, []string{"source", "reason"})
	durFetch = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_duration_seconds",
		Help:    "Fetch attempt duration, per source",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"source"})
	gaugeFailStreak = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "source_consecutive_failures",
		Help: "Consecutive failed attempts since the last success, per source",
	}, []string{"source"})
	gaugeLastGood = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "source_last_success_timestamp_seconds",
		Help: "When the source last fetched successfully, as a unix timestamp",
	}, []string{"source"})
}

// fetchStats is one source's handle on the fetch metrics.
type fetchStats struct {
	source   string
	total    prometheus.Counter
	duration prometheus.Observer
	streak   prometheus.Gauge
	lastGood prometheus.Gauge
}

func newFetchStats(sourceID string) *fetchStats {
	return &fetchStats{
		source:   sourceID,
		total:    cntFetchTotal.WithLabelValues(sourceID),
		duration: durFetch.WithLabelValues(sourceID),
		streak:   gaugeFailStreak.WithLabelValues(sourceID),
		lastGood: gaugeLastGood.WithLabelValues(sourceID),
	}
}

func (s *fetchStats) IncStart() func() {
	s.total.Inc()
	gaugeFetchActive.Inc()
	return gaugeFetchActive.Dec
}

func (s *fetchStats) IncError(err error) {
	cntFetchFail.WithLabelValues(s.source, failReason(err)).Inc()
}

func (s *fetchStats) Observe(d time.Duration) {
	s.duration.Observe(d.Seconds())
}

func (s *fetchStats) SetStreak(n int) {
	s.streak.Set(float64(n))
}

func (s *fetchStats) MarkGood(at time.Time) {
	s.lastGood.Set(float64(at.Unix()))
}

// instrument wraps the fetch function so every attempt is counted and timed
// regardless of what triggered it.
func (s *fetchStats) instrument(fetch coordinator.FetchFunc[source.Reading]) coordinator.FetchFunc[source.Reading] {
	return func(ctx context.Context) (source.Reading, error) {
		dec := s.IncStart()
		defer dec()

		start := time.Now()
		r, err := fetch(ctx)
		s.Observe(time.Since(start))

		if err != nil {
			s.IncError(err)
		}
		return r, err
	}
}

// failReason buckets an attempt error for the fail counter. The wrapper
// sees fetcher errors before the coordinator classifies deadline blowouts,
// so those count as transient here too.
func failReason(err error) string {
	switch {
	case coordinator.IsAuth(err):
		return "auth"
	case coordinator.IsTransient(err) || errors.Is(err, context.DeadlineExceeded):
		return "transient"
	case errors.Is(err, context.Canceled) || errors.Is(err, coordinator.ErrStopped):
		return "canceled"
	default:
		return "internal"
	}
}
