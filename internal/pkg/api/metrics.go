// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package api

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hearthlab/hearthd/internal/pkg/limit"
)

var (
	cntHTTPNew   prometheus.Counter
	cntHTTPClose prometheus.Counter

	gaugeRouteActive *prometheus.GaugeVec
	cntRouteTotal    *prometheus.CounterVec
	cntRouteFail     *prometheus.CounterVec
	cntRouteBodyIn   *prometheus.CounterVec
	cntRouteBodyOut  *prometheus.CounterVec

	cntStatus  *routeStats
	cntSources *routeStats
	cntHistory *routeStats
	cntRefresh *routeStats
	cntReauth  *routeStats
)

func init() {
	cntHTTPNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_tcp_open",
		Help: "TCP connections accepted by the API server",
	})
	cntHTTPClose = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_tcp_close",
		Help: "TCP connections closed on the API server",
	})
	gaugeRouteActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_route_active",
		Help: "Requests currently being served, per route",
	}, []string{"route"})
	cntRouteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_route_total",
		Help: "Requests started, per route",
	}, []string{"route"})
	cntRouteFail = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_route_fail",
		Help: "Requests answered with an error, per route and reason",
	}, []string{"route", "reason"})
	cntRouteBodyIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_route_body_in_bytes",
		Help: "Request body bytes read, per route",
	}, []string{"route"})
	cntRouteBodyOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_route_body_out_bytes",
		Help: "Response body bytes written, per route",
	}, []string{"route"})

	cntStatus = newRouteStats("status")
	cntSources = newRouteStats("sources")
	cntHistory = newRouteStats("history")
	cntRefresh = newRouteStats("refresh")
	cntReauth = newRouteStats("reauth")
}

// routeStats curries the route label once so the handler hot path touches
// plain counters. Implements limit.StatIncer.
type routeStats struct {
	route   string
	active  prometheus.Gauge
	total   prometheus.Counter
	bodyIn  prometheus.Counter
	bodyOut prometheus.Counter
}

func newRouteStats(route string) *routeStats {
	return &routeStats{
		route:   route,
		active:  gaugeRouteActive.WithLabelValues(route),
		total:   cntRouteTotal.WithLabelValues(route),
		bodyIn:  cntRouteBodyIn.WithLabelValues(route),
		bodyOut: cntRouteBodyOut.WithLabelValues(route),
	}
}

func (rt *routeStats) IncStart() func() {
	rt.total.Inc()
	rt.active.Inc()
	return rt.active.Dec
}

func (rt *routeStats) IncError(err error) {
	cntRouteFail.WithLabelValues(rt.route, errReason(err)).Inc()
}

func errReason(err error) string {
	switch {
	case errors.Is(err, limit.ErrRateLimit):
		return "limit_rate"
	case errors.Is(err, limit.ErrMaxLimit):
		return "limit_max"
	case errors.Is(err, context.Canceled):
		return "drop"
	default:
		return "fail"
	}
}
