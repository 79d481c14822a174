// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package limit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hearthlab/hearthd/internal/pkg/config"
)

type mockIncer struct {
	mock.Mock
}

func (m *mockIncer) IncError(err error) {
	m.Called(err)
}

func (m *mockIncer) IncStart() func() {
	args := m.Called()
	return args.Get(0).(func())
}

func stubHandle() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	}
}

func TestLimiterWrap(t *testing.T) {
	tests := []struct {
		name   string
		l      *limiter
		stats  func() *mockIncer
		status int
	}{{
		name: "no limits",
		l:    &limiter{},
		stats: func() *mockIncer {
			m := &mockIncer{}
			m.On("IncStart").Return(noop).Once()
			return m
		},
		status: http.StatusOK,
	}, {
		name: "max limit",
		l: &limiter{
			maxLimit: semaphore.NewWeighted(0),
		},
		stats: func() *mockIncer {
			m := &mockIncer{}
			m.On("IncStart").Return(noop).Once()
			m.On("IncError", ErrMaxLimit).Once()
			return m
		},
		status: http.StatusTooManyRequests,
	}, {
		name: "rate limit",
		l: &limiter{
			rateLimit: rate.NewLimiter(rate.Limit(0), 0),
		},
		stats: func() *mockIncer {
			m := &mockIncer{}
			m.On("IncStart").Return(noop).Once()
			m.On("IncError", ErrRateLimit).Once()
			return m
		},
		status: http.StatusTooManyRequests,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mi := tt.stats()
			h := tt.l.wrap(zerolog.Nop(), zerolog.DebugLevel, stubHandle(), mi)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "http://example.com", nil)
			h(w, req, nil)

			resp := w.Result()
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			mi.AssertExpectations(t)
		})
	}
}

func TestHTTPWrapperRoutes(t *testing.T) {
	var limits config.ServerLimits
	limits.InitDefaults()
	wrapper := NewHTTPWrapper("localhost:0", &limits)

	wraps := map[string]func(httprouter.Handle, StatIncer) httprouter.Handle{
		"status":  wrapper.WrapStatus,
		"sources": wrapper.WrapSources,
		"history": wrapper.WrapHistory,
		"refresh": wrapper.WrapRefresh,
		"reauth":  wrapper.WrapReauth,
	}
	for name, wrap := range wraps {
		t.Run(name, func(t *testing.T) {
			mi := &mockIncer{}
			mi.On("IncStart").Return(noop).Once()

			h := wrap(stubHandle(), mi)
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "http://example.com", nil)
			h(w, req, nil)

			resp := w.Result()
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			mi.AssertExpectations(t)
		})
	}
}
