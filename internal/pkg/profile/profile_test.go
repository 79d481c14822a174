// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRoutes(t *testing.T) {
	r := http.NewServeMux()
	AddRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline"} {
		req, err := http.NewRequestWithContext(context.Background(), "GET", srv.URL+path, nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
