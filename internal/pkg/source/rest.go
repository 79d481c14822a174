// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/miolini/datacounter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
)

const defaultMaxBody = 1 << 20 // 1MiB

var ErrNoProbe = errors.New("source has no probe endpoint")

// RestConfig describes an HTTP JSON source: a LAN hub or a cloud API that
// answers GET with a JSON object.
type RestConfig struct {
	Name      string
	URL       string
	Headers   map[string]string
	Schema    json.RawMessage
	ProbePath string
	MaxBody   int64
	Timeout   time.Duration
}

// RestFetcher polls an HTTP JSON endpoint. Safe for the coordinator's
// single-flight use; not safe for concurrent Fetch calls.
type RestFetcher struct {
	cfg    RestConfig
	cli    *http.Client
	creds  CredFunc
	schema *Validator

	log zerolog.Logger
}

// NewRestFetcher builds the fetcher. The endpoint is not contacted; the
// first request happens on the first fetch or probe.
func NewRestFetcher(cfg RestConfig, creds CredFunc, schema *Validator) (*RestFetcher, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: parse url: %w", cfg.Name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("source %s: unsupported scheme %q", cfg.Name, u.Scheme)
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = defaultMaxBody
	}

	cli := cleanhttp.DefaultPooledClient()
	if cfg.Timeout > 0 {
		cli.Timeout = cfg.Timeout
	}

	f := &RestFetcher{
		cfg:    cfg,
		cli:    cli,
		creds:  creds,
		schema: schema,
	}
	f.log = log.With().Str("source", cfg.Name).Str("ctx", "rest fetcher").Logger()
	return f, nil
}

var _ Fetcher = (*RestFetcher)(nil)

// Fetch performs one GET and decodes the JSON payload into a Reading.
func (f *RestFetcher) Fetch(ctx context.Context) (Reading, error) {
	var r Reading

	res, err := f.get(ctx, f.cfg.URL)
	if err != nil {
		return r, err
	}
	defer res.Body.Close()

	if err := f.checkStatus(res); err != nil {
		return r, err
	}

	counter := datacounter.NewReaderCounter(res.Body)
	raw, err := io.ReadAll(io.LimitReader(counter, f.cfg.MaxBody))
	if err != nil {
		return r, &coordinator.TransientError{Source: f.cfg.Name, Err: fmt.Errorf("read body: %w", err)}
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return r, &coordinator.TransientError{Source: f.cfg.Name, Err: fmt.Errorf("decode payload: %w", err)}
	}

	if f.schema != nil {
		if err := f.schema.Validate(f.cfg.Schema, fields); err != nil {
			return r, &coordinator.TransientError{Source: f.cfg.Name, Err: fmt.Errorf("payload schema: %w", err)}
		}
	}

	r = Reading{
		At:     time.Now().UTC(),
		Bytes:  counter.Count(),
		Raw:    raw,
		Fields: fields,
	}
	f.log.Trace().Uint64("bytes", r.Bytes).Msg("payload fetched")
	return r, nil
}

// ProbeVersion asks the source's probe endpoint for its reported version.
// Used at setup to gate sources running firmware too old to trust.
func (f *RestFetcher) ProbeVersion(ctx context.Context) (string, error) {
	if f.cfg.ProbePath == "" {
		return "", ErrNoProbe
	}

	res, err := f.get(ctx, joinPath(f.cfg.URL, f.cfg.ProbePath))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if err := f.checkStatus(res); err != nil {
		return "", err
	}

	var probe struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, f.cfg.MaxBody)).Decode(&probe); err != nil {
		return "", &coordinator.TransientError{Source: f.cfg.Name, Err: fmt.Errorf("decode probe: %w", err)}
	}
	return probe.Version, nil
}

// Close releases idle connections.
func (f *RestFetcher) Close() error {
	f.cli.CloseIdleConnections()
	return nil
}

func (f *RestFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source %s: build request: %w", f.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}

	if f.creds != nil {
		creds, err := f.creds(ctx)
		if err != nil {
			return nil, &coordinator.AuthError{Source: f.cfg.Name, Err: fmt.Errorf("resolve credentials: %w", err)}
		}
		switch {
		case creds.Token != "":
			req.Header.Set("Authorization", "Bearer "+creds.Token)
		case creds.User != "":
			req.SetBasicAuth(creds.User, creds.Pass)
		}
	}

	res, err := f.cli.Do(req)
	if err != nil {
		// Caller cancellation is not the endpoint's fault.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &coordinator.TransientError{Source: f.cfg.Name, Err: err}
	}
	return res, nil
}

// checkStatus classifies non-2xx responses. The body is consumed for the
// error message; callers must not read it afterward.
func (f *RestFetcher) checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(firstBytes(res.Body, 256)))
	err := fmt.Errorf("endpoint returned %d: %s", res.StatusCode, msg)

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return &coordinator.AuthError{Source: f.cfg.Name, Err: err}
	}
	return &coordinator.TransientError{Source: f.cfg.Name, Err: err}
}

func firstBytes(r io.Reader, n int64) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, n))
	return b
}

func joinPath(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
