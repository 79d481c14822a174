// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package logger

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearthlab/hearthd/internal/pkg/token"
)

const (
	HeaderRequestID = "X-Request-Id"
	httpSlashPrefix = "HTTP/"
)

// ReaderCounter counts request body bytes as the handler consumes them.
type ReaderCounter struct {
	io.ReadCloser
	count uint64
}

func NewReaderCounter(r io.ReadCloser) *ReaderCounter {
	return &ReaderCounter{
		ReadCloser: r,
	}
}

func (rd *ReaderCounter) Read(buf []byte) (int, error) {
	n, err := rd.ReadCloser.Read(buf)
	atomic.AddUint64(&rd.count, uint64(n))
	return n, err
}

func (rd *ReaderCounter) Count() uint64 {
	return atomic.LoadUint64(&rd.count)
}

// ResponseCounter counts response body bytes and remembers the status code
// the handler wrote.
type ResponseCounter struct {
	http.ResponseWriter
	count      uint64
	statusCode int
}

func NewResponseCounter(w http.ResponseWriter) *ResponseCounter {
	return &ResponseCounter{
		ResponseWriter: w,
	}
}

func (rc *ResponseCounter) Write(buf []byte) (int, error) {
	if rc.statusCode == 0 {
		rc.WriteHeader(http.StatusOK)
	}

	n, err := rc.ResponseWriter.Write(buf)
	atomic.AddUint64(&rc.count, uint64(n))
	return n, err
}

func (rc *ResponseCounter) WriteHeader(statusCode int) {
	rc.ResponseWriter.WriteHeader(statusCode)

	// Only the first status sticks.
	if rc.statusCode == 0 {
		rc.statusCode = statusCode
	}
}

func (rc *ResponseCounter) Count() uint64 {
	return atomic.LoadUint64(&rc.count)
}

type ctxTSKey struct{}

// CtxStartTime returns the request start time the middleware stashed in ctx.
func CtxStartTime(ctx context.Context) (time.Time, bool) {
	ts, ok := ctx.Value(ctxTSKey{}).(time.Time)
	return ts, ok
}

func splitAddr(addr string) (host string, port int) {
	host, portS, err := net.SplitHostPort(addr)
	if err == nil {
		if v, err := strconv.Atoi(portS); err == nil {
			port = v
		}
	}

	return //nolint:nakedret // short function
}

// stripHTTP turns "HTTP/x.y" into the bare "x.y" ECS wants.
func stripHTTP(h string) string {
	switch h {
	case "HTTP/2.0":
		return "2.0"
	case "HTTP/1.1":
		return "1.1"
	default:
		if strings.HasPrefix(h, httpSlashPrefix) {
			return h[len(httpSlashPrefix):]
		}
	}

	return h
}

func httpMeta(r *http.Request, e *zerolog.Event) {
	oldForce := r.URL.ForceQuery
	r.URL.ForceQuery = false
	e.Str(EcsUrlFull, r.URL.String())
	r.URL.ForceQuery = oldForce

	if domain := r.URL.Hostname(); domain != "" {
		e.Str(EcsUrlDomain, domain)
	}

	port := r.URL.Port()
	if port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			e.Int(EcsUrlPort, v)
		}
	}

	e.Str(EcsHttpVersion, stripHTTP(r.Proto))
	e.Str(EcsHttpRequestMethod, r.Method)

	// The key id is safe to log; the secret never leaves the header.
	if key, err := token.ExtractAPIKey(r); err == nil {
		e.Str(EcsApiKeyId, key.ID)
	}

	if r.RemoteAddr != "" {
		e.Str(EcsClientAddress, r.RemoteAddr)
	}
}

func httpDebug(r *http.Request, e *zerolog.Event) {
	if r.RemoteAddr != "" {
		remoteIP, remotePort := splitAddr(r.RemoteAddr)
		e.Str(EcsClientIp, remoteIP)
		e.Int(EcsClientPort, remotePort)
	}
}

// Middleware wraps an HTTP handler in a request logger.
//
// Each request gets a zerolog logger and its start time attached to the
// context. An ECS compliant entry is written whenever the response code is
// outside 2XX; with debug enabled every request logs twice, once at the
// start and once when the response goes out. Requests without an
// X-Request-Id header get a fresh UUID, and the id is echoed on the
// response either way.
func Middleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()

		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			uid, err := uuid.NewV4()
			if err == nil {
				reqID = uid.String()
				r.Header.Set(HeaderRequestID, reqID) // downstream handlers read it too
			}
		}
		w.Header().Set(HeaderRequestID, reqID)

		// The server stores its bound addr on the request context.
		addr, _ := r.Context().Value(http.LocalAddrContextKey).(string)

		// Everything logged through the request context carries the id
		// and the server addr from here on.
		zlog := log.With().Str(EcsHttpRequestId, reqID).Str(EcsServerAddress, addr).Logger()
		ctx := zlog.WithContext(r.Context())
		ctx = context.WithValue(ctx, ctxTSKey{}, start)
		r = r.WithContext(ctx)

		e := zlog.Info()

		if !e.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		rdCounter := NewReaderCounter(r.Body)
		r.Body = rdCounter

		wrCounter := NewResponseCounter(w)

		if zlog.Debug().Enabled() {
			d := zlog.Debug()
			httpMeta(r, d)
			httpDebug(r, d)
			d.Msg("HTTP start")
		}

		next.ServeHTTP(wrCounter, r)

		if zlog.Debug().Enabled() || wrCounter.statusCode < 200 || wrCounter.statusCode >= 300 {
			httpMeta(r, e)
			e.Uint64(EcsHttpRequestBodyBytes, rdCounter.Count())
			e.Uint64(EcsHttpResponseBodyBytes, wrCounter.Count())
			e.Int(EcsHttpResponseCode, wrCounter.statusCode)
			e.Int64(EcsEventDuration, time.Since(start).Nanoseconds())

			e.Msgf("%d HTTP Request", wrCounter.statusCode)
		} else {
			e.Discard()
		}
	}
	return http.HandlerFunc(fn)
}
