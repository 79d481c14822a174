// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package limit

import (
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hearthlab/hearthd/internal/pkg/logger"
)

// A variant of x/net/netutil.LimitListener. The stock version blocks in
// Accept until a slot frees up, which leaves clients queued invisibly in
// the kernel backlog. This one always accepts and, when the hub is at its
// connection cap, closes the connection right away so the client fails
// fast instead of hanging. The trade-off is that during a burst legitimate
// connections get shut indiscriminately.

// Listener caps l at n concurrent connections. Connections past the cap
// are accepted and immediately closed.
func Listener(l net.Listener, n int, log *zerolog.Logger) net.Listener {
	return &limitListener{
		Listener: l,
		sem:      make(chan struct{}, n),
		done:     make(chan struct{}),
		log:      log,
	}
}

type limitListener struct {
	net.Listener
	sem       chan struct{}
	closeOnce sync.Once     // guards close of done
	done      chan struct{} // closed on Close, never written to
	log       *zerolog.Logger
}

func (l *limitListener) acquire() bool {
	select {
	case <-l.done:
		return false
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}
func (l *limitListener) release() { <-l.sem }

func (l *limitListener) Accept() (net.Conn, error) {
	// Accept first; the slot check comes after.
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	// No slot free: shut the connection and log who got bounced.
	if acquired := l.acquire(); !acquired {
		zlog := l.log.Warn()

		var cErr error
		if c != nil {
			cErr = c.Close()
			zlog.Str(logger.EcsServerAddress, c.LocalAddr().String())
			zlog.Str(logger.EcsClientAddress, c.RemoteAddr().String())
			zlog.Err(cErr)
		}
		zlog.Int("max", cap(l.sem)).Msg("Connection closed due to max limit")

		return c, nil
	}

	return &limitedConn{Conn: c, release: l.release}, nil
}

func (l *limitListener) Close() error {
	err := l.Listener.Close()
	l.closeOnce.Do(func() { close(l.done) })
	return err
}

// limitedConn hands its slot back exactly once, no matter how many times
// the caller closes it.
type limitedConn struct {
	net.Conn
	releaseOnce sync.Once
	release     func()
}

func (c *limitedConn) Close() error {
	err := c.Conn.Close()
	c.releaseOnce.Do(c.release)
	return err
}
