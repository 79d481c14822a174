// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// HandleInterrupt returns a context that is cancelled on SIGINT or SIGTERM.
func HandleInterrupt(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	log.Debug().Msg("Watching for SIGINT and SIGTERM")

	go func() {
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			log.Info().Str("sig", sig.String()).Msg("Shutdown signal")
			cancel()
		case <-ctx.Done():
		}

		log.Debug().Msg("Signal watcher done")
	}()

	return ctx
}

// HandleReload returns a channel that receives after each SIGHUP, used to
// re-read the configuration file. Signals arriving while a reload is still
// running collapse into one pending notification. The channel is closed when
// ctx is cancelled.
func HandleReload(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)

	go func() {
		defer close(out)
		defer signal.Stop(sigs)
		for {
			select {
			case <-sigs:
				select {
				case out <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				log.Debug().Msg("Reload signal handler close")
				return
			}
		}
	}()

	return out
}
