// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
)

const (
	defaultBaudRate    = 115200
	defaultPollTimeout = 2 * time.Second
	maxLineBytes       = 16 * 1024
)

var (
	errReadTimeout = errors.New("serial read timed out")
	errLineTooLong = errors.New("serial line exceeds limit")
)

// serialPort is the slice of go.bug.st/serial.Port the fetcher needs;
// tests substitute a fake through openPort.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var openPort = func(path string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(path, mode)
}

// SerialConfig describes a meter on a serial line that answers a poll
// command with one JSON object per line.
type SerialConfig struct {
	Name     string
	Path     string
	BaudRate int
	PollCmd  string
	Timeout  time.Duration
}

// SerialFetcher polls a serial-attached meter. The port is opened on the
// first fetch and reopened after any failure; a wedged line recovers on the
// next scheduled attempt instead of poisoning this one.
type SerialFetcher struct {
	cfg  SerialConfig
	port serialPort

	log zerolog.Logger
}

func NewSerialFetcher(cfg SerialConfig) (*SerialFetcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("source %s: serial path is required", cfg.Name)
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPollTimeout
	}
	if cfg.PollCmd == "" {
		cfg.PollCmd = "READ"
	}

	f := &SerialFetcher{cfg: cfg}
	f.log = log.With().Str("source", cfg.Name).Str("port", cfg.Path).Str("ctx", "serial fetcher").Logger()
	return f, nil
}

var _ Fetcher = (*SerialFetcher)(nil)

// Fetch writes the poll command and reads one JSON line back.
func (f *SerialFetcher) Fetch(ctx context.Context) (Reading, error) {
	var r Reading

	if err := ctx.Err(); err != nil {
		return r, err
	}

	if f.port == nil {
		if err := f.open(); err != nil {
			return r, &coordinator.TransientError{Source: f.cfg.Name, Err: err}
		}
	}

	if _, err := f.port.Write(append([]byte(f.cfg.PollCmd), '\n')); err != nil {
		f.drop()
		return r, &coordinator.TransientError{Source: f.cfg.Name, Err: fmt.Errorf("write poll: %w", err)}
	}

	line, err := f.readLine(time.Now().Add(f.cfg.Timeout))
	if err != nil {
		f.drop()
		return r, &coordinator.TransientError{Source: f.cfg.Name, Err: err}
	}

	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return r, &coordinator.TransientError{Source: f.cfg.Name, Err: fmt.Errorf("decode line: %w", err)}
	}

	return Reading{
		At:     time.Now().UTC(),
		Bytes:  uint64(len(line)),
		Raw:    append(json.RawMessage(nil), line...),
		Fields: fields,
	}, nil
}

// Close releases the port.
func (f *SerialFetcher) Close() error {
	if f.port == nil {
		return nil
	}
	err := f.port.Close()
	f.port = nil
	return err
}

func (f *SerialFetcher) open() error {
	mode := &serial.Mode{
		BaudRate: f.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(f.cfg.Path, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.cfg.Path, err)
	}
	// Bound each Read so a silent meter cannot wedge the poll.
	if err := port.SetReadTimeout(f.cfg.Timeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout: %w", err)
	}

	f.port = port
	f.log.Info().Int("baud", f.cfg.BaudRate).Msg("serial port opened")
	return nil
}

// drop closes a misbehaving port; the next fetch reopens it.
func (f *SerialFetcher) drop() {
	if f.port == nil {
		return
	}
	_ = f.port.Close()
	f.port = nil
	f.log.Debug().Msg("serial port dropped, will reopen")
}

// readLine accumulates reads until a newline. The port returns n == 0 when
// its read timeout elapses, which counts against the overall deadline.
func (f *SerialFetcher) readLine(deadline time.Time) ([]byte, error) {
	var line []byte
	buf := make([]byte, 256)

	for {
		if time.Now().After(deadline) {
			return nil, errReadTimeout
		}

		n, err := f.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read line: %w", err)
		}
		if n == 0 {
			return nil, errReadTimeout
		}

		line = append(line, buf[:n]...)
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			return bytes.TrimRight(line[:i], "\r"), nil
		}
		if len(line) > maxLineBytes {
			return nil, errLineTooLong
		}
	}
}
