// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package source

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/hearthlab/hearthd/internal/pkg/coordinator"
)

// fakePort scripts responses per written poll command. A nil next entry
// simulates a read timeout (zero-byte read).
type fakePort struct {
	responses [][]byte
	writes    [][]byte
	pending   []byte
	closed    bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.writes = append(p.writes, append([]byte(nil), b...))
	if len(p.responses) > 0 {
		p.pending = p.responses[0]
		p.responses = p.responses[1:]
	} else {
		p.pending = nil
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil // read timeout per go.bug.st/serial semantics
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	return nil
}

// swapOpenPort installs a scripted port for the duration of the test.
func swapOpenPort(t *testing.T, open func(path string, mode *serial.Mode) (serialPort, error)) {
	t.Helper()
	orig := openPort
	openPort = open
	t.Cleanup(func() { openPort = orig })
}

func TestSerialFetch(t *testing.T) {
	port := &fakePort{
		responses: [][]byte{
			[]byte("{\"kwh\": 1042.7}\r\n"),
		},
	}
	var gotMode *serial.Mode
	swapOpenPort(t, func(path string, mode *serial.Mode) (serialPort, error) {
		require.Equal(t, "/dev/ttyUSB0", path)
		gotMode = mode
		return port, nil
	})

	f, err := NewSerialFetcher(SerialConfig{
		Name:    "meter",
		Path:    "/dev/ttyUSB0",
		PollCmd: "READ",
	})
	require.NoError(t, err)
	defer f.Close()

	r, err := f.Fetch(context.Background())
	require.NoError(t, err)

	require.Equal(t, defaultBaudRate, gotMode.BaudRate)
	require.Len(t, port.writes, 1)
	require.True(t, bytes.Equal([]byte("READ\n"), port.writes[0]))
	require.Equal(t, 1042.7, r.Fields["kwh"])
	require.JSONEq(t, `{"kwh": 1042.7}`, string(r.Raw))
}

func TestSerialFetchTimeoutDropsPort(t *testing.T) {
	port := &fakePort{} // no response scripted: every read times out
	opens := 0
	swapOpenPort(t, func(path string, mode *serial.Mode) (serialPort, error) {
		opens++
		return port, nil
	})

	f, err := NewSerialFetcher(SerialConfig{
		Name:    "meter",
		Path:    "/dev/ttyUSB0",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background())
	if !coordinator.IsTransient(err) {
		t.Fatalf("timeout should be transient: %v", err)
	}
	require.True(t, port.closed, "wedged port should be dropped")

	// The next attempt reopens.
	port.closed = false
	port.responses = [][]byte{[]byte("{\"kwh\": 1}\n")}
	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, opens)
}

func TestSerialFetchOpenFailure(t *testing.T) {
	swapOpenPort(t, func(path string, mode *serial.Mode) (serialPort, error) {
		return nil, errors.New("no such device")
	})

	f, err := NewSerialFetcher(SerialConfig{Name: "meter", Path: "/dev/ttyUSB9"})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background())
	if !coordinator.IsTransient(err) {
		t.Fatalf("open failure should be transient: %v", err)
	}
}

func TestSerialFetchBadLine(t *testing.T) {
	port := &fakePort{
		responses: [][]byte{[]byte("not json\n")},
	}
	swapOpenPort(t, func(path string, mode *serial.Mode) (serialPort, error) {
		return port, nil
	})

	f, err := NewSerialFetcher(SerialConfig{Name: "meter", Path: "/dev/ttyUSB0"})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Fetch(context.Background())
	if !coordinator.IsTransient(err) {
		t.Fatalf("garbage line should be transient: %v", err)
	}
}

func TestNewSerialFetcherRequiresPath(t *testing.T) {
	_, err := NewSerialFetcher(SerialConfig{Name: "meter"})
	require.Error(t, err)
}
