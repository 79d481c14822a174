// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package testing

import "net"

// FreePort returns a port that was free at the time of the call. The
// listener probing it is closed again, so a race with another process is
// possible but unlikely on a loopback test host.
func FreePort() (uint16, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return uint16(l.Addr().(*net.TCPAddr).Port), nil //nolint:gosec // port is within uint16 range
}
