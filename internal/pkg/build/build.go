// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package build exposes the version stamp the binary was built with.
package build

import "time"

const ServiceName = "hearthd"

// Info identifies a build: the semantic version plus the commit and time
// stamped in through ldflags.
type Info struct {
	Version   string
	Commit    string
	BuildTime time.Time
}

// Time parses an RFC3339 stamp; anything that does not parse becomes the
// zero time.
func Time(stime string) time.Time {
	if t, err := time.Parse(time.RFC3339, stime); err == nil {
		return t
	}
	return time.Time{}
}
