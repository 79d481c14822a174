// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package main

import (
	"fmt"
	"os"

	"github.com/hearthlab/hearthd/cmd/hearthd"
	"github.com/hearthlab/hearthd/internal/pkg/build"
	"github.com/hearthlab/hearthd/version"
)

// Overridden at build time through ldflags.
var (
	Version   string = version.DefaultVersion
	Commit    string
	BuildTime string
)

func main() {
	cmd := hearthd.NewCommand(build.Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: build.Time(BuildTime),
	})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
