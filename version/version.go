// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package version

// DefaultVersion is the current release version of hearthd.
const DefaultVersion = "0.9.3"
