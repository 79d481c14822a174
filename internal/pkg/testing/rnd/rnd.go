// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package rnd fabricates throwaway test values; nothing here is crypto
// grade.
package rnd

import (
	"math/rand"
	"time"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type Rnd struct {
	r *rand.Rand
}

func New() *Rnd {
	return &Rnd{
		r: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint: gosec // used for testing
	}
}

// Int returns a value in [min, max).
func (r *Rnd) Int(min, max int) int {
	return r.r.Intn(max-min) + min
}

func (r *Rnd) Bool() bool {
	return r.r.Intn(2) != 0
}

// String returns sz alphanumeric characters, handy for unique ids.
func (r *Rnd) String(sz int) string {
	b := make([]byte, sz)
	for i := range b {
		b[i] = charset[r.r.Intn(len(charset))]
	}
	return string(b)
}
