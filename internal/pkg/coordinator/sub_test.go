// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

//go:build !integration

package coordinator

import (
	"math/rand"
	"testing"
)

// Base case, should be empty
func TestListenEmpty(t *testing.T) {

	head := makeHead()

	if !head.isEmpty() {
		t.Error("Expected empty list with only head")
	}
	if head.popFront() != nil {
		t.Error("popFront on empty list should return nil")
	}
	if len(head.snapshot()) != 0 {
		t.Error("snapshot of empty list should be empty")
	}
}

// Iteratively pushBack n items up to N.
// Validate insertion order on snapshot and popFront.
func TestListenPushBackN(t *testing.T) {

	head := makeHead()

	N := 32

	for n := 1; n <= N; n++ {

		nodes := make([]*Listener, 0, n)
		for i := 0; i < n; i++ {
			nn := newListener(func() {})
			head.pushBack(nn)
			nodes = append(nodes, nn)
		}

		if head.isEmpty() {
			t.Error("head should not be empty after push")
		}

		snap := head.snapshot()
		if len(snap) != n {
			t.Fatalf("snapshot length %d, want %d", len(snap), n)
		}
		for j, l := range snap {
			if l.id != nodes[j].id {
				t.Error(j, ": misaligned snapshot", l.id, nodes[j].id)
			}
		}

		for i := 0; i < n; i++ {
			l := head.popFront()
			if l.id != nodes[i].id {
				t.Error("misalign on popFront")
			}
		}

		if !head.isEmpty() {
			t.Error("Expect empty list after popFront")
		}
	}
}

// Generate N nodes. Unlink randomly.
// Validate order on each unlink.
func TestListenUnlinkRandomN(t *testing.T) {

	head := makeHead()

	N := rand.Intn(4096) + 1

	nodes := make([]*Listener, 0, N)
	for i := 0; i < N; i++ {
		nn := newListener(func() {})
		head.pushBack(nn)
		nodes = append(nodes, nn)
	}

	if head.isEmpty() {
		t.Error("head should not be empty after push")
	}

	for i := 0; i < N; i++ {
		idx := rand.Intn(len(nodes))
		l := nodes[idx]
		if !l.unlink() {
			t.Error("first unlink should report true")
		}
		if l.linked() {
			t.Error("unlinked node still reports linked")
		}
		nodes = append(nodes[:idx], nodes[idx+1:]...)

		snap := head.snapshot()
		if len(snap) != len(nodes) {
			t.Fatalf("snapshot length %d, want %d", len(snap), len(nodes))
		}
		for j, s := range snap {
			if s.id != nodes[j].id {
				t.Error(j, ": misaligned unlink", s.id, nodes[j].id)
			}
		}
	}

	if !head.isEmpty() {
		t.Error("head should be empty")
	}
}

// Unlink must be idempotent; the second call reports false.
func TestListenUnlinkTwice(t *testing.T) {

	head := makeHead()
	nn := newListener(func() {})
	head.pushBack(nn)

	if !nn.unlink() {
		t.Error("expected first unlink to succeed")
	}
	if nn.unlink() {
		t.Error("expected second unlink to be a no-op")
	}
	if !head.isEmpty() {
		t.Error("head should be empty")
	}
}
