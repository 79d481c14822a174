// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package coordinator

import (
	"github.com/rs/xid"
)

// Listener is a registration handle for a refresh callback. Listeners are
// kept on an intrusive doubly linked list so that notification order is
// insertion order and removal is O(1) and idempotent.
type Listener struct {
	id string // cached for logging
	fn func()

	next *Listener
	prev *Listener
}

func newListener(fn func()) *Listener {
	return &Listener{
		id: xid.New().String(),
		fn: fn,
	}
}

func makeHead() *Listener {
	l := &Listener{}
	l.next = l
	l.prev = l
	return l
}

func (n *Listener) pushBack(nn *Listener) {
	nn.next = n
	nn.prev = n.prev
	n.prev.next = nn
	n.prev = nn
}

func (n *Listener) popFront() *Listener {
	if n.next == n {
		return nil
	}
	l := n.next
	l.unlink()
	return l
}

func (n *Listener) unlink() bool {
	if n.next == nil || n.prev == nil {
		return false
	}

	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
	return true
}

func (n *Listener) linked() bool {
	return n.next != nil && n.prev != nil
}

func (n *Listener) isEmpty() bool {
	return n.next == n
}

// snapshot walks the list from head and returns the members in insertion
// order. Caller must hold the coordinator mutex.
func (n *Listener) snapshot() []*Listener {
	var out []*Listener
	for cur := n.next; cur != n; cur = cur.next {
		out = append(out, cur)
	}
	return out
}

