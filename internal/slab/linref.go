// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import "errors"

// ErrOutOfHeap is returned by LinRefUp when the given address does not
// fall within any slab this Heap has ever mapped.
var ErrOutOfHeap = errors.New("nalloc: address outside managed heap range")

// ErrWrongType is returned by LinRefUp when the addressed slab's current
// type differs from the requested type, or its refcount has already
// reached zero.
var ErrWrongType = errors.New("nalloc: wrong type for linref")

// LinRefUp implements linref_up: it refuses addresses outside the managed
// heap range, then retries a double-word-equivalent CAS from (t, n) to
// (t, n+1) until it either succeeds or observes a type mismatch / zero
// refcount.
func LinRefUp(heap *Heap, addr uintptr, t *Type) error {
	s, ok := heap.Table.Lookup(addr, heap.SlabSize)
	if !ok {
		return ErrOutOfHeap
	}
	if !s.RefUp(t) {
		return ErrWrongType
	}
	return nil
}

// LinRefDown implements linref_down: it decrements the addressed slab's
// refcount. Unlike Heap.Release, it never itself moves the slab between
// pools, even if this decrement drives the refcount to zero -- see
// DESIGN.md for why an eager move here would race with a slab already
// resident in its heritage's dirty pool. A zero-refcount slab parked in its
// heritage's dirty pool is correctly reused on its next same-type Acquire
// regardless; it only migrates to the clean pool the next time an owner
// actually releases it and observes a zero refcount itself.
func LinRefDown(heap *Heap, addr uintptr) {
	s, ok := heap.Table.Lookup(addr, heap.SlabSize)
	if !ok {
		panic("nalloc: linref_down on address outside managed heap range")
	}
	s.RefDown()
}
