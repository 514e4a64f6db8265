// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package lfstack implements a lockfree LIFO stack of small integer handles,
// and a companion single-threaded stack for owner-private use.
//
// Go has no native double-width compare-and-swap, so the stack does not hold
// a (pointer, generation) pair across two machine words the way the C
// ancestor of this allocator does. Instead it packs a bounded handle into the
// low bits and a generation counter into the high bits of a single atomic uint64,
// following the same trick the teacher's pointerstore package uses to smuggle
// a generation into the spare bits of an address (see pointer_reference.go's
// maskShift/genMask). The handle is caller-defined: it may be a slab-aligned
// memory address, provided the address fits in HandleBits bits, or any other
// small dense integer a caller wants to use as a stack member's identity.
package lfstack

import "sync/atomic"

// HandleBits is the width, in bits, available to a handle. The remaining
// high bits of the packed word carry the ABA-defeating generation counter.
const HandleBits = 48

const handleMask = uint64(1)<<HandleBits - 1
const genMask = ^handleMask

// NilHandle is the handle value representing "no node" / the empty stack.
const NilHandle uint64 = 0

// Links lets a Stack manipulate the intrusive next-pointer carried by each
// handle without knowing anything else about the handle's underlying shape.
// Implementations typically read/write a word embedded in the memory a
// handle identifies (the classic intrusive-list technique).
type Links interface {
	// NextOf returns the link stored in handle, or NilHandle if handle
	// carries no link (NilHandle itself always yields NilHandle).
	NextOf(handle uint64) uint64
	// SetNext stores next as handle's link.
	SetNext(handle uint64, next uint64)
}

// Stack is a lockfree LIFO of handles, safe for concurrent Push/Pop/PopAll*
// by any number of goroutines. It implements the C1 double-width-CAS stack
// contract from the specification, adapted to a single packed 64-bit word.
type Stack struct {
	head  atomic.Uint64
	size  atomic.Int64
	links Links
}

// New returns an empty Stack that manipulates handle links via links.
func New(links Links) *Stack {
	return &Stack{links: links}
}

func pack(gen uint64, handle uint64) uint64 {
	if handle&genMask != 0 {
		panic("lfstack: handle exceeds packed width")
	}
	return (gen << HandleBits) | handle
}

func unpack(v uint64) (gen uint64, handle uint64) {
	return v >> HandleBits, v & handleMask
}

// Push adds handle to the top of the stack and returns the new size. handle
// must carry a nil link on entry.
func (s *Stack) Push(handle uint64) int64 {
	if handle == NilHandle {
		panic("lfstack: cannot push nil handle")
	}
	for {
		old := s.head.Load()
		gen, top := unpack(old)
		s.links.SetNext(handle, top)
		next := pack(gen, handle)
		if s.head.CompareAndSwap(old, next) {
			return s.size.Add(1)
		}
	}
}

// Pop removes and returns the top handle, or (NilHandle, false) if empty.
// The generation is bumped on every successful pop, defeating ABA.
func (s *Stack) Pop() (uint64, bool) {
	for {
		old := s.head.Load()
		gen, top := unpack(old)
		if top == NilHandle {
			return NilHandle, false
		}
		next := s.links.NextOf(top)
		newHead := pack(gen+1, next)
		if s.head.CompareAndSwap(old, newHead) {
			s.size.Add(-1)
			return top, true
		}
	}
}

// PopAll detaches the whole chain, bumping the generation by incr, and
// returns the chain's head handle and the size it had just before
// detachment. incr may be zero to leave the generation untouched.
func (s *Stack) PopAll(incr uint64) (handle uint64, n int64) {
	for {
		old := s.head.Load()
		gen, top := unpack(old)
		newHead := pack(gen+incr, NilHandle)
		if s.head.CompareAndSwap(old, newHead) {
			return top, s.size.Swap(0)
		}
	}
}

// PopAllOrIncr is the crux of the owner/wayward-producer race: if the stack
// is currently empty, it only bumps the generation by incr (advertising "the
// owner looked and found nothing") and reports ok=false. Otherwise it
// detaches the whole chain exactly as PopAll and reports ok=true.
//
// Callers on the owner-starvation path must use this instead of PopAll:
// substituting PopAll races with a concurrent Push and can silently drop a
// block (see the specification's owner-starvation design note).
func (s *Stack) PopAllOrIncr(incr uint64) (handle uint64, n int64, ok bool) {
	for {
		old := s.head.Load()
		gen, top := unpack(old)
		newHead := pack(gen+incr, NilHandle)
		if s.head.CompareAndSwap(old, newHead) {
			if top == NilHandle {
				return NilHandle, 0, false
			}
			return top, s.size.Swap(0), true
		}
	}
}

// PushIff pushes handle only if the stack's current generation equals
// wantGen, leaving the generation unchanged on success. It reports the
// generation actually observed and whether the push succeeded.
func (s *Stack) PushIff(handle uint64, wantGen uint64) (observedGen uint64, ok bool) {
	for {
		old := s.head.Load()
		gen, top := unpack(old)
		if gen != wantGen {
			return gen, false
		}
		s.links.SetNext(handle, top)
		next := pack(gen, handle)
		if s.head.CompareAndSwap(old, next) {
			s.size.Add(1)
			return gen, true
		}
	}
}

// PopAllIff detaches the whole chain and sets the generation to newGen, but
// only if the stack's current generation equals oldGen. This lets exactly
// one of several racing callers win the detach for a given oldGen.
func (s *Stack) PopAllIff(newGen, oldGen uint64) (handle uint64, n int64, ok bool) {
	for {
		old := s.head.Load()
		gen, top := unpack(old)
		if gen != oldGen {
			return NilHandle, 0, false
		}
		next := pack(newGen, NilHandle)
		if s.head.CompareAndSwap(old, next) {
			return top, s.size.Swap(0), true
		}
	}
}

// Generation returns the stack's current generation counter.
func (s *Stack) Generation() uint64 {
	gen, _ := unpack(s.head.Load())
	return gen
}

// Size returns the stack's size. It is exact immediately after any single
// Push/Pop/PopAll* completes, but may be stale by the time the caller reads
// it if other goroutines are concurrently mutating the stack.
func (s *Stack) Size() int64 {
	return s.size.Load()
}
