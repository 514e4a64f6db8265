// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import "github.com/go-nalloc/nalloc/internal/lfstack"

// Pool is a lockfree stack of slabs: either the single shared clean pool,
// or one heritage's shared dirty pool.
type Pool struct {
	stack *lfstack.Stack
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{stack: lfstack.New(slabLinks{})}
}

// Push adds s to the pool.
func (p *Pool) Push(s *Slab) int64 {
	return p.stack.Push(s.handle())
}

// Pop removes and returns a slab from the pool, or (nil, false) if empty.
func (p *Pool) Pop() (*Slab, bool) {
	h, ok := p.stack.Pop()
	if !ok {
		return nil, false
	}
	return slabFromHandle(h), true
}

// Size returns the pool's approximate size.
func (p *Pool) Size() int64 { return p.stack.Size() }
