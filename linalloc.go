// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import "github.com/go-nalloc/nalloc/internal/slab"

// ErrOutOfHeap is returned by LinRefUp for an address outside any slab
// this Cache's Allocator has ever mapped.
var ErrOutOfHeap = slab.ErrOutOfHeap

// ErrWrongType is returned by LinRefUp when the addressed slab's current
// type doesn't match, or its refcount has already reached zero.
var ErrWrongType = slab.ErrWrongType

// LinAlloc implements C7/C9's linalloc(heritage): an allocation drawn from
// a caller-chosen Heritage rather than the polymorphic size-class ladder,
// typically one carrying a type whose blocks will later be the target of
// LinRefUp. Returns 0 on exhaustion.
func (c *Cache) LinAlloc(h *Heritage) uintptr {
	addr, ok := c.allocFrom(h.inner)
	if !ok {
		return 0
	}
	return addr
}

// LinFree frees a block allocated by LinAlloc (or Malloc). It is legal to
// call concurrently with outstanding LinRefUp holders on the same block:
// the refcount protocol (LinRefUp/LinRefDown) guarantees the block's slab
// is not retyped while any linref is outstanding, regardless of whether
// the block itself has been freed.
func (c *Cache) LinFree(addr uintptr) {
	c.Free(addr)
}

// LinRefUp attempts to take a type-stable reference on the block at addr,
// asserting it is currently typed as t. See spec §4.7 for the full
// contract.
func (c *Cache) LinRefUp(addr uintptr, t *Type) error {
	return slab.LinRefUp(c.a.heap, addr, t.inner)
}

// LinRefDown releases a reference taken by LinRefUp.
func (c *Cache) LinRefDown(addr uintptr) {
	slab.LinRefDown(c.a.heap, addr)
}
