// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"fmt"

	"github.com/go-nalloc/nalloc/internal/slab"
)

// Malloc implements C9's malloc(n): a size-classed slab allocation for
// n <= a.MaxBlock(), or the large-block path (C8) otherwise. It returns 0
// if the OS mapping primitive is exhausted. n == 0 returns 0 as well;
// Free(0) is a no-op, matching spec §8's boundary behavior.
func (c *Cache) Malloc(n uintptr) uintptr {
	if n == 0 {
		return 0
	}
	if n > c.a.MaxBlock() {
		return c.mallocLarge(n)
	}
	h := c.a.heritageFor(n)
	addr, ok := c.allocFrom(h)
	if !ok {
		return 0
	}
	return addr
}

// Free implements C9's free(p). free(0) is a no-op.
func (c *Cache) Free(addr uintptr) {
	if addr == 0 {
		return
	}
	if s, ok := c.a.heap.Table.Lookup(addr, c.a.slabSize); ok {
		c.freeTo(s.Heritage(), s, addr)
		return
	}
	if c.freeLarge(addr) {
		return
	}
	panic("nalloc: free of address outside managed heap range")
}

// Calloc implements C9's calloc(k, n): k*n bytes, zero-filled. It returns 0
// (without mutating state) if k*n overflows uintptr, rather than silently
// allocating a short buffer.
func (c *Cache) Calloc(k, n uintptr) uintptr {
	if k == 0 || n == 0 {
		return c.Malloc(0)
	}
	total := k * n
	if total/k != n {
		return 0 // overflow
	}
	addr := c.Malloc(total)
	if addr == 0 {
		return 0
	}
	zero(addr, total)
	return addr
}

// Realloc implements C9's realloc(p, n): realloc(0, n) == malloc(n);
// realloc(p, 0) frees p and returns 0; otherwise a fresh n-byte block is
// allocated, min(n, old size) bytes are copied from p, and p is freed.
func (c *Cache) Realloc(addr uintptr, n uintptr) uintptr {
	if addr == 0 {
		return c.Malloc(n)
	}
	if n == 0 {
		c.Free(addr)
		return 0
	}
	oldSize := c.blockSizeOf(addr)
	next := c.Malloc(n)
	if next == 0 {
		return 0
	}
	copySize := oldSize
	if n < copySize {
		copySize = n
	}
	copyBytes(next, addr, copySize)
	c.Free(addr)
	return next
}

// blockSizeOf returns the usable size of the block at addr, as tracked by
// the allocator (its heritage's block size for slab blocks, or the
// requested size recorded in a large block's header).
func (c *Cache) blockSizeOf(addr uintptr) uintptr {
	if s, ok := c.a.heap.Table.Lookup(addr, c.a.slabSize); ok {
		return s.BlockSize()
	}
	if n, ok := c.largeUserSize(addr); ok {
		return n
	}
	panic("nalloc: address outside managed heap range")
}

// Smalloc is the size-bearing malloc variant: identical to Malloc, offered
// so callers that already know their intended size can pair it with Sfree
// for a belt-and-braces size assertion on free.
func (c *Cache) Smalloc(n uintptr) uintptr {
	return c.Malloc(n)
}

// Sfree asserts that size does not exceed the addressed block's actual
// capacity before freeing it -- a caller contract violation (not a normal
// error condition) panics rather than silently corrupting state.
func (c *Cache) Sfree(addr uintptr, size uintptr) {
	if addr == 0 {
		return
	}
	actual := c.blockSizeOf(addr)
	if size > actual {
		panic(fmt.Sprintf("nalloc: sfree size %d exceeds block capacity %d", size, actual))
	}
	c.Free(addr)
}

func zero(addr, n uintptr) {
	b := byteSliceAt(addr, n)
	for i := range b {
		b[i] = 0
	}
}

func copyBytes(dst, src, n uintptr) {
	d := byteSliceAt(dst, n)
	s := byteSliceAt(src, n)
	copy(d, s)
}

// addrToSlab exposes the internal lookup for the typed convenience layer.
func (c *Cache) addrToSlab(addr uintptr) (*slab.Slab, bool) {
	return c.a.heap.Table.Lookup(addr, c.a.slabSize)
}
