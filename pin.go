// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import "sync"

var (
	defaultOnce      sync.Once
	defaultAllocator *Allocator
	defaultPool      sync.Pool
)

func defaultAlloc() *Allocator {
	defaultOnce.Do(func() {
		defaultAllocator = NewAllocator()
		defaultPool.New = func() any { return newCache(defaultAllocator) }
	})
	return defaultAllocator
}

// Pin returns a Cache bound to the default package-level Allocator, for
// exclusive use by the calling goroutine until Unpin. Prefer this over
// constructing a Cache directly when a single shared Allocator is enough
// (the common case for a process using nalloc as its general-purpose
// heap); use NewAllocator/NewCache directly to keep a Cache's arena
// separate.
func Pin() *Cache {
	defaultAlloc()
	return defaultPool.Get().(*Cache)
}

// Unpin returns c to the default pool for reuse by a future Pin call. It
// does not release any slab c currently holds -- see Cache.Close for that.
func (c *Cache) Unpin() {
	defaultPool.Put(c)
}

// Malloc allocates n bytes using a pinned default Cache.
func Malloc(n uintptr) uintptr {
	c := Pin()
	defer c.Unpin()
	return c.Malloc(n)
}

// Free releases a block allocated through the package-level convenience
// functions.
func Free(addr uintptr) {
	c := Pin()
	defer c.Unpin()
	c.Free(addr)
}

// Calloc allocates k*n zero-filled bytes using a pinned default Cache.
func Calloc(k, n uintptr) uintptr {
	c := Pin()
	defer c.Unpin()
	return c.Calloc(k, n)
}

// Realloc resizes addr to n bytes using a pinned default Cache.
func Realloc(addr uintptr, n uintptr) uintptr {
	c := Pin()
	defer c.Unpin()
	return c.Realloc(addr, n)
}
