// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package nalloc implements a lockfree, slab-based general-purpose memory
// allocator for multithreaded Go programs that need to manage memory
// outside the reach of the garbage collector.
//
// It provides a conventional heap interface (Malloc, Free, Calloc,
// Realloc) built on segregated size classes, plus an extended
// type-stable interface (LinAlloc/LinFree, LinRefUp/LinRefDown) that lets
// a goroutine take a temporary reference on a freed block under a type
// guarantee, without locking, as long as the slab holding it has not been
// retyped.
//
// Typical use pins a Cache for the duration of a goroutine's work:
//
//	c := nalloc.Pin()
//	defer c.Unpin()
//
//	p := c.Malloc(64)
//	defer c.Free(p)
//
// or, for callers that don't want to manage a Cache themselves, the
// package-level convenience functions (Malloc, Free, Calloc, Realloc, ...)
// pin and unpin an internal Cache around each call.
//
// Allocations larger than the largest configured size class go through a
// direct OS mapping (see large.go) rather than through any slab; such
// blocks cannot be the target of LinRefUp.
package nalloc
