// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"unsafe"

	"github.com/go-nalloc/nalloc/internal/slab"
)

// Cache is the owner-side hot path: per-heritage current-slab tracking, a
// small cache of fully-emptied idle slabs bounded by each heritage's cap,
// and the identity (its own address) recorded as "owner" on every slab it
// holds. A Cache must not be used from more than one goroutine at a time;
// Pin/Unpin enforce that by handing each caller exclusive, if temporary,
// use of one.
type Cache struct {
	a  *Allocator
	id uint64

	current map[*slab.Heritage]*slab.Slab
	idle    map[*slab.Heritage][]*slab.Slab

	debugMagic bool

	bytesLive  int64
	blocksLive int64
}

func newCache(a *Allocator) *Cache {
	c := &Cache{
		a:       a,
		current: make(map[*slab.Heritage]*slab.Slab),
		idle:    make(map[*slab.Heritage][]*slab.Slab),
	}
	c.id = uint64(uintptr(unsafe.Pointer(c)))
	return c
}

// NewCache returns a standalone Cache over a, not managed by any pool. Most
// callers should prefer Pin/Unpin or the package-level convenience
// functions; NewCache is for callers that want to manage a Cache's
// lifetime themselves (e.g. one Cache per long-lived worker goroutine).
func NewCache(a *Allocator) *Cache {
	return newCache(a)
}

// acquire returns a slab to allocate from for h: an idle cached slab this
// Cache already owns, or a fresh one from the shared Heap.
func (c *Cache) acquire(h *slab.Heritage) (*slab.Slab, bool) {
	if list := c.idle[h]; len(list) > 0 {
		s := list[len(list)-1]
		c.idle[h] = list[:len(list)-1]
		return s, true
	}
	return c.a.heap.Acquire(h, c.id)
}

// allocFrom implements C6's fast path over a specific heritage.
func (c *Cache) allocFrom(h *slab.Heritage) (uintptr, bool) {
	s, ok := c.current[h]
	if !ok {
		s, ok = c.acquire(h)
		if !ok {
			return 0, false
		}
		c.current[h] = s
	}

	addr, ok := slab.AllocFromOwned(s)
	if ok {
		c.bytesLive += int64(h.T.Size)
		c.blocksLive++
		return addr, true
	}

	// Exhausted: detach from the cache entry and disown it (it reaches a
	// shared pool once its outstanding blocks come back as wayward frees),
	// acquire a replacement, and retry exactly once against the fresh slab.
	delete(c.current, h)
	c.a.heap.Release(s)
	s, ok = c.acquire(h)
	if !ok {
		return 0, false
	}
	c.current[h] = s
	addr, ok = slab.AllocFromOwned(s)
	if ok {
		c.bytesLive += int64(h.T.Size)
		c.blocksLive++
	}
	return addr, ok
}

// freeTo implements C6's deallocation path over the slab s, known to be of
// heritage h, addressed by addr.
func (c *Cache) freeTo(h *slab.Heritage, s *slab.Slab, addr uintptr) {
	c.bytesLive -= int64(h.T.Size)
	c.blocksLive--
	if c.debugMagic {
		writeMagic(addr, h.T.Size)
	}

	if s.Owner() != c.id {
		slab.FreeWayward(s, addr)
		c.a.heap.TryDisownWayward(s)
		return
	}

	full := slab.FreeOwned(s, addr)
	if !full || c.current[h] != s {
		return
	}

	idle := c.idle[h]
	if len(idle) < h.Cap {
		c.idle[h] = append(idle, s)
		delete(c.current, h)
		return
	}
	delete(c.current, h)
	c.a.heap.Release(s)
}

// Close releases every slab this Cache currently holds -- both its active
// per-heritage slabs and its idle cache -- back to the shared pools. This
// is the Go-idiomatic stand-in for spec §4.5's "thread death" hook: Go has
// no reliable per-goroutine exit callback, so a goroutine that is genuinely
// finished (as opposed to merely done with one task) calls Close itself
// before its last reference to the Cache is dropped. Close does not
// prevent further use of the Cache; any subsequent allocation simply
// acquires fresh slabs.
func (c *Cache) Close() {
	for h, s := range c.current {
		c.a.heap.Release(s)
		delete(c.current, h)
	}
	for h, list := range c.idle {
		for _, s := range list {
			c.a.heap.Release(s)
		}
		delete(c.idle, h)
	}
}

// SetDebugMagic toggles the debug magic-fill described in SPEC_FULL.md's
// supplemented-features section. Off by default; enabling it changes no
// externally observable allocation result, only what a freed block's bytes
// (past its first word) read back as when it is handed out again, before
// the caller writes to them.
func (c *Cache) SetDebugMagic(on bool) { c.debugMagic = on }
