// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import "github.com/go-nalloc/nalloc/internal/osmap"

// Heap is the C5 slab lifecycle engine: it owns the shared clean pool, the
// address table, and the batch-mapping logic, and implements the
// acquire/release state transitions (CLEAN -> OWNED -> (DIRTY | CLEAN)).
type Heap struct {
	SlabSize uintptr
	Table    *Table
	Clean    *Pool
}

// NewHeap returns a Heap whose slabs are all slabSize bytes.
func NewHeap(slabSize uintptr) *Heap {
	return &Heap{SlabSize: slabSize, Table: NewTable(), Clean: NewPool()}
}

// Acquire implements "Acquire by owner" (spec 4.5): pop a dirty slab for h
// if one exists, else a clean slab, else map a fresh batch from the OS and
// take one of those. owner identifies the calling owner (e.g. a Cache's
// address) and is recorded on the returned slab.
func (heap *Heap) Acquire(h *Heritage, owner uint64) (*Slab, bool) {
	if s, ok := h.Dirty.Pop(); ok {
		return heap.finishAcquire(s, h, owner), true
	}
	if s, ok := heap.Clean.Pop(); ok {
		return heap.finishAcquire(s, h, owner), true
	}
	if !heap.mapBatch(h) {
		return nil, false
	}
	if s, ok := heap.Clean.Pop(); ok {
		return heap.finishAcquire(s, h, owner), true
	}
	return nil, false
}

func (heap *Heap) mapBatch(h *Heritage) bool {
	base, ok := osmap.NewSlabs(h.AllocBatch, heap.SlabSize)
	if !ok {
		return false
	}
	for i := 0; i < h.AllocBatch; i++ {
		slabBase := base + uintptr(i)*heap.SlabSize
		s := newSlab(slabBase, heap.SlabSize)
		heap.Table.register(s)
		heap.Clean.Push(s)
	}
	return true
}

func (heap *Heap) finishAcquire(s *Slab, h *Heritage, owner uint64) *Slab {
	if s.currentTypeID() != h.T.id {
		s.retype(h.T)
		if h.T.Init != nil {
			for i := uint64(0); i < s.maxBlocks; i++ {
				h.T.Init(blockPointer(s.BlockAt(i)))
			}
		}
	} else {
		s.reuse()
	}
	s.heritage.Store(h)
	s.SetOwner(owner)
	return s
}

// Release implements "Release by owner": the owner gives up a slab it
// believes to be fully free (e.g. an idle-cache slab past the heritage's
// cap, or the owner's whole set of slabs on thread exit). Ownership is
// cleared unconditionally; the slab only actually moves to a pool once
// every block is confirmed free, which on thread exit may not be true yet
// if some blocks are still outstanding with other goroutines -- those are
// necessarily freed later through FreeWayward, since no owner remains, and
// it is that later call which completes the transition.
func (heap *Heap) Release(s *Slab) {
	s.SetOwner(0)
	heap.tryFinishRelease(s)
}

// TryDisownWayward must be called after every FreeWayward. It is a cheap
// no-op unless the slab is already ownerless (the owner called Release, or
// never existed) AND that free was the one that brought freeCount back up
// to full capacity, in which case it attempts to win the race to detach
// the wayward chain and complete the slab's release. Only one racing
// caller can win the detach (internal/lfstack's PopAllIff), so this is
// safe to call unconditionally from any foreign free.
//
// The owner check is load-bearing, not an optimisation: a slab whose
// owner is still live may have freeCount == maxBlocks too (every block
// the owner ever carved out has come home as a wayward free, while the
// owner itself is still mid-use of contig/private), and moving such a
// slab into a shared pool while its owner keeps allocating from it would
// hand the same memory to two owners at once. Only Heap.Release (which
// clears owner before calling this) may enable the transition; see
// original_source/src/nalloc.c's assert(!s->free_blocks.size) guard on
// exactly this live-owner case.
func (heap *Heap) TryDisownWayward(s *Slab) {
	heap.tryFinishRelease(s)
}

// tryFinishRelease is the sole place a slab moves into the clean or dirty
// pool. It is a no-op unless the slab has no live owner (Owner() == 0);
// the caller -- Release, or a foreign FreeWayward/TryDisownWayward
// observing an already-released slab -- is responsible for that having
// become true first. It is safe to call speculatively from multiple
// goroutines at once: only the caller that wins the wayward generation
// CAS performs the move, and that CAS also rules out a concurrent
// Acquire racing the same slab back into ownership (Acquire only ever
// pops a slab already resident in a pool).
func (heap *Heap) tryFinishRelease(s *Slab) {
	if s.Owner() != 0 {
		return
	}
	if s.freeCount.Load() < int64(s.maxBlocks) {
		return
	}
	gen := s.waywardFree.Generation()
	chain, n, ok := s.waywardFree.PopAllIff(gen+1, gen)
	if !ok {
		return
	}
	s.privateFree.PrependChain(chain, n)
	if s.RefDown() {
		heap.Clean.Push(s)
	} else {
		s.Heritage().Dirty.Push(s)
	}
}
