// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

// FreeOwned is called when the freeing goroutine is s's current owner
// (C6's deallocation path, step 2). If addr sits exactly at the slab's
// contig boundary -- the block most recently peeled from the untouched
// tail -- it is reverse-peeled back into the contig run in O(1); otherwise
// it is pushed onto the owner-private free list.
//
// It returns true if this free made the slab fully reusable (private
// empty and contig exhausted back to full capacity), the signal the
// caller uses to decide whether to disown an over-cap idle slab.
func FreeOwned(s *Slab, addr uintptr) (fullyReusable bool) {
	if s.contigCursor < int(s.maxBlocks) && addr == s.BlockAt(uint64(s.contigCursor)) {
		s.contigCursor++
	} else {
		s.privateFree.Push(uint64(addr))
	}
	s.freeCount.Add(1)
	return s.privateFree.Size() == 0 && s.contigCursor == int(s.maxBlocks)
}

// FreeWayward is called when the freeing goroutine is not s's current
// owner, or s has no owner at all (C6's deallocation path, step 3). The
// caller must follow every call with Heap.TryDisownWayward(s); it is cheap
// to call unconditionally and is the only place that notices when the last
// outstanding block of an ownerless slab has come back.
func FreeWayward(s *Slab, addr uintptr) {
	s.waywardFree.Push(uint64(addr))
	s.freeCount.Add(1)
}
