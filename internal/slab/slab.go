// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import (
	"sync/atomic"
	"unsafe"

	"github.com/go-nalloc/nalloc/internal/lfstack"
)

// refBits is the width given to the refcount half of typeAndRefs; the
// remaining high bits hold the owning type's id. 40 bits of refcount is far
// beyond any plausible number of simultaneous linref holders or owners.
const refBits = 40
const refMask = uint64(1)<<refBits - 1

func packTypeRefs(typeID uint32, refs uint64) uint64 {
	return (uint64(typeID) << refBits) | (refs & refMask)
}

func unpackTypeRefs(v uint64) (typeID uint32, refs uint64) {
	return uint32(v >> refBits), v & refMask
}

// Slab is the C3 out-of-band slab metadata record. Exactly one Slab exists
// per slab-sized region of mapped memory for the lifetime of the process;
// the record is never freed, only recycled between heritages (see Heap).
//
// contigCursor and privateFree are owner-only: they are mutated without
// synchronization, and it is a caller bug (not just a data race) to touch
// them except through the current owner's single logical thread of
// execution. waywardFree, owner, typeAndRefs and poolLink are shared and
// mutated only through atomics.
type Slab struct {
	dataBase uintptr
	slabSize uintptr

	blockSize uintptr
	maxBlocks uint64

	contigCursor int
	privateFree  *lfstack.LocalStack

	waywardFree *lfstack.Stack

	// freeCount is the total number of blocks not currently handed out to
	// any caller -- contig + private + wayward, kept as a single atomic
	// counter so any free (owner or foreign) can cheaply test "is the
	// whole slab free now" without needing a consistent snapshot of all
	// three structures at once. See Heap.tryFinishRelease.
	freeCount atomic.Int64

	owner    atomic.Uint64
	heritage atomic.Pointer[Heritage]

	typeAndRefs atomic.Uint64
	poolLink    atomic.Uint64
}

func newSlab(base, slabSize uintptr) *Slab {
	s := &Slab{dataBase: base, slabSize: slabSize}
	s.privateFree = lfstack.NewLocal(blockLinks{})
	s.waywardFree = lfstack.New(blockLinks{})
	return s
}

// handle returns the packed identity of s usable as an lfstack handle: the
// slab metadata record's own address. Converting a live Go pointer to a
// uintptr and back like this is sound only because the registering Table
// retains a real *Slab for the lifetime of the process (see Table.register);
// that reference is what keeps s reachable to the garbage collector, not
// this handle.
func (s *Slab) handle() uint64      { return uint64(uintptr(unsafe.Pointer(s))) }
func slabFromHandle(h uint64) *Slab { return (*Slab)(unsafe.Pointer(uintptr(h))) }

type slabLinks struct{}

func (slabLinks) NextOf(h uint64) uint64 {
	if h == lfstack.NilHandle {
		return lfstack.NilHandle
	}
	return slabFromHandle(h).poolLink.Load()
}

func (slabLinks) SetNext(h uint64, next uint64) {
	slabFromHandle(h).poolLink.Store(next)
}

// blockLinks implements lfstack.Links directly over raw block memory: a
// free block's first word doubles as its link field.
type blockLinks struct{}

func (blockLinks) NextOf(h uint64) uint64 {
	if h == lfstack.NilHandle {
		return lfstack.NilHandle
	}
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(uintptr(h))))
}

func (blockLinks) SetNext(h uint64, next uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(uintptr(h))), next)
}

// DataBase returns the address of the slab's first byte.
func (s *Slab) DataBase() uintptr { return s.dataBase }

// SlabSize returns the total size of the slab's mapped region.
func (s *Slab) SlabSize() uintptr { return s.slabSize }

// BlockSize returns the slab's current block size.
func (s *Slab) BlockSize() uintptr { return s.blockSize }

// MaxBlocks returns the slab's current capacity in blocks.
func (s *Slab) MaxBlocks() uint64 { return s.maxBlocks }

// Contains reports whether addr falls within this slab's mapped region.
func (s *Slab) Contains(addr uintptr) bool {
	return addr >= s.dataBase && addr < s.dataBase+s.slabSize
}

// Owner returns the identity of the slab's current owner, or 0 for none.
func (s *Slab) Owner() uint64 { return s.owner.Load() }

// SetOwner records id as the slab's current owner (0 for none).
func (s *Slab) SetOwner(id uint64) { s.owner.Store(id) }

// Heritage returns the heritage this slab is currently typed to.
func (s *Slab) Heritage() *Heritage { return s.heritage.Load() }

// PrivateFree returns the slab's owner-only free list. Only valid while the
// caller is the current owner.
func (s *Slab) PrivateFree() *lfstack.LocalStack { return s.privateFree }

// WaywardFree returns the slab's lockfree cross-thread free list.
func (s *Slab) WaywardFree() *lfstack.Stack { return s.waywardFree }

// ContigCursor returns the count of never-yet-handed-out blocks remaining
// at the slab's tail.
func (s *Slab) ContigCursor() int { return s.contigCursor }

// currentTypeID returns the type id currently recorded on the slab,
// regardless of refcount.
func (s *Slab) currentTypeID() uint32 {
	typeID, _ := unpackTypeRefs(s.typeAndRefs.Load())
	return typeID
}

// TypeAndRefs returns the slab's current (typeID, refcount) pair.
func (s *Slab) TypeAndRefs() (typeID uint32, refs uint64) {
	return unpackTypeRefs(s.typeAndRefs.Load())
}

// retype assigns a fresh type to the slab unconditionally, resetting every
// per-incarnation field. Only valid for a slab freshly popped from a pool,
// where no other goroutine can be observing it yet.
func (s *Slab) retype(t *Type) {
	s.blockSize = t.Size
	s.maxBlocks = uint64(s.slabSize / t.Size)
	s.contigCursor = int(s.maxBlocks)
	s.privateFree = lfstack.NewLocal(blockLinks{})
	s.freeCount.Store(int64(s.maxBlocks))
	s.typeAndRefs.Store(packTypeRefs(t.id, 1))
}

// reuse bumps the slab's refcount to 1 for its existing type without
// touching contigCursor/privateFree/waywardFree/freeCount: those already
// correctly describe which blocks are free, carried forward unchanged from
// whatever state the previous owner (or disowning wayward free) left them
// in. A slab is only ever parked in a pool with freeCount == maxBlocks (see
// Heap.tryFinishRelease), so this is always already maxBlocks here too.
func (s *Slab) reuse() {
	typeID, _ := unpackTypeRefs(s.typeAndRefs.Load())
	s.typeAndRefs.Store(packTypeRefs(typeID, 1))
}

// FreeCount returns the number of blocks not currently handed out to any
// caller.
func (s *Slab) FreeCount() int64 { return s.freeCount.Load() }

// RefUp attempts to move (t, n) -> (t, n+1). It fails, without side
// effects, if the slab's current type isn't t or its refcount is already
// zero -- the two conditions the specification's "wrong type" error covers.
func (s *Slab) RefUp(t *Type) bool {
	for {
		old := s.typeAndRefs.Load()
		typeID, refs := unpackTypeRefs(old)
		if typeID != t.id || refs == 0 {
			return false
		}
		next := packTypeRefs(typeID, refs+1)
		if s.typeAndRefs.CompareAndSwap(old, next) {
			return true
		}
	}
}

// RefDown decrements the slab's refcount by one and reports whether it
// reached zero.
func (s *Slab) RefDown() bool {
	for {
		old := s.typeAndRefs.Load()
		typeID, refs := unpackTypeRefs(old)
		if refs == 0 {
			panic("slab: refcount underflow")
		}
		next := packTypeRefs(typeID, refs-1)
		if s.typeAndRefs.CompareAndSwap(old, next) {
			return refs-1 == 0
		}
	}
}

// BlockAt returns the address of the i'th block in the slab.
func (s *Slab) BlockAt(i uint64) uintptr {
	return s.dataBase + uintptr(i)*s.blockSize
}

// blockPointer converts a block address to an unsafe.Pointer for handing
// to a Type's initializer or a caller-facing typed accessor.
func blockPointer(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}
