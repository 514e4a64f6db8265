// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package osmap implements the "OS page-mapping primitive" external
// collaborator from the specification: a function returning naturally
// aligned, slab-sized, zero-initialized memory straight from the OS.
//
// Go's mmap does not guarantee the alignment the allocator needs (a slab
// must be aligned to its own size so a block's slab can be found by masking
// the block's address), so this package over-maps by one slab and trims the
// unaligned prefix/suffix, the classic slab-allocator alignment trick.
package osmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewSlabs maps batch contiguous slabs of slabSize bytes each from the OS.
// The returned base is aligned to slabSize, so base, base+slabSize,
// base+2*slabSize, ... are each valid, naturally-aligned slab addresses.
// The memory is zero-filled, readable and writable, as the anonymous mmap
// contract guarantees.
func NewSlabs(batch int, slabSize uintptr) (base uintptr, ok bool) {
	if batch <= 0 {
		panic("osmap: batch must be positive")
	}
	if slabSize == 0 || slabSize&(slabSize-1) != 0 {
		panic("osmap: slabSize must be a power of two")
	}

	want := uintptr(batch) * slabSize
	raw, err := unix.Mmap(-1, 0, int(want+slabSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, false
	}

	rawBase := uintptr(unsafe.Pointer(&raw[0]))
	aligned := alignUp(rawBase, slabSize)

	if prefix := aligned - rawBase; prefix > 0 {
		if err := unmapRange(rawBase, prefix); err != nil {
			panic(fmt.Errorf("osmap: trimming alignment prefix: %w", err))
		}
	}
	rawEnd := rawBase + uintptr(len(raw))
	suffixStart := aligned + want
	if suffix := rawEnd - suffixStart; suffix > 0 {
		if err := unmapRange(suffixStart, suffix); err != nil {
			panic(fmt.Errorf("osmap: trimming alignment suffix: %w", err))
		}
	}

	return aligned, true
}

// Unmap releases a region previously returned (in whole or in part) by
// NewSlabs or NewLarge back to the OS. The allocator's default
// configuration never calls this for slabs; it is used by the large-block
// path, where every allocation is unmapped on free.
func Unmap(base uintptr, size uintptr) error {
	return unmapRange(base, size)
}

// NewLarge maps size bytes, page-aligned, for the large-block fallback
// path. Unlike NewSlabs it does not need slab-granularity alignment, only
// ordinary page alignment, which a plain anonymous mmap already provides.
func NewLarge(size uintptr) (base uintptr, ok bool) {
	raw, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, false
	}
	return uintptr(unsafe.Pointer(&raw[0])), true
}

// PageSize returns the host's page size, used to size and align large
// allocations.
func PageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

// unmapRange releases [addr, addr+size) directly through the munmap(2)
// syscall rather than unix.Munmap. unix.Munmap validates its argument
// against an internal table keyed on the exact slice unix.Mmap returned,
// and rejects any other slice -- including one reconstructed over a
// sub-range of that mapping -- with EINVAL. NewSlabs unmaps the unaligned
// prefix/suffix trimmed off an over-map, which are exactly such
// sub-ranges, so the raw syscall is required here.
func unmapRange(addr, size uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, size, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
