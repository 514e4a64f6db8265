// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fmstephe/flib/fmath"
	"github.com/go-nalloc/nalloc/internal/slab"
)

// DefaultSizeClasses is the polymorphic size-class ladder from spec §4.4.
var DefaultSizeClasses = []uintptr{16, 32, 48, 64, 80, 96, 112, 128, 192, 256, 384, 512, 1024}

const (
	polyCap        = 2
	polyAllocBatch = 8
)

// Allocator owns a Heap and the polymorphic ladder of Heritages the malloc
// facade (malloc.go) classifies requests against. A process normally needs
// exactly one Allocator; the default Allocator behind Pin and the
// package-level convenience functions is created lazily on first use.
type Allocator struct {
	heap        *slab.Heap
	slabSize    uintptr
	sizeClasses []uintptr
	poly        []*slab.Heritage

	// large tracks every outstanding large (C8) block: user address ->
	// largeHeader. Consulted by Free/Realloc/Sfree to distinguish a
	// large block from a slab block without relying on pointer-alignment
	// heuristics, which a slab block could coincidentally satisfy too.
	large sync.Map
}

// NewAllocator returns an Allocator using DefaultSizeClasses and the
// default slab size.
func NewAllocator() *Allocator {
	return NewSizeClasses(DefaultSizeClasses)
}

// NewSizeClasses returns an Allocator whose polymorphic heritages are built
// from sizes, sorted ascending, each with a no-op initializer (per spec
// §4.4, the malloc facade's polymorphic heritages carry none).
func NewSizeClasses(sizes []uintptr) *Allocator {
	return NewAllocatorWithSlabSize(slab.DefaultSlabSize, sizes)
}

// NewAllocatorWithSlabSize is NewSizeClasses with an explicit slab size.
// slabSize is rounded up to the nearest power of two (naturally-aligned
// mappings require it) via the same fmath helper the teacher repo uses to
// round requested sizes for its own slab allocation.
func NewAllocatorWithSlabSize(slabSize uintptr, sizes []uintptr) *Allocator {
	slabSize = uintptr(fmath.NxtPowerOfTwo(int64(slabSize)))

	sorted := append([]uintptr(nil), sizes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	a := &Allocator{
		heap:        slab.NewHeap(slabSize),
		slabSize:    slabSize,
		sizeClasses: sorted,
	}
	for _, sz := range sorted {
		t := slab.NewType(sz, fmt.Sprintf("poly-%d", sz), nil)
		a.poly = append(a.poly, slab.NewHeritage(t, polyCap, polyAllocBatch))
	}
	return a
}

// MaxBlock returns the largest size the slab fast path serves; requests
// larger than this go through the large-block path (C8).
func (a *Allocator) MaxBlock() uintptr {
	return a.sizeClasses[len(a.sizeClasses)-1]
}

// heritageFor returns the smallest polymorphic heritage able to hold n
// bytes, or nil if n exceeds MaxBlock.
func (a *Allocator) heritageFor(n uintptr) *slab.Heritage {
	for i, sz := range a.sizeClasses {
		if n <= sz {
			return a.poly[i]
		}
	}
	return nil
}
