// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"fmt"

	"github.com/go-nalloc/nalloc/internal/osmap"
)

func isPowerOfTwo(n uintptr) bool { return n != 0 && n&(n-1) == 0 }

// PosixMemalign returns an n-byte block aligned to alignment, or an error
// if alignment is not a power of two or exceeds what any size class (or
// the large-block path) can satisfy, per spec §4.9's bounded-alignment
// contract.
func (c *Cache) PosixMemalign(alignment, n uintptr) (uintptr, error) {
	if !isPowerOfTwo(alignment) {
		return 0, fmt.Errorf("nalloc: alignment %d is not a power of two", alignment)
	}
	size := n
	if alignment > size {
		size = alignment
	}
	if size > c.a.MaxBlock() {
		if alignment > osmap.PageSize() {
			return 0, fmt.Errorf("nalloc: alignment %d exceeds page size", alignment)
		}
		addr := c.mallocLarge(size)
		if addr == 0 {
			return 0, fmt.Errorf("nalloc: out of memory")
		}
		return addr, nil
	}

	idx := -1
	for i, h := range c.a.poly {
		if h.T.Size >= size && h.T.Size%alignment == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("nalloc: alignment %d not satisfied by any size class up to %d", alignment, c.a.MaxBlock())
	}
	addr, ok := c.allocFrom(c.a.poly[idx])
	if !ok {
		return 0, fmt.Errorf("nalloc: out of memory")
	}
	return addr, nil
}

// Memalign is PosixMemalign without the error wrapper, matching the
// original libc-style signature: it returns 0 on any failure.
func (c *Cache) Memalign(alignment, n uintptr) uintptr {
	addr, err := c.PosixMemalign(alignment, n)
	if err != nil {
		return 0
	}
	return addr
}

// AlignedAlloc is Memalign under the C11 aligned_alloc name.
func (c *Cache) AlignedAlloc(alignment, n uintptr) uintptr {
	return c.Memalign(alignment, n)
}

// Valloc returns an n-byte block aligned to the page size.
func (c *Cache) Valloc(n uintptr) uintptr {
	return c.mallocLarge(n)
}

// Pvalloc returns a page-aligned block sized to the next whole page
// covering n bytes.
func (c *Cache) Pvalloc(n uintptr) uintptr {
	page := osmap.PageSize()
	rounded := ((n + page - 1) / page) * page
	if rounded == 0 {
		rounded = page
	}
	return c.mallocLarge(rounded)
}
