// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import "github.com/go-nalloc/nalloc/internal/osmap"

// largeHeader records what a C8 large-block mapping actually covers, so
// Free/Realloc/Sfree can recover the original request without re-deriving
// it from the (page-rounded) mapped size.
type largeHeader struct {
	mappedBase uintptr
	mappedSize uintptr
	userSize   uintptr
}

// mallocLarge implements C8: a direct OS mapping for requests larger than
// the largest polymorphic size class. The mapping is page-aligned by
// construction (internal/osmap.NewLarge); large blocks never participate
// in the slab protocol and can never be the target of LinRefUp.
func (c *Cache) mallocLarge(n uintptr) uintptr {
	total := osmap.PageSize()
	for total < n {
		total += osmap.PageSize()
	}
	base, ok := osmap.NewLarge(total)
	if !ok {
		return 0
	}
	c.a.large.Store(base, largeHeader{mappedBase: base, mappedSize: total, userSize: n})
	return base
}

// freeLarge unmaps the large block at addr, reporting whether addr was in
// fact a large block this Allocator mapped.
func (c *Cache) freeLarge(addr uintptr) bool {
	v, ok := c.a.large.LoadAndDelete(addr)
	if !ok {
		return false
	}
	hdr := v.(largeHeader)
	if err := osmap.Unmap(hdr.mappedBase, hdr.mappedSize); err != nil {
		panic(err)
	}
	return true
}

// largeUserSize returns the originally-requested size of the large block
// at addr, if addr is one.
func (c *Cache) largeUserSize(addr uintptr) (uintptr, bool) {
	v, ok := c.a.large.Load(addr)
	if !ok {
		return 0, false
	}
	return v.(largeHeader).userSize, true
}
