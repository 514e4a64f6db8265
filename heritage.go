// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import "github.com/go-nalloc/nalloc/internal/slab"

// Heritage is a size class: a Type plus the policy governing how many
// emptied slabs an owner caches locally (cap) and how many slabs are
// requested from the OS at once on exhaustion (allocBatch). Every Heritage
// is shared in the sense of spec §4.4 -- its dirty pool is always the
// lockfree internal/slab.Pool -- so any number of Caches may draw from the
// same Heritage concurrently.
type Heritage struct {
	inner *slab.Heritage
}

// NewHeritage returns a Heritage over t, caching at most cap fully-emptied
// slabs per owner before eagerly disowning, and requesting allocBatch
// fresh slabs at a time from the OS on exhaustion.
func NewHeritage(t *Type, cap, allocBatch int) *Heritage {
	return &Heritage{inner: slab.NewHeritage(t.inner, cap, allocBatch)}
}

// Type returns the heritage's type.
func (h *Heritage) Type() *Type { return &Type{inner: h.inner.T} }
