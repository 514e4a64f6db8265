// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"unsafe"

	"github.com/go-nalloc/nalloc/internal/slab"
)

// Type describes the fixed-size blocks a Heritage carves out of its slabs:
// a size, a diagnostic name, and an optional per-block initializer. The
// initializer, when present, runs exactly once per (slab, block,
// type-assignment): it runs on every block of a slab at the moment the slab
// is acquired and retyped to this Type, never again on a same-type
// reacquire.
type Type struct {
	inner *slab.Type
}

// NewType returns a Type of the given size. init may be nil.
func NewType(size uintptr, name string, init func(unsafe.Pointer)) *Type {
	return &Type{inner: slab.NewType(size, name, init)}
}

// Size returns the type's block size in bytes.
func (t *Type) Size() uintptr { return t.inner.Size }

// Name returns the type's diagnostic name.
func (t *Type) Name() string { return t.inner.Name }
