// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import (
	"sync/atomic"
	"unsafe"
)

var nextTypeID atomic.Uint32

// Type is the specification's (size, initializer, name) triple. Identity
// for the purposes of linref_up/linref_down is the type's id, a small
// dense integer assigned once at construction and packed alongside a
// slab's refcount -- see packTypeRefs. Types are expected to be created a
// small, bounded number of times (once per heritage, typically at
// startup), never in a hot path.
type Type struct {
	id   uint32
	Size uintptr
	Name string
	Init func(unsafe.Pointer)
}

// NewType registers a new type with the given block size, name, and
// optional initializer (nil if blocks need no preparation beyond being
// zeroed, which freshly mapped slab memory already is).
func NewType(size uintptr, name string, init func(unsafe.Pointer)) *Type {
	if size < MinBlockSize {
		size = MinBlockSize
	}
	return &Type{
		id:   nextTypeID.Add(1),
		Size: AlignUp(size, BlockAlignment),
		Name: name,
		Init: init,
	}
}

// ID returns the type's identity, used internally to detect whether a
// slab's current type matches.
func (t *Type) ID() uint32 { return t.id }
