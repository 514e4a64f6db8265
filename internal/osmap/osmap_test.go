// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package osmap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlabsIsAlignedAndZeroed(t *testing.T) {
	const slabSize = 1 << 16
	const batch = 4

	base, ok := NewSlabs(batch, slabSize)
	require.True(t, ok)
	defer Unmap(base, batch*slabSize)

	assert.Zero(t, base%slabSize, "base must be slab-aligned")

	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), batch*slabSize)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}

	// Writable: touch the last byte of the batch.
	b[len(b)-1] = 7
	assert.Equal(t, byte(7), b[len(b)-1])
}

func TestNewLargeIsPageAligned(t *testing.T) {
	base, ok := NewLarge(PageSize() * 3)
	require.True(t, ok)
	defer Unmap(base, PageSize()*3)

	assert.Zero(t, base%PageSize())
}
