// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache() *Cache {
	return NewCache(NewAllocator())
}

func TestMallocSmallestReturnsSixteenByteAlignedBlock(t *testing.T) {
	c := newTestCache()
	p := c.Malloc(1)
	require.NotZero(t, p)
	assert.Zero(t, p%16)
	c.Free(p)
}

func TestMallocZeroReturnsNilAndFreeIsNoOp(t *testing.T) {
	c := newTestCache()
	assert.Zero(t, c.Malloc(0))
	assert.NotPanics(t, func() { c.Free(0) })
}

func TestMallocOverSizeClassesUsesLargePath(t *testing.T) {
	c := newTestCache()
	n := c.a.MaxBlock() + 1
	p := c.Malloc(n)
	require.NotZero(t, p)
	defer c.Free(p)

	size, ok := c.largeUserSize(p)
	require.True(t, ok)
	assert.Equal(t, n, size)
}

func TestFreeMallocRoundTripIsNoOpUpToCounters(t *testing.T) {
	c := newTestCache()
	before := c.Stats()
	for i := 0; i < 1000; i++ {
		p := c.Malloc(64)
		c.Free(p)
	}
	assert.Equal(t, before, c.Stats())
}

func TestCallocZeroesMemory(t *testing.T) {
	c := newTestCache()
	p := c.Calloc(8, 8)
	require.NotZero(t, p)
	defer c.Free(p)

	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 64)
	for _, v := range b {
		assert.Zero(t, v)
	}
}

func TestCallocOverflowReturnsNil(t *testing.T) {
	c := newTestCache()
	var huge uintptr = 1 << (unsafe.Sizeof(uintptr(0))*8 - 1)
	assert.Zero(t, c.Calloc(huge, 3))
}

func TestReallocNilIsMalloc(t *testing.T) {
	c := newTestCache()
	p := c.Realloc(0, 32)
	require.NotZero(t, p)
	c.Free(p)
}

func TestReallocZeroFreesAndReturnsNil(t *testing.T) {
	c := newTestCache()
	p := c.Malloc(32)
	require.NotZero(t, p)
	assert.Zero(t, c.Realloc(p, 0))
}

func TestReallocPreservesLeadingBytes(t *testing.T) {
	c := newTestCache()
	p := c.Malloc(16)
	require.NotZero(t, p)
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 16)
	for i := range b {
		b[i] = byte(i + 1)
	}

	bigger := c.Realloc(p, 64)
	require.NotZero(t, bigger)
	defer c.Free(bigger)

	grown := unsafe.Slice((*byte)(unsafe.Pointer(bigger)), 16)
	for i := range grown {
		assert.Equal(t, byte(i+1), grown[i])
	}
}

func TestSfreeRejectsSizeLargerThanBlock(t *testing.T) {
	c := newTestCache()
	p := c.Malloc(16)
	require.NotZero(t, p)
	assert.Panics(t, func() { c.Sfree(p, 1<<20) })
}

func TestFreeOfForeignAddressPanics(t *testing.T) {
	c := newTestCache()
	assert.Panics(t, func() { c.Free(0xdeadbeef) })
}

func TestPackageLevelConvenienceFunctionsRoundTrip(t *testing.T) {
	p := Malloc(128)
	require.NotZero(t, p)
	Free(p)

	p2 := Calloc(4, 4)
	require.NotZero(t, p2)
	Free(p2)
}
