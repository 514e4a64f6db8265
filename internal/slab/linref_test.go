// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinRefUpOutOfHeap(t *testing.T) {
	heap := NewHeap(testSlabSize)
	err := LinRefUp(heap, 0xdeadbeef, NewType(32, "x", nil))
	assert.ErrorIs(t, err, ErrOutOfHeap)
}

func TestLinRefUpWrongType(t *testing.T) {
	heap := NewHeap(testSlabSize)
	h := newTestHeritage(32)
	s, ok := heap.Acquire(h, 1)
	require.True(t, ok)

	other := NewType(32, "other", nil)
	err := LinRefUp(heap, s.DataBase(), other)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestLinRefUpDownRoundTripLeavesTypeAndRefsUnchanged(t *testing.T) {
	heap := NewHeap(testSlabSize)
	h := newTestHeritage(32)
	s, ok := heap.Acquire(h, 1)
	require.True(t, ok)

	before, beforeRefs := s.TypeAndRefs()
	require.NoError(t, LinRefUp(heap, s.DataBase(), h.T))
	LinRefDown(heap, s.DataBase())

	after, afterRefs := s.TypeAndRefs()
	assert.Equal(t, before, after)
	assert.Equal(t, beforeRefs, afterRefs)
}

func TestLinRefUpFailsOnceRefcountHitsZero(t *testing.T) {
	heap := NewHeap(testSlabSize)
	h := newTestHeritage(32)
	s, ok := heap.Acquire(h, 1)
	require.True(t, ok)

	heap.Release(s) // drives the owner's contribution to zero
	err := LinRefUp(heap, s.DataBase(), h.T)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestWrongTypeRejectionAfterRetype(t *testing.T) {
	heap := NewHeap(testSlabSize)
	h1 := newTestHeritage(32)
	s, ok := heap.Acquire(h1, 1)
	require.True(t, ok)
	heap.Release(s)

	h2 := newTestHeritage(64)
	s2, ok := heap.Acquire(h2, 1)
	require.True(t, ok)
	require.Same(t, s, s2, "clean pool should recycle the same slab")

	err := LinRefUp(heap, s.DataBase(), h1.T)
	assert.ErrorIs(t, err, ErrWrongType)
}
