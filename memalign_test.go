// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-nalloc/nalloc/internal/osmap"
)

func TestPosixMemalignRejectsNonPowerOfTwo(t *testing.T) {
	c := newTestCache()
	_, err := c.PosixMemalign(3, 16)
	assert.Error(t, err)
}

func TestPosixMemalignSatisfiesRequestedAlignment(t *testing.T) {
	c := newTestCache()
	p, err := c.PosixMemalign(64, 40)
	require.NoError(t, err)
	assert.Zero(t, p%64)
	c.Free(p)
}

func TestPosixMemalignRejectsAlignmentBeyondPageSize(t *testing.T) {
	c := newTestCache()
	_, err := c.PosixMemalign(1<<40, 16)
	assert.Error(t, err)
}

func TestVallocAndPvallocArePageAligned(t *testing.T) {
	c := newTestCache()
	p := c.Valloc(10)
	require.NotZero(t, p)
	defer c.Free(p)
	assert.Zero(t, p%osmap.PageSize())

	pv := c.Pvalloc(1)
	require.NotZero(t, pv)
	defer c.Free(pv)
	assert.Zero(t, pv%osmap.PageSize())
}
