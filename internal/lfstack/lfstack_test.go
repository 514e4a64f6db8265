// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package lfstack

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arrayLinks backs a small fixed pool of integer handles 1..n with an
// in-memory next array, standing in for the intrusive link word a real slab
// or block would carry.
type arrayLinks struct {
	next []uint64
}

func newArrayLinks(n int) *arrayLinks {
	return &arrayLinks{next: make([]uint64, n+1)}
}

func (l *arrayLinks) NextOf(h uint64) uint64 {
	if h == NilHandle {
		return NilHandle
	}
	return l.next[h]
}

func (l *arrayLinks) SetNext(h uint64, next uint64) {
	l.next[h] = next
}

func TestPushPopOrder(t *testing.T) {
	links := newArrayLinks(8)
	s := New(links)

	for i := uint64(1); i <= 8; i++ {
		n := s.Push(i)
		assert.Equal(t, int64(i), n)
	}

	for i := uint64(8); i >= 1; i-- {
		h, ok := s.Pop()
		require.True(t, ok)
		assert.Equal(t, i, h)
	}

	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestPopAllDetachesWholeChain(t *testing.T) {
	links := newArrayLinks(4)
	s := New(links)
	s.Push(1)
	s.Push(2)
	s.Push(3)

	head, n := s.PopAll(1)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(0), s.Size())

	var seen []uint64
	for h := head; h != NilHandle; h = links.NextOf(h) {
		seen = append(seen, h)
	}
	assert.Equal(t, []uint64{3, 2, 1}, seen)
}

func TestPopAllOrIncrOnEmptyOnlyBumpsGeneration(t *testing.T) {
	links := newArrayLinks(1)
	s := New(links)

	genBefore := s.Generation()
	h, n, ok := s.PopAllOrIncr(1)
	assert.False(t, ok)
	assert.Equal(t, NilHandle, h)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, genBefore+1, s.Generation())
}

func TestPopAllIffOnlyWinsForMatchingGeneration(t *testing.T) {
	links := newArrayLinks(1)
	s := New(links)
	s.Push(1)

	staleGen := s.Generation() + 1
	_, _, ok := s.PopAllIff(staleGen+1, staleGen)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Size())

	gen := s.Generation()
	h, n, ok := s.PopAllIff(gen+1, gen)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), h)
	assert.Equal(t, int64(1), n)
}

func TestPushIffRejectsStaleGeneration(t *testing.T) {
	links := newArrayLinks(1)
	s := New(links)

	stale := s.Generation() + 1
	_, ok := s.PushIff(1, stale)
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Size())

	_, ok = s.PushIff(1, s.Generation())
	assert.True(t, ok)
	assert.Equal(t, int64(1), s.Size())
}

// TestConcurrentPushPopConservesCount pushes and pops concurrently from many
// goroutines and checks that every handle handed out is eventually popped
// exactly once, mirroring the shared-pool stress scenario's invariant that
// no block is lost or duplicated.
func TestConcurrentPushPopConservesCount(t *testing.T) {
	const n = 2000
	links := newArrayLinks(n)
	s := New(links)

	var wg sync.WaitGroup
	for i := uint64(1); i <= n; i++ {
		wg.Add(1)
		go func(h uint64) {
			defer wg.Done()
			s.Push(h)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(n), s.Size())

	seen := make([]bool, n+1)
	var mu sync.Mutex
	var pops sync.WaitGroup
	for i := 0; i < 8; i++ {
		pops.Add(1)
		go func() {
			defer pops.Done()
			for {
				h, ok := s.Pop()
				if !ok {
					return
				}
				mu.Lock()
				assert.False(t, seen[h], "handle %d popped twice", h)
				seen[h] = true
				mu.Unlock()
			}
		}()
	}
	pops.Wait()

	for i := uint64(1); i <= n; i++ {
		assert.True(t, seen[i], "handle %d never popped", i)
	}
}

func TestLocalStackPushPopPeek(t *testing.T) {
	links := newArrayLinks(3)
	s := NewLocal(links)

	_, ok := s.Peek()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	top, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(2), top)
	assert.Equal(t, int64(2), s.Size())

	h, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(2), h)

	h, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), h)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestLocalStackAdoptChain(t *testing.T) {
	links := newArrayLinks(4)
	shared := New(links)
	shared.Push(1)
	shared.Push(2)
	shared.Push(3)

	head, n := shared.PopAll(1)

	local := NewLocal(links)
	local.AdoptChain(head, n)
	assert.Equal(t, int64(3), local.Size())

	h, ok := local.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(3), h)
}
