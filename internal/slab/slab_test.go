// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocGet(t *testing.T) {
	a := New[string]()

	h := a.Alloc("hello")
	v, ok := a.Get(h)

	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 1, a.Len())
}

func TestArenaFreeAndReuse(t *testing.T) {
	a := New[int]()

	h1 := a.Alloc(1)
	h2 := a.Alloc(2)

	a.Free(h1)
	assert.Equal(t, 1, a.Len())

	_, ok := a.Get(h1)
	assert.False(t, ok, "freed handle must not resolve")

	h3 := a.Alloc(3)
	assert.Equal(t, h1, h3, "freed slot should be reused before growing")

	v2, ok := a.Get(h2)
	require.True(t, ok)
	assert.Equal(t, 2, v2)
}

func TestArenaSet(t *testing.T) {
	a := New[int]()

	h := a.Alloc(1)
	ok := a.Set(h, 42)
	require.True(t, ok)

	v, _ := a.Get(h)
	assert.Equal(t, 42, v)

	assert.False(t, a.Set(Handle(999), 1), "setting an unallocated handle must fail")
}

func TestArenaUnknownHandle(t *testing.T) {
	a := New[int]()

	_, ok := a.Get(Handle(0))
	assert.False(t, ok)

	_, ok = a.Get(Handle(5))
	assert.False(t, ok)
}

func TestArenaReset(t *testing.T) {
	a := New[int]()

	a.Alloc(1)
	a.Alloc(2)
	a.Reset()

	assert.Equal(t, 0, a.Len())

	h := a.Alloc(3)
	v, ok := a.Get(h)
	require.True(t, ok)
	assert.Equal(t, 3, v)
}
