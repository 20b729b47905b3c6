// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package slab provides a handle-based slot arena, adapted from
// tamago's dma package first-fit free-list allocator
// (dma/alloc.go, dma/block.go). The original allocates variable-sized
// byte regions out of a raw memory window addressed by pointer; this
// adaptation allocates fixed-size typed slots out of a growable slice,
// addressed by a stable integer Handle instead of a pointer, so that
// addrspace.AddressSpace's page map can hold a handle per mapped page
// for the lifetime of that mapping.
package slab

import (
	"container/list"
	"sync"
)

// Handle identifies a slot in an Arena. The zero Handle is never
// allocated and is safe to use as a "no entry" sentinel.
type Handle uint32

// Arena is a slab allocator for values of type T, reusing freed slots
// first-fit (in practice, first-available, since slots are fixed size)
// before growing.
type Arena[T any] struct {
	mu       sync.Mutex
	slots    []T
	occupied []bool
	freeList *list.List
}

// New returns an empty Arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{freeList: list.New()}
}

// Alloc stores v in a free slot, reusing one from the free list before
// growing the backing slice, and returns its handle.
func (a *Arena[T]) Alloc(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e := a.freeList.Front(); e != nil {
		idx := e.Value.(int)
		a.freeList.Remove(e)
		a.slots[idx] = v
		a.occupied[idx] = true
		return Handle(idx + 1)
	}

	a.slots = append(a.slots, v)
	a.occupied = append(a.occupied, true)
	return Handle(len(a.slots))
}

// Get returns the value stored at h, and whether h refers to a
// currently occupied slot.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T

	idx := int(h) - 1
	if idx < 0 || idx >= len(a.slots) || !a.occupied[idx] {
		return zero, false
	}

	return a.slots[idx], true
}

// Set overwrites the value stored at h in place, without changing its
// handle. Reports false if h does not refer to an occupied slot.
func (a *Arena[T]) Set(h Handle, v T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := int(h) - 1
	if idx < 0 || idx >= len(a.slots) || !a.occupied[idx] {
		return false
	}

	a.slots[idx] = v
	return true
}

// Free releases the slot at h, zeroing its stored value and returning
// the index to the free list for reuse by a future Alloc.
func (a *Arena[T]) Free(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := int(h) - 1
	if idx < 0 || idx >= len(a.slots) || !a.occupied[idx] {
		return
	}

	var zero T
	a.slots[idx] = zero
	a.occupied[idx] = false
	a.freeList.PushBack(idx)
}

// Len returns the number of currently occupied slots.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, occ := range a.occupied {
		if occ {
			n++
		}
	}

	return n
}

// Reset releases every slot and clears the free list.
func (a *Arena[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.slots = nil
	a.occupied = nil
	a.freeList = list.New()
}
