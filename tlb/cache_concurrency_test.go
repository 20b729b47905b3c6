// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tlb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/usbarmory/smmu"
)

// Lookups, inserts, and invalidations on disjoint streams must never
// race against each other or against GetAtomicStatistics, and the
// cache must leave no goroutines behind once every fan-out settles.
func TestConcurrentAccess(t *testing.T) {
	c, err := New(64)
	require.NoError(t, err)

	var g errgroup.Group

	for s := smmu.StreamID(0); s < 8; s++ {
		s := s

		g.Go(func() error {
			for i := smmu.IOVA(0); i < 32; i++ {
				c.Insert(entry(s, 1, i*smmu.PageSize, smmu.PA(i), smmu.NonSecure))
				c.LookupEntry(s, 1, i*smmu.PageSize, smmu.NonSecure)
			}
			c.InvalidateStream(s)
			return nil
		})
	}

	g.Go(func() error {
		for i := 0; i < 100; i++ {
			c.GetAtomicStatistics()
		}
		return nil
	})

	require.NoError(t, g.Wait())
}

// A SetMaxSize shrink running concurrently with lookups must leave the
// store within the new capacity.
func TestConcurrentResize(t *testing.T) {
	c, err := New(64)
	require.NoError(t, err)

	for i := smmu.IOVA(0); i < 64; i++ {
		c.Insert(entry(1, 1, i*smmu.PageSize, smmu.PA(i), smmu.NonSecure))
	}

	var g errgroup.Group

	g.Go(func() error {
		for i := smmu.IOVA(0); i < 64; i++ {
			c.LookupEntry(1, 1, i*smmu.PageSize, smmu.NonSecure)
		}
		return nil
	})

	g.Go(func() error {
		c.SetMaxSize(8)
		return nil
	})

	require.NoError(t, g.Wait())

	stats := c.GetAtomicStatistics()
	require.LessOrEqual(t, stats.Size, stats.MaxSize)
}
