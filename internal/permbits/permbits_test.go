// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package permbits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		r, w, x bool
	}{
		{false, false, false},
		{true, false, false},
		{false, true, false},
		{false, false, true},
		{true, true, true},
		{true, false, true},
	}

	for _, c := range cases {
		mask := Pack(c.r, c.w, c.x)
		r, w, x := Unpack(mask)

		assert.Equal(t, c.r, r)
		assert.Equal(t, c.w, w)
		assert.Equal(t, c.x, x)
	}
}

func TestEmpty(t *testing.T) {
	assert.True(t, Empty(Pack(false, false, false)))
	assert.False(t, Empty(Pack(true, false, false)))
}

func TestSetClear(t *testing.T) {
	var mask uint8

	mask = Set(mask, WriteBit)
	assert.True(t, Get(mask, WriteBit))
	assert.False(t, Get(mask, ReadBit))

	mask = Clear(mask, WriteBit)
	assert.False(t, Get(mask, WriteBit))
}
