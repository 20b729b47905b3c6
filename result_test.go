// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package smmu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOk(t *testing.T) {
	r := Ok(42)

	require.True(t, r.IsOk())
	require.False(t, r.IsErr())
	assert.Equal(t, 42, r.Value())
}

func TestResultErr(t *testing.T) {
	r := Err[int](PageNotMapped)

	require.True(t, r.IsErr())
	require.False(t, r.IsOk())
	assert.Equal(t, 0, r.Value(), "error Result must expose the zero value, not a leaked payload")
	assert.Equal(t, PageNotMapped, r.Error())
}

func TestResultValueOr(t *testing.T) {
	ok := Ok(7)
	bad := Err[int](InvalidAddress)

	assert.Equal(t, 7, ok.ValueOr(99))
	assert.Equal(t, 99, bad.ValueOr(99))
}

func TestVoidResult(t *testing.T) {
	ok := OkVoid()
	bad := ErrVoid(InvalidPermissions)

	assert.True(t, ok.IsOk())
	assert.True(t, bad.IsErr())
	assert.Equal(t, InvalidPermissions, bad.Error())
}

func TestFaultToErrorIsTotal(t *testing.T) {
	cases := map[FaultType]SMMUError{
		TranslationFault:             PageNotMapped,
		Level0TranslationFault:       PageNotMapped,
		Level1TranslationFault:       PageNotMapped,
		Level2TranslationFault:       PageNotMapped,
		Level3TranslationFault:       PageNotMapped,
		Stage2TranslationFault:       PageNotMapped,
		PermissionFault:              PagePermissionViolation,
		Stage2PermissionFault:        PagePermissionViolation,
		AddressSizeFault:             InvalidAddress,
		SecurityFault:                InvalidSecurityState,
		ContextDescriptorFormatFault: TranslationTableError,
		TranslationTableFormatFault:  TranslationTableError,
		StreamTableFormatFault:       TranslationTableError,
		ConfigurationCacheFault:      CacheOperationFailed,
		AccessFault:                  InternalError,
		AccessFlagFault:              InternalError,
		DirtyBitFault:                InternalError,
		TLBConflictFault:             InternalError,
		ExternalAbort:                InternalError,
		SynchronousExternalAbort:     InternalError,
		AsynchronousExternalAbort:    InternalError,
	}

	for fault, want := range cases {
		assert.Equalf(t, want, FaultToError(fault), "fault %v", fault)
	}

	// Unknown fault values must still resolve deterministically.
	assert.Equal(t, InternalError, FaultToError(FaultType(9999)))
}

func TestSMMUErrorMessages(t *testing.T) {
	assert.Equal(t, "page not mapped", PageNotMapped.Error())
	assert.Equal(t, "unknown smmu error", SMMUError(9999).Error())
}

func TestAddressRange(t *testing.T) {
	r := AddressRange{StartAddress: 0x1000, EndAddress: 0x1FFF}

	assert.Equal(t, uint64(0x1000), r.Size())
	assert.True(t, r.Contains(0x1500))
	assert.False(t, r.Contains(0x2000))

	other := AddressRange{StartAddress: 0x1F00, EndAddress: 0x2FFF}
	assert.True(t, r.Overlaps(other))

	disjoint := AddressRange{StartAddress: 0x3000, EndAddress: 0x3FFF}
	assert.False(t, r.Overlaps(disjoint))
}

func TestPermissionsAllows(t *testing.T) {
	ro := Permissions{Read: true}

	assert.True(t, ro.Allows(Read))
	assert.False(t, ro.Allows(Write))
	assert.False(t, ro.Allows(Execute))
	assert.True(t, Permissions{}.Empty())
	assert.False(t, ro.Empty())
}
