// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package smmu

// Result carries exactly one of a success value or an SMMUError. It
// never represents both at once: a function returning Result[T] must
// never both succeed with a value and report a fault.
//
// Callers must probe IsOk/IsErr before reading the payload; Value on
// an error Result returns T's zero value, which is a programmer error
// to rely on, not a data leak.
type Result[T any] struct {
	ok    bool
	err   SMMUError
	value T
}

// Ok constructs a successful Result carrying value.
func Ok[T any](value T) Result[T] {
	return Result[T]{ok: true, value: value}
}

// Err constructs a failed Result carrying err. The zero value of T is
// stored as the (unobservable through normal use) payload.
func Err[T any](err SMMUError) Result[T] {
	return Result[T]{ok: false, err: err}
}

// IsOk reports whether the Result holds a success value.
func (r Result[T]) IsOk() bool {
	return r.ok
}

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool {
	return !r.ok
}

// Value returns the success payload. Callers must check IsOk first;
// calling on an error Result returns T's zero value.
func (r Result[T]) Value() T {
	return r.value
}

// Error returns the error code. Only meaningful when IsErr is true.
func (r Result[T]) Error() SMMUError {
	return r.err
}

// ValueOr returns the success payload, or def if the Result is an
// error.
func (r Result[T]) ValueOr(def T) T {
	if r.ok {
		return r.value
	}
	return def
}

// unit is the payload type of VoidResult.
type unit struct{}

// VoidResult is Result[T] specialized to a unit-valued success, used by
// operations that either succeed with no payload or fail with an
// SMMUError.
type VoidResult = Result[unit]

// OkVoid constructs a successful VoidResult.
func OkVoid() VoidResult {
	return Ok(unit{})
}

// ErrVoid constructs a failed VoidResult carrying err.
func ErrVoid(err SMMUError) VoidResult {
	return Err[unit](err)
}

// TranslationResult is the outcome of AddressSpace.TranslatePage.
type TranslationResult = Result[TranslationData]

// OkTranslation constructs a successful TranslationResult.
func OkTranslation(pa PA, perms Permissions, sec SecurityState) TranslationResult {
	return Ok(TranslationData{PhysicalAddress: pa, Permissions: perms, SecurityState: sec})
}

// ErrTranslation constructs a failed TranslationResult from an
// SMMUError directly.
func ErrTranslation(err SMMUError) TranslationResult {
	return Err[TranslationData](err)
}

// ErrTranslationFault constructs a failed TranslationResult by
// projecting an IOMMU FaultType through FaultToError.
func ErrTranslationFault(f FaultType) TranslationResult {
	return Err[TranslationData](FaultToError(f))
}
