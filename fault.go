// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package smmu

// FaultType is the ARM SMMU v3 IOMMU fault taxonomy. It is preserved at
// fault-family granularity so callers that need the precise hardware
// semantics (e.g. a fault-record journal, excluded from this core) can
// still distinguish level-0 from level-3 translation faults, while the
// core itself projects FaultType onto the coarser SMMUError surface.
type FaultType int

const (
	TranslationFault FaultType = iota
	PermissionFault
	AddressSizeFault
	AccessFault
	SecurityFault

	ContextDescriptorFormatFault
	TranslationTableFormatFault
	Level0TranslationFault
	Level1TranslationFault
	Level2TranslationFault
	Level3TranslationFault
	AccessFlagFault
	DirtyBitFault
	TLBConflictFault
	ExternalAbort
	SynchronousExternalAbort
	AsynchronousExternalAbort
	StreamTableFormatFault
	ConfigurationCacheFault

	Stage2TranslationFault
	Stage2PermissionFault
)

// FaultToError projects a FaultType onto its SMMUError. The mapping is
// total: every FaultType value, including unrecognized ones, resolves
// to a defined SMMUError.
func FaultToError(f FaultType) SMMUError {
	switch f {
	case TranslationFault,
		Level0TranslationFault,
		Level1TranslationFault,
		Level2TranslationFault,
		Level3TranslationFault,
		Stage2TranslationFault:
		return PageNotMapped

	case PermissionFault,
		Stage2PermissionFault:
		return PagePermissionViolation

	case AddressSizeFault:
		return InvalidAddress

	case SecurityFault:
		return InvalidSecurityState

	case ContextDescriptorFormatFault,
		TranslationTableFormatFault,
		StreamTableFormatFault:
		return TranslationTableError

	case ConfigurationCacheFault:
		return CacheOperationFailed

	case AccessFault,
		AccessFlagFault,
		DirtyBitFault,
		TLBConflictFault,
		ExternalAbort,
		SynchronousExternalAbort,
		AsynchronousExternalAbort:
		return InternalError

	default:
		return InternalError
	}
}
