// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package smmu

// SMMUError is the uniform error kind carried by Result values at the
// core's API boundary. It is the subset of the ARM SMMU v3 error
// taxonomy the translation core itself can raise; stream/PASID
// directory, queue, and fault-journaling errors belong to the excluded
// peripheral layers (see spec §1) and are not modeled here.
type SMMUError int

const (
	// InvalidAddress: an IOVA or PA exceeds MaxAddress, or a range is
	// inverted/overflowing.
	InvalidAddress SMMUError = iota

	// InvalidPermissions: a map call was given an empty permission set.
	InvalidPermissions

	// InvalidSecurityState: an unrecognized SecurityState was supplied,
	// or a translation's SecurityState disagreed with the stored entry's.
	InvalidSecurityState

	// InvalidStreamID: a StreamID exceeds MaxStreamID.
	InvalidStreamID

	// InvalidPASID: a PASID exceeds MaxPASID.
	InvalidPASID

	// PageNotMapped: the target page has no valid entry.
	PageNotMapped

	// PageAlreadyMapped: reserved for a future strict-map variant; the
	// core's mapPage never raises it (remap is overwrite, see spec §9).
	PageAlreadyMapped

	// PagePermissionViolation: the requested access type is not granted
	// by the mapped page's permissions.
	PagePermissionViolation

	// CacheEntryNotFound: no TLB entry exists for the requested key.
	CacheEntryNotFound

	// TranslationTableError: a table/format-class fault projected here.
	TranslationTableError

	// CacheOperationFailed: a configuration-cache-class fault projected
	// here.
	CacheOperationFailed

	// InternalError: catch-all for faults with no more specific
	// projection.
	InternalError
)

var errorNames = map[SMMUError]string{
	InvalidAddress:          "invalid address",
	InvalidPermissions:      "invalid permissions",
	InvalidSecurityState:    "invalid security state",
	InvalidStreamID:         "invalid stream id",
	InvalidPASID:            "invalid pasid",
	PageNotMapped:           "page not mapped",
	PageAlreadyMapped:       "page already mapped",
	PagePermissionViolation: "page permission violation",
	CacheEntryNotFound:      "cache entry not found",
	TranslationTableError:   "translation table error",
	CacheOperationFailed:    "cache operation failed",
	InternalError:           "internal error",
}

// Error implements the error interface so SMMUError can be used
// directly as a Go error, or wrapped with fmt.Errorf("%w", ...).
func (e SMMUError) Error() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "unknown smmu error"
}
