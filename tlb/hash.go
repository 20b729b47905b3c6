// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tlb

// FNV-1a 64-bit offset basis and prime, as used by the original cache
// key hash. Go's map implementation never consults this value for
// cacheKey's actual bucket placement (cacheKey is a plain comparable
// struct and hashes natively); hash exists so diagnostics and the
// original's key-distribution contract can be reproduced exactly.
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// hash combines streamID, pasid, the IOVA page number, and
// securityState with FNV-1a mixing, folding the page number's high and
// low halves in separately so a 64-bit page number contributes all of
// its bits. This mirrors the original cache key hash function field
// for field. No lookup path calls it; it is exercised by the package's
// own tests.
func (k cacheKey) hash() uint64 {
	h := uint64(fnvOffset64)

	h ^= uint64(k.streamID)
	h *= fnvPrime64

	h ^= uint64(k.pasid)
	h *= fnvPrime64

	h ^= k.page & 0xFFFFFFFF
	h *= fnvPrime64

	h ^= k.page >> 32
	h *= fnvPrime64

	h ^= uint64(k.security)
	h *= fnvPrime64

	return h
}
