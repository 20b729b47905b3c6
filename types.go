// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package smmu

// StreamID identifies a requester (a DMA master).
type StreamID uint32

// PASID (Process Address Space Identifier) selects an address space
// within a stream. The carrier is 32 bits wide but only the low 20 bits
// are architecturally valid (MaxPASID).
type PASID uint32

// IOVA is an Input/Output Virtual Address, the address a DMA-capable
// requester presents for translation.
type IOVA uint64

// IPA is an Intermediate Physical Address, the stage-1 output / stage-2
// input address.
type IPA uint64

// PA is a Physical Address, the final translation result.
type PA uint64

const (
	// PageSize is the fixed translation granule.
	PageSize = 4096

	// PageMask isolates the in-page offset of an address.
	PageMask = PageSize - 1

	// MaxAddress is the ARMv3 52-bit PA/VA ceiling. Addresses above this
	// value are rejected at the API boundary.
	MaxAddress = (1 << 52) - 1

	// MaxStreamID is the largest representable StreamID.
	MaxStreamID = 0xFFFFFFFF

	// MaxPASID is the largest architecturally valid PASID (20-bit space).
	MaxPASID = 0xFFFFF
)

// PageNumber returns the 4 KiB page number an address falls within.
func PageNumber(addr uint64) uint64 {
	return addr >> 12
}

// PageAlign masks an address down to its containing page boundary.
func PageAlign(addr uint64) uint64 {
	return addr &^ PageMask
}

// AccessType classifies the kind of access a requester performs.
type AccessType int

const (
	Read AccessType = iota
	Write
	Execute
)

func (a AccessType) String() string {
	switch a {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Execute:
		return "Execute"
	default:
		return "Unknown"
	}
}

// SecurityState is the ARM security state a translation request or
// mapping is associated with.
type SecurityState int

const (
	NonSecure SecurityState = iota
	Secure
	Realm
)

func (s SecurityState) String() string {
	switch s {
	case NonSecure:
		return "NonSecure"
	case Secure:
		return "Secure"
	case Realm:
		return "Realm"
	default:
		return "Unknown"
	}
}

// ValidSecurityState reports whether s is one of the defined security
// states.
func ValidSecurityState(s SecurityState) bool {
	switch s {
	case NonSecure, Secure, Realm:
		return true
	default:
		return false
	}
}

// Permissions is the set of access types a mapped page allows.
type Permissions struct {
	Read    bool
	Write   bool
	Execute bool
}

// Empty reports whether no access bit is set, the condition
// mapPage/mapRange/mapPages reject with InvalidPermissions.
func (p Permissions) Empty() bool {
	return !p.Read && !p.Write && !p.Execute
}

// Allows reports whether the permission set grants the given access
// type. Any access type outside {Read, Write, Execute} is denied.
func (p Permissions) Allows(a AccessType) bool {
	switch a {
	case Read:
		return p.Read
	case Write:
		return p.Write
	case Execute:
		return p.Execute
	default:
		return false
	}
}

// AddressRange is an inclusive [StartAddress, EndAddress] span of IOVA
// space, as returned by AddressSpace.GetMappedRanges.
type AddressRange struct {
	StartAddress IOVA
	EndAddress   IOVA
}

// Size returns the number of addresses covered by the range, or 0 if
// the range is empty or inverted.
func (r AddressRange) Size() uint64 {
	if r.EndAddress < r.StartAddress {
		return 0
	}
	return uint64(r.EndAddress-r.StartAddress) + 1
}

// Contains reports whether address falls within the closed range.
func (r AddressRange) Contains(address IOVA) bool {
	return address >= r.StartAddress && address <= r.EndAddress
}

// Overlaps reports whether r and other share at least one address.
func (r AddressRange) Overlaps(other AddressRange) bool {
	return !(r.EndAddress < other.StartAddress || r.StartAddress > other.EndAddress)
}

// TranslationData is the success payload of a translatePage call.
type TranslationData struct {
	PhysicalAddress PA
	Permissions     Permissions
	SecurityState   SecurityState
}
