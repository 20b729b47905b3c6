// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package addrspace implements the authoritative per-PASID sparse page
// table: mapping, unmapping, and single-stage translation with
// permission and security-state enforcement.
//
// All mutations and queries operate at 4 KiB granularity. The table is
// keyed internally by page number (iova >> 12) and backed by a slab
// arena (internal/slab) so that entries have a stable handle for the
// lifetime of their mapping.
package addrspace

import (
	"sort"
	"sync"

	"github.com/usbarmory/smmu"
	"github.com/usbarmory/smmu/internal/permbits"
	"github.com/usbarmory/smmu/internal/slab"
)

// PageEntry is the authoritative record for a single mapped page.
// Created by Map*, whole-entry replaced by a remap at the same page,
// and destroyed by Unmap*/Clear. Permissions are stored packed
// (internal/permbits) rather than as the wider smmu.Permissions
// struct; packPerms/unpackPerms convert at the package boundary.
type PageEntry struct {
	PA            smmu.PA
	Permissions   uint8
	SecurityState smmu.SecurityState
	Valid         bool
}

func packPerms(p smmu.Permissions) uint8 {
	return permbits.Pack(p.Read, p.Write, p.Execute)
}

func unpackPerms(mask uint8) smmu.Permissions {
	read, write, execute := permbits.Unpack(mask)
	return smmu.Permissions{Read: read, Write: write, Execute: execute}
}

// permAllows reports whether the packed permission mask grants
// accessType, mirroring smmu.Permissions.Allows for the packed form.
func permAllows(mask uint8, a smmu.AccessType) bool {
	switch a {
	case smmu.Read:
		return permbits.Get(mask, permbits.ReadBit)
	case smmu.Write:
		return permbits.Get(mask, permbits.WriteBit)
	case smmu.Execute:
		return permbits.Get(mask, permbits.ExecuteBit)
	default:
		return false
	}
}

// AddressSpace is the sparse per-PASID page table. The zero value is
// not usable; construct with New.
//
// An AddressSpace is single-owner per PASID (spec §5): the external
// dispatcher decides what synchronization discipline, if any, wraps
// calls into a given instance. The embedded mutex only protects the
// map/arena pair's own invariant (every mapped page number resolves to
// exactly one occupied slab handle) against concurrent misuse; it is
// not a substitute for a considered ownership model.
type AddressSpace struct {
	mu    sync.Mutex
	pages map[uint64]slab.Handle
	arena *slab.Arena[PageEntry]
}

// New returns an empty AddressSpace.
func New() *AddressSpace {
	return &AddressSpace{
		pages: make(map[uint64]slab.Handle),
		arena: slab.New[PageEntry](),
	}
}

func validAddress(addr uint64) bool {
	return addr <= smmu.MaxAddress
}

// MapPage inserts or overwrites the mapping for the page containing
// iova. pa is aligned down to the page boundary before storage.
// Overwrite of an existing mapping is not reported as an error — it is
// the defined whole-entry-replacement semantics for remap (spec §9).
func (as *AddressSpace) MapPage(iova smmu.IOVA, pa smmu.PA, perms smmu.Permissions, securityState smmu.SecurityState) smmu.VoidResult {
	if !validAddress(uint64(iova)) || !validAddress(uint64(pa)) {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}
	if perms.Empty() {
		return smmu.ErrVoid(smmu.InvalidPermissions)
	}
	if !smmu.ValidSecurityState(securityState) {
		return smmu.ErrVoid(smmu.InvalidSecurityState)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	as.storeLocked(smmu.PageNumber(uint64(iova)), PageEntry{
		PA:            smmu.PA(smmu.PageAlign(uint64(pa))),
		Permissions:   packPerms(perms),
		SecurityState: securityState,
		Valid:         true,
	})

	return smmu.OkVoid()
}

// storeLocked inserts or overwrites the entry at pageNum. Caller holds
// as.mu.
func (as *AddressSpace) storeLocked(pageNum uint64, entry PageEntry) {
	if h, ok := as.pages[pageNum]; ok {
		as.arena.Set(h, entry)
		return
	}

	as.pages[pageNum] = as.arena.Alloc(entry)
}

// removeLocked erases the entry at pageNum, if any. Caller holds as.mu.
// Reports whether an entry was present.
func (as *AddressSpace) removeLocked(pageNum uint64) bool {
	h, ok := as.pages[pageNum]
	if !ok {
		return false
	}

	as.arena.Free(h)
	delete(as.pages, pageNum)

	return true
}

// UnmapPage removes the mapping for the page containing iova.
func (as *AddressSpace) UnmapPage(iova smmu.IOVA) smmu.VoidResult {
	if !validAddress(uint64(iova)) {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.removeLocked(smmu.PageNumber(uint64(iova))) {
		return smmu.ErrVoid(smmu.PageNotMapped)
	}

	return smmu.OkVoid()
}

// MapRange writes consecutive page entries covering the closed range
// [startIova, endIova], with physical addresses incrementing by
// PageSize per page starting at startPa. Existing mappings in the
// range are overwritten.
func (as *AddressSpace) MapRange(startIova, endIova smmu.IOVA, startPa smmu.PA, perms smmu.Permissions) smmu.VoidResult {
	if endIova < startIova {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}
	if !validAddress(uint64(startIova)) || !validAddress(uint64(endIova)) || !validAddress(uint64(startPa)) {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}
	if perms.Empty() {
		return smmu.ErrVoid(smmu.InvalidPermissions)
	}

	length := uint64(endIova-startIova) + 1

	alignedPa := smmu.PageAlign(uint64(startPa))
	if alignedPa+length-1 < alignedPa {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}
	if !validAddress(alignedPa + length - 1) {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}

	alignedIova := smmu.PageAlign(uint64(startIova))
	startPage := smmu.PageNumber(alignedIova)
	endPage := smmu.PageNumber(uint64(endIova))

	as.mu.Lock()
	defer as.mu.Unlock()

	pa := alignedPa
	for page := startPage; page <= endPage; page++ {
		as.storeLocked(page, PageEntry{
			PA:            smmu.PA(pa),
			Permissions:   packPerms(perms),
			SecurityState: smmu.NonSecure,
			Valid:         true,
		})
		pa += smmu.PageSize
	}

	return smmu.OkVoid()
}

// UnmapRange erases every mapped page in the closed range
// [startIova, endIova]; absent pages are skipped silently. Returns
// PageNotMapped only if no page in the range was mapped.
func (as *AddressSpace) UnmapRange(startIova, endIova smmu.IOVA) smmu.VoidResult {
	if endIova < startIova {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}
	if !validAddress(uint64(startIova)) || !validAddress(uint64(endIova)) {
		return smmu.ErrVoid(smmu.InvalidAddress)
	}

	startPage := smmu.PageNumber(uint64(startIova))
	endPage := smmu.PageNumber(uint64(endIova))

	as.mu.Lock()
	defer as.mu.Unlock()

	removedAny := false
	for page := startPage; page <= endPage; page++ {
		if as.removeLocked(page) {
			removedAny = true
		}
	}

	if !removedAny {
		return smmu.ErrVoid(smmu.PageNotMapped)
	}

	return smmu.OkVoid()
}

// Mapping is a single (IOVA, PA) pair for MapPages.
type Mapping struct {
	IOVA smmu.IOVA
	PA   smmu.PA
}

// MapPages validates every mapping before applying any of them
// (validate-then-apply): if any element is invalid the whole batch is
// rejected and no mutation is observable.
func (as *AddressSpace) MapPages(mappings []Mapping, perms smmu.Permissions) smmu.VoidResult {
	if perms.Empty() {
		return smmu.ErrVoid(smmu.InvalidPermissions)
	}

	for _, m := range mappings {
		if !validAddress(uint64(m.IOVA)) || !validAddress(uint64(m.PA)) {
			return smmu.ErrVoid(smmu.InvalidAddress)
		}
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	for _, m := range mappings {
		as.storeLocked(smmu.PageNumber(uint64(m.IOVA)), PageEntry{
			PA:            smmu.PA(smmu.PageAlign(uint64(m.PA))),
			Permissions:   packPerms(perms),
			SecurityState: smmu.NonSecure,
			Valid:         true,
		})
	}

	return smmu.OkVoid()
}

// UnmapPages validates every IOVA before applying any removal. Returns
// PageNotMapped if not a single listed page is currently mapped.
func (as *AddressSpace) UnmapPages(iovas []smmu.IOVA) smmu.VoidResult {
	for _, iova := range iovas {
		if !validAddress(uint64(iova)) {
			return smmu.ErrVoid(smmu.InvalidAddress)
		}
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	removedAny := false
	for _, iova := range iovas {
		if as.removeLocked(smmu.PageNumber(uint64(iova))) {
			removedAny = true
		}
	}

	if !removedAny {
		return smmu.ErrVoid(smmu.PageNotMapped)
	}

	return smmu.OkVoid()
}

// TranslatePage resolves iova to a physical address, checking that
// accessType is granted by the mapped page's permissions and that
// securityState agrees with the stored entry's. A security-state
// mismatch fails with InvalidSecurityState (SecurityFault) even when
// the page is otherwise mapped and permitted — it is never reported as
// PageNotMapped or PagePermissionViolation.
func (as *AddressSpace) TranslatePage(iova smmu.IOVA, accessType smmu.AccessType, securityState smmu.SecurityState) smmu.TranslationResult {
	if !validAddress(uint64(iova)) {
		return smmu.ErrTranslation(smmu.InvalidAddress)
	}

	as.mu.Lock()
	entry, ok := as.lookupLocked(smmu.PageNumber(uint64(iova)))
	as.mu.Unlock()

	if !ok || !entry.Valid {
		return smmu.ErrTranslationFault(smmu.TranslationFault)
	}
	if entry.SecurityState != securityState {
		return smmu.ErrTranslationFault(smmu.SecurityFault)
	}
	if !permAllows(entry.Permissions, accessType) {
		return smmu.ErrTranslationFault(smmu.PermissionFault)
	}

	pa := uint64(entry.PA) + (uint64(iova) & smmu.PageMask)

	return smmu.OkTranslation(smmu.PA(pa), unpackPerms(entry.Permissions), entry.SecurityState)
}

func (as *AddressSpace) lookupLocked(pageNum uint64) (PageEntry, bool) {
	h, ok := as.pages[pageNum]
	if !ok {
		return PageEntry{}, false
	}

	return as.arena.Get(h)
}

// IsPageMapped reports whether the page containing iova currently has
// a valid entry.
func (as *AddressSpace) IsPageMapped(iova smmu.IOVA) smmu.Result[bool] {
	if !validAddress(uint64(iova)) {
		return smmu.Err[bool](smmu.InvalidAddress)
	}

	as.mu.Lock()
	entry, ok := as.lookupLocked(smmu.PageNumber(uint64(iova)))
	as.mu.Unlock()

	return smmu.Ok(ok && entry.Valid)
}

// GetPagePermissions returns the permissions of the mapped page
// containing iova, or PageNotMapped if it has no valid entry.
func (as *AddressSpace) GetPagePermissions(iova smmu.IOVA) smmu.Result[smmu.Permissions] {
	if !validAddress(uint64(iova)) {
		return smmu.Err[smmu.Permissions](smmu.InvalidAddress)
	}

	as.mu.Lock()
	entry, ok := as.lookupLocked(smmu.PageNumber(uint64(iova)))
	as.mu.Unlock()

	if !ok || !entry.Valid {
		return smmu.Err[smmu.Permissions](smmu.PageNotMapped)
	}

	return smmu.Ok(unpackPerms(entry.Permissions))
}

// GetPageCount returns the number of currently mapped pages.
func (as *AddressSpace) GetPageCount() smmu.Result[int] {
	as.mu.Lock()
	defer as.mu.Unlock()

	return smmu.Ok(len(as.pages))
}

// GetMappedRanges returns the set of mapped page addresses fused into
// pairwise-non-overlapping, page-aligned, strictly-ascending closed
// ranges.
func (as *AddressSpace) GetMappedRanges() []smmu.AddressRange {
	as.mu.Lock()
	pageNums := make([]uint64, 0, len(as.pages))
	for p := range as.pages {
		pageNums = append(pageNums, p)
	}
	as.mu.Unlock()

	sort.Slice(pageNums, func(i, j int) bool { return pageNums[i] < pageNums[j] })

	var ranges []smmu.AddressRange

	i := 0
	for i < len(pageNums) {
		start := pageNums[i]
		end := start

		j := i + 1
		for j < len(pageNums) && pageNums[j] == end+1 {
			end = pageNums[j]
			j++
		}

		ranges = append(ranges, smmu.AddressRange{
			StartAddress: smmu.IOVA(start * smmu.PageSize),
			EndAddress:   smmu.IOVA(end*smmu.PageSize + smmu.PageSize - 1),
		})

		i = j
	}

	return ranges
}

// GetAddressSpaceSize returns the span covered by the lowest- through
// highest-numbered mapped page, or 0 if no page is mapped.
func (as *AddressSpace) GetAddressSpaceSize() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()

	if len(as.pages) == 0 {
		return 0
	}

	min, max := ^uint64(0), uint64(0)
	for p := range as.pages {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	minAddr := min * smmu.PageSize
	maxEnd := max*smmu.PageSize + smmu.PageSize - 1

	return maxEnd - minAddr + 1
}

// HasOverlappingMappings reports whether any page in the closed range
// [startIova, endIova] is currently mapped.
func (as *AddressSpace) HasOverlappingMappings(startIova, endIova smmu.IOVA) bool {
	if endIova < startIova {
		return false
	}

	startPage := smmu.PageNumber(uint64(startIova))
	endPage := smmu.PageNumber(uint64(endIova))

	as.mu.Lock()
	defer as.mu.Unlock()

	for page := startPage; page <= endPage; page++ {
		if h, ok := as.pages[page]; ok {
			if e, ok := as.arena.Get(h); ok && e.Valid {
				return true
			}
		}
	}

	return false
}

// Clear removes every mapping.
func (as *AddressSpace) Clear() smmu.VoidResult {
	as.mu.Lock()
	defer as.mu.Unlock()

	as.pages = make(map[uint64]slab.Handle)
	as.arena.Reset()

	return smmu.OkVoid()
}

// Clone returns a deep copy of the address space: every page entry is
// duplicated into a fresh arena so that mutating either copy never
// affects the other. Go has no implicit copy constructor; this is the
// explicit equivalent of the original AddressSpace(const AddressSpace&)
// semantics.
func (as *AddressSpace) Clone() *AddressSpace {
	as.mu.Lock()
	defer as.mu.Unlock()

	clone := New()
	for pageNum, h := range as.pages {
		if entry, ok := as.arena.Get(h); ok {
			clone.storeLocked(pageNum, entry)
		}
	}

	return clone
}

// InvalidateCache, InvalidatePage, InvalidateRange, and InvalidateAll
// are observer hooks, not authoritative cache operations (spec §9 note
// 3). The AddressSpace never holds a TLB reference; an external
// dispatcher that does may override/wrap these in its own directory
// type to propagate invalidation. As defined here they are no-ops.
func (as *AddressSpace) InvalidateCache()                             {}
func (as *AddressSpace) InvalidatePage(iova smmu.IOVA)                {}
func (as *AddressSpace) InvalidateRange(startIova, endIova smmu.IOVA) {}
func (as *AddressSpace) InvalidateAll()                               {}
