// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package tlb implements the shared, thread-safe, bounded LRU
// translation cache keyed by (StreamID, PASID, IOVA page, SecurityState).
//
// A single exclusive lock serializes every mutating operation and the
// cache-internal bookkeeping of lookups (LRU promotion counts as a
// mutation of list order). Hit/miss counters are separate atomic
// counters so counter reads never contend with the cache lock; only
// the size and capacity in a statistics snapshot are read under it.
package tlb

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/usbarmory/smmu"
)

// TLBEntry is a cached translation. Created by Insert, refreshed by
// Insert on the same key or by a lookup hit (LRU touch), and destroyed
// by Invalidate*, eviction, or Clear. The cache exclusively owns live
// entries; LookupEntry returns copies.
type TLBEntry struct {
	StreamID      smmu.StreamID
	PASID         smmu.PASID
	IOVA          smmu.IOVA // page-base, not the full faulting address
	PA            smmu.PA
	Permissions   smmu.Permissions
	SecurityState smmu.SecurityState
	Valid         bool
	Timestamp     uint64
}

// cacheKey is the primary index key. It combines exactly the fields
// spec §4.3's hash contract names: StreamID, PASID, the IOVA page
// number, and SecurityState. Go's native comparable-struct map hashing
// already distributes this key well, so cacheKey serves directly as
// the hashicorp/golang-lru primary store's key type; the hash method
// in hash.go reproduces the original FNV-1a-based mixing and is pinned
// by a test, not used by any lookup.
type cacheKey struct {
	streamID smmu.StreamID
	pasid    smmu.PASID
	page     uint64
	security smmu.SecurityState
}

func makeKey(streamID smmu.StreamID, pasid smmu.PASID, iova smmu.IOVA, sec smmu.SecurityState) cacheKey {
	return cacheKey{streamID: streamID, pasid: pasid, page: smmu.PageNumber(uint64(iova)), security: sec}
}

// streamPASIDKey is the selector type for the (StreamID, PASID)
// secondary index, mirroring the original's StreamPASIDKey.
type streamPASIDKey struct {
	streamID smmu.StreamID
	pasid    smmu.PASID
}

type keySet map[cacheKey]struct{}

// Clock produces monotonically nondecreasing ticks used to stamp
// TLBEntry.Timestamp. The external dispatcher may supply a real tick
// source; MonotonicClock is a self-contained default.
type Clock interface {
	Now() uint64
}

// MonotonicClock is a Clock backed by an atomic counter, guaranteeing
// strictly increasing ticks without depending on wall-clock resolution.
type MonotonicClock struct {
	counter atomic.Uint64
}

// Now returns the next tick.
func (c *MonotonicClock) Now() uint64 {
	return c.counter.Add(1)
}

// Cache is the bounded LRU translation cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu sync.Mutex

	store   *lru.Cache[cacheKey, *TLBEntry]
	maxSize int

	byStream        map[smmu.StreamID]keySet
	byStreamPasid   map[streamPASIDKey]keySet
	bySecurityState map[smmu.SecurityState]keySet

	hits   atomic.Uint64
	misses atomic.Uint64

	clock  Clock
	logger *logrus.Logger
}

// New returns a Cache with the given capacity. maxSize must be positive.
func New(maxSize int) (*Cache, error) {
	c := &Cache{
		maxSize:         maxSize,
		byStream:        make(map[smmu.StreamID]keySet),
		byStreamPasid:   make(map[streamPASIDKey]keySet),
		bySecurityState: make(map[smmu.SecurityState]keySet),
		clock:           &MonotonicClock{},
	}

	store, err := lru.NewWithEvict(maxSize, func(key cacheKey, _ *TLBEntry) {
		c.removeIndexLocked(key)
		c.logEvict(key)
	})
	if err != nil {
		return nil, err
	}

	c.store = store

	return c, nil
}

// SetLogger attaches a logrus logger used for Debug-level eviction and
// invalidation tracing. A nil logger (the default) keeps the cache
// silent.
func (c *Cache) SetLogger(logger *logrus.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger = logger
}

// SetClock overrides the tick source used to stamp TLBEntry.Timestamp.
func (c *Cache) SetClock(clock Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock = clock
}

func (c *Cache) logEvict(key cacheKey) {
	if c.logger == nil {
		return
	}

	c.logger.WithFields(logrus.Fields{
		"stream_id": key.streamID,
		"pasid":     key.pasid,
		"page":      key.page,
		"security":  key.security,
	}).Debug("tlb: evicted entry")
}

// LookupEntry resolves (streamID, pasid, iova, securityState) against
// the cache. A hit promotes the entry to most-recently-used and
// returns a copy; a miss, or an out-of-range streamID/pasid, counts a
// miss and returns the corresponding error.
func (c *Cache) LookupEntry(streamID smmu.StreamID, pasid smmu.PASID, iova smmu.IOVA, securityState smmu.SecurityState) smmu.Result[TLBEntry] {
	if uint64(streamID) > smmu.MaxStreamID {
		c.misses.Add(1)
		return smmu.Err[TLBEntry](smmu.InvalidStreamID)
	}
	if uint64(pasid) > smmu.MaxPASID {
		c.misses.Add(1)
		return smmu.Err[TLBEntry](smmu.InvalidPASID)
	}

	key := makeKey(streamID, pasid, iova, securityState)

	c.mu.Lock()
	entry, ok := c.store.Get(key)
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return smmu.Err[TLBEntry](smmu.CacheEntryNotFound)
	}

	c.hits.Add(1)

	return smmu.Ok(*entry)
}

// Insert adds or refreshes entry. If its key is already present the
// stored value is updated in place and moved to MRU; otherwise, if the
// cache is at capacity, the LRU entry is evicted (cleaning every
// index) before the new entry is pushed at the MRU end.
func (c *Cache) Insert(entry TLBEntry) {
	entry.IOVA = smmu.IOVA(smmu.PageAlign(uint64(entry.IOVA)))
	key := makeKey(entry.StreamID, entry.PASID, entry.IOVA, entry.SecurityState)
	c.insertAt(key, entry)
}

// InsertFor is the (streamID, pasid, entry) insertion form: the caller
// supplies the routing key separately from the cached value, mirroring
// the original TLBCache::insert(StreamID, PASID, const CacheEntry&)
// overload. The stored TLBEntry's StreamID/PASID fields are set from
// the explicit arguments regardless of what entry carried.
func (c *Cache) InsertFor(streamID smmu.StreamID, pasid smmu.PASID, entry TLBEntry) {
	entry.StreamID = streamID
	entry.PASID = pasid
	c.Insert(entry)
}

func (c *Cache) insertAt(key cacheKey, entry TLBEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.Valid = true
	if entry.Timestamp == 0 {
		entry.Timestamp = c.clock.Now()
	}

	if _, ok := c.store.Peek(key); ok {
		c.store.Add(key, &entry)
		return
	}

	c.store.Add(key, &entry)
	c.addIndexLocked(key)
}

func (c *Cache) addIndexLocked(key cacheKey) {
	addToSet(c.byStream, key.streamID, key)
	addToSet(c.byStreamPasid, streamPASIDKey{key.streamID, key.pasid}, key)
	addToSet(c.bySecurityState, key.security, key)
}

func (c *Cache) removeIndexLocked(key cacheKey) {
	removeFromSet(c.byStream, key.streamID, key)
	removeFromSet(c.byStreamPasid, streamPASIDKey{key.streamID, key.pasid}, key)
	removeFromSet(c.bySecurityState, key.security, key)
}

func addToSet[K comparable](m map[K]keySet, k K, entry cacheKey) {
	s, ok := m[k]
	if !ok {
		s = make(keySet)
		m[k] = s
	}
	s[entry] = struct{}{}
}

func removeFromSet[K comparable](m map[K]keySet, k K, entry cacheKey) {
	s, ok := m[k]
	if !ok {
		return
	}

	delete(s, entry)
	if len(s) == 0 {
		delete(m, k)
	}
}

// Remove erases exactly the matching entry, if present. The onEvict
// callback registered in New fires on this explicit removal just as it
// does on capacity-driven eviction, so it alone cleans every index.
func (c *Cache) Remove(streamID smmu.StreamID, pasid smmu.PASID, iova smmu.IOVA, securityState smmu.SecurityState) {
	key := makeKey(streamID, pasid, iova, securityState)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Remove(key)
}

// Invalidate is the single-key equivalent of Remove.
func (c *Cache) Invalidate(streamID smmu.StreamID, pasid smmu.PASID, iova smmu.IOVA, securityState smmu.SecurityState) {
	c.Remove(streamID, pasid, iova, securityState)
}

// InvalidateStream erases every entry belonging to streamID. Cost is
// proportional to the number of matching entries: the byStream index
// is consulted once to collect the matching keys, which are then
// erased from the primary store and every secondary index.
func (c *Cache) InvalidateStream(streamID smmu.StreamID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateKeysLocked(c.byStream[streamID])
}

// InvalidateByStream is an alias for InvalidateStream.
func (c *Cache) InvalidateByStream(streamID smmu.StreamID) {
	c.InvalidateStream(streamID)
}

// InvalidatePASID erases every entry belonging to (streamID, pasid).
func (c *Cache) InvalidatePASID(streamID smmu.StreamID, pasid smmu.PASID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateKeysLocked(c.byStreamPasid[streamPASIDKey{streamID, pasid}])
}

// InvalidateByPASID is an alias for InvalidatePASID.
func (c *Cache) InvalidateByPASID(streamID smmu.StreamID, pasid smmu.PASID) {
	c.InvalidatePASID(streamID, pasid)
}

// InvalidateBySecurityState erases every entry with the given security
// state.
func (c *Cache) InvalidateBySecurityState(securityState smmu.SecurityState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateKeysLocked(c.bySecurityState[securityState])
}

// invalidateKeysLocked implements the collect-then-erase pattern: the
// caller has already collected the matching selector's key set; copy
// it (deleting from a map while ranging it is unsafe) then erase each
// key from the primary store. The onEvict callback cleans all three
// secondary indices as each key is removed.
func (c *Cache) invalidateKeysLocked(matched keySet) {
	keys := make([]cacheKey, 0, len(matched))
	for k := range matched {
		keys = append(keys, k)
	}

	for _, k := range keys {
		c.store.Remove(k)
	}
}

// InvalidateAll drops every entry and every index. Hit/miss counters
// are preserved.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Purge()
	c.byStream = make(map[smmu.StreamID]keySet)
	c.byStreamPasid = make(map[streamPASIDKey]keySet)
	c.bySecurityState = make(map[smmu.SecurityState]keySet)
}

// Clear is an alias for InvalidateAll.
func (c *Cache) Clear() {
	c.InvalidateAll()
}

// Reset clears the cache and zeros the hit/miss counters.
func (c *Cache) Reset() {
	c.InvalidateAll()
	c.hits.Store(0)
	c.misses.Store(0)
}

// SetMaxSize updates the cache's capacity, evicting LRU entries
// repeatedly (cleaning every index for each) until size == n.
func (c *Cache) SetMaxSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxSize = n
	c.store.Resize(n)
}

// Statistics is a point-in-time, internally consistent snapshot of the
// cache's counters and occupancy.
type Statistics struct {
	Hits    uint64
	Misses  uint64
	Total   uint64
	HitRate float64
	Size    int
	MaxSize int
}

// GetAtomicStatistics returns a snapshot in which Hits and Misses are
// mutually consistent: the counters are re-read in a loop until two
// consecutive reads agree, so a concurrent mutation never straddles
// the pair.
func (c *Cache) GetAtomicStatistics() Statistics {
	var hits, misses uint64

	for {
		h1, m1 := c.hits.Load(), c.misses.Load()
		h2, m2 := c.hits.Load(), c.misses.Load()

		if h1 == h2 && m1 == m2 {
			hits, misses = h1, m1
			break
		}
	}

	c.mu.Lock()
	size := c.store.Len()
	maxSize := c.maxSize
	c.mu.Unlock()

	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Statistics{
		Hits:    hits,
		Misses:  misses,
		Total:   total,
		HitRate: hitRate,
		Size:    size,
		MaxSize: maxSize,
	}
}
