// Copyright 2024 The Bytemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bytemap implements a hash map (and a hash set wrapper, see Set)
// for variable-length byte-slice keys and values. Collisions are resolved
// by separate chaining, with the chains threaded through a contiguous node
// arena by index rather than by pointer.
//
// # Layout
//
// All nodes live in a single growable array, the arena. A node is either
// live (it holds a key/value pair, the key's hash, and a link to the next
// node in its bucket chain) or free. Links are 1-based indices into the
// arena; 0 is the universal "none" value: the end of a bucket chain, an
// empty bucket, and the bottom of the freelist. Because links are indices
// and not addresses, growing the arena is a plain reallocation with no
// pointer fixup.
//
// The bucket table is a power-of-two array of 1-based chain heads indexed
// by hash&(len(buckets)-1). The arena capacity is kept at 3/4 of the
// bucket count (192 nodes to 256 buckets at minimum, both doubling in
// lockstep), which keeps the expected chain length below one.
//
// Removal does not compact the arena. A removed node's pair buffer is
// released (or detached, see Detach), its buffer reference is nilled to
// mark the slot free, and the slot is pushed onto an index-linked LIFO
// freelist layered inside the arena. Insertion pops the freelist before
// consuming a fresh slot. Every slot below the arena's high-water mark is
// on exactly one bucket chain or in exactly one freelist position.
//
// # Pair buffers
//
// Key and value are copied into one allocation, value first, then key.
// Each segment is sized to its 4-byte floored length plus 4 bytes, and the
// final 4 aligned bytes of each segment are zeroed before the data copy.
// Stored keys and values are therefore always followed by enough zero
// bytes to act as a string terminator for any character width up to 32
// bits, whatever the byte length of the data. The value segment's aligned
// capacity is recorded per node so that Update can rewrite a value in
// place whenever the new value fits, skipping the reallocation.
//
// # Sizing
//
// The arena and bucket table double when the arena is full and the table
// is rebuilt from the stored hashes (keys are not rehashed; only the
// bucket index changes). After a removal, if the map became empty the
// freelist and high-water mark are reset, and if occupancy dropped below
// 1/8 of capacity the map is compacted down to the smallest capacity step
// that holds the live entries. Compaction failure after a removal is
// deliberately ignored; shrinking is an optimization, not a correctness
// requirement.
//
// A Map is NOT goroutine-safe.
package bytemap

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"
)

const (
	// minNodeCap is the initial arena capacity: 3/4 of minBucketCount,
	// keeping chain lengths short.
	minNodeCap = 192
	// minBucketCount is the initial bucket count. Must be a power of two
	// because the hash is masked, never divided.
	minBucketCount = 256

	// maxBucketMask caps growth so that every 1-based node index stays
	// comfortably representable in 32 bits.
	maxBucketMask = math.MaxUint32 >> 2

	// maxLen is the largest accepted key or value length. Lengths are kept
	// below half the uint32 range so the combined-buffer arithmetic
	// (alignment rounding plus both segments) cannot overflow.
	maxLen = math.MaxUint32 >> 1
)

var (
	// ErrKeyExists is returned by Add when the key is already present.
	ErrKeyExists = errors.New("bytemap: key already exists")
	// ErrTooLarge is returned when a key or value length exceeds the
	// supported range. Nothing is allocated in that case.
	ErrTooLarge = errors.New("bytemap: key or value too large")
	// ErrAllocFailed is returned when the configured Allocator fails to
	// provide a pair buffer. The map is left in its prior valid state.
	ErrAllocFailed = errors.New("bytemap: pair allocation failed")
	// ErrCapacity is returned when the map cannot grow any further.
	ErrCapacity = errors.New("bytemap: capacity limit reached")
	// ErrValueSize is returned by Entry.SetValueInPlace when the
	// replacement value does not have the stored value's exact length.
	ErrValueSize = errors.New("bytemap: in-place value must keep its size")
)

// node is one arena slot. The slot is live iff buf is non-nil; that single
// marker separates removed nodes from live ones.
type node struct {
	// buf holds the value segment followed by the key segment. For
	// valueless pairs it holds only the key segment. nil marks the slot
	// free.
	buf  []byte
	hash uint64
	// keyOff is the offset of the key segment within buf. It is zero
	// exactly when the pair has no value (valCap+4 otherwise).
	keyOff uint32
	keyLen uint32
	valLen uint32
	// valCap is the 4-byte floored capacity of the value segment, used to
	// decide whether a new value can be written in place.
	valCap uint32
	// next links the following node of the bucket chain while the slot is
	// live, and the next free slot while it is on the freelist. 0
	// terminates either list.
	next uint32
}

func (n *node) key() []byte {
	return n.buf[n.keyOff : n.keyOff+n.keyLen]
}

// value returns the stored value bytes, or nil for a valueless pair.
func (n *node) value() []byte {
	if n.keyOff == 0 {
		return nil
	}
	return n.buf[:n.valLen]
}

// Map is an unordered map from byte-slice keys to byte-slice values.
// Adding copies both key and value; the map owns all stored pair buffers
// until they are removed, overwritten, or detached.
//
// A Map is NOT goroutine-safe.
type Map struct {
	hasher   Hasher
	comparer Comparer
	seed     uint64
	alloc    Allocator
	// nodes is the arena; len(nodes) is the capacity and is always
	// minNodeCap<<k for some k.
	nodes []node
	// buckets holds 1-based chain heads; len(buckets) is always
	// minBucketCount<<k for the same k as nodes.
	buckets    []uint32
	bucketMask uint32
	// used is the live node count.
	used uint32
	// highWater is the number of arena slots ever taken; it is also the
	// (0-based) index of the next fresh slot.
	highWater uint32
	// recycled is the 1-based top of the freelist, 0 when empty.
	recycled uint32
}

// New constructs an empty Map. The capacity starts at 192 entries, or at
// the smallest capacity step that holds initialCapacity if that is
// larger. New fails only when initialCapacity exceeds the largest
// representable capacity.
func New(initialCapacity int, opts ...Option) (*Map, error) {
	if initialCapacity < 0 {
		initialCapacity = 0
	}
	nodeCap := uint32(minNodeCap)
	bucketCount := uint32(minBucketCount)
	for uint64(nodeCap) < uint64(initialCapacity) {
		if bucketCount >= maxBucketMask {
			return nil, ErrCapacity
		}
		nodeCap <<= 1
		bucketCount <<= 1
	}

	m := &Map{
		hasher:     fnvHasher{},
		comparer:   rawComparer{},
		alloc:      defaultAllocator{},
		nodes:      make([]node, nodeCap),
		buckets:    make([]uint32, bucketCount),
		bucketMask: bucketCount - 1,
	}
	for _, op := range opts {
		op.apply(m)
	}
	m.checkInvariants()
	return m, nil
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	return int(m.used)
}

// Cap returns the number of entries the map can hold without growing.
// It is always of the form 192·2^k.
func (m *Map) Cap() int {
	return len(m.nodes)
}

// Empty reports whether the map holds no entries.
func (m *Map) Empty() bool {
	return m.used == 0
}

// Add inserts a copy of key and value. A nil value stores a valueless
// pair (this is how Set represents its elements). Add returns
// ErrKeyExists if the key is already present, ErrTooLarge for oversized
// key or value, and ErrAllocFailed or ErrCapacity on a fatal allocation
// problem; in every error case the map is unchanged.
func (m *Map) Add(key, value []byte) error {
	if len(key) > maxLen || len(value) > maxLen {
		return ErrTooLarge
	}
	hash := m.hasher.Hash(key, m.seed)
	bucket := &m.buckets[hash&uint64(m.bucketMask)]
	if m.search(key, hash, *bucket) != 0 {
		return ErrKeyExists
	}
	err := m.addNew(key, value, hash, bucket)
	m.checkInvariants()
	return err
}

// Update inserts the pair if the key is absent and replaces the value if
// it is present. A replacement value whose 4-byte floored length fits the
// node's recorded value capacity is written in place without
// reallocating. Update fails only on a fatal allocation problem, leaving
// the map unchanged.
func (m *Map) Update(key, value []byte) error {
	if len(key) > maxLen || len(value) > maxLen {
		return ErrTooLarge
	}
	hash := m.hasher.Hash(key, m.seed)
	bucket := &m.buckets[hash&uint64(m.bucketMask)]
	var err error
	if idx := m.search(key, hash, *bucket); idx != 0 {
		err = m.assignValue(&m.nodes[idx-1], value)
	} else {
		err = m.addNew(key, value, hash, bucket)
	}
	m.checkInvariants()
	return err
}

// Contains reports whether the map holds the key.
func (m *Map) Contains(key []byte) bool {
	if len(key) > maxLen {
		return false
	}
	hash := m.hasher.Hash(key, m.seed)
	return m.search(key, hash, m.buckets[hash&uint64(m.bucketMask)]) != 0
}

// Item returns a view of the entry with the given key, or nil if the key
// is not present. The view's Key and Value slices alias the stored pair
// buffer; treat them as read-only except through SetValueInPlace. Any
// mutation that can reallocate the arena invalidates the view.
func (m *Map) Item(key []byte) *Entry {
	if len(key) > maxLen {
		return nil
	}
	hash := m.hasher.Hash(key, m.seed)
	idx := m.search(key, hash, m.buckets[hash&uint64(m.bucketMask)])
	if idx == 0 {
		return nil
	}
	return &Entry{m: m, idx: idx}
}

// Remove deletes the entry with the given key, releasing its pair buffer.
// It reports whether an entry was found and removed; removing an absent
// key is a no-op.
func (m *Map) Remove(key []byte) bool {
	if len(key) > maxLen {
		return false
	}
	buf, _, hasVal, ok := m.detach(key)
	if ok && hasVal {
		m.alloc.FreePair(buf)
	}
	m.checkInvariants()
	return ok
}

// Detach removes the entry with the given key and transfers ownership of
// its value bytes to the caller instead of releasing them. The returned
// slice stays valid until passed to FreeDetached. Detach returns
// (nil, true) when the removed pair was valueless, and (nil, false) when
// the key was not found.
func (m *Map) Detach(key []byte) ([]byte, bool) {
	if len(key) > maxLen {
		return nil, false
	}
	buf, valLen, hasVal, ok := m.detach(key)
	m.checkInvariants()
	if !ok || !hasVal {
		return nil, ok
	}
	return buf[:valLen], true
}

// FreeDetached releases a value obtained from Detach back to the map's
// allocator. With the default allocator this is a no-op and the garbage
// collector reclaims the buffer whenever the caller drops it.
func (m *Map) FreeDetached(value []byte) {
	if value == nil {
		return
	}
	m.alloc.FreePair(value[:cap(value)])
}

// Shrink compacts the map to the smallest capacity step (192·2^k nodes,
// 256·2^k buckets) that holds the current entries. Live nodes are copied
// in arena order, dropping removed slots, and the chains are rebuilt from
// the stored hashes. A map already at its minimal capacity is untouched.
// This is the only operation that reorders nodes.
func (m *Map) Shrink() error {
	nodeCap := uint32(minNodeCap)
	bucketCount := uint32(minBucketCount)
	for nodeCap < m.used {
		nodeCap <<= 1
		bucketCount <<= 1
	}
	if nodeCap == uint32(len(m.nodes)) {
		return nil
	}

	nodes := make([]node, nodeCap)
	buckets := make([]uint32, bucketCount)
	if m.used != 0 {
		j := uint32(0)
		for i := uint32(0); i < m.highWater; i++ {
			old := &m.nodes[i]
			if old.buf == nil {
				continue
			}
			nodes[j] = *old
			bucket := &buckets[old.hash&uint64(bucketCount-1)]
			nodes[j].next = *bucket
			*bucket = j + 1
			j++
		}
	}

	m.nodes = nodes
	m.buckets = buckets
	m.bucketMask = bucketCount - 1
	m.recycled = 0
	m.highWater = m.used
	m.checkInvariants()
	return nil
}

// Clear releases every stored pair and resets the map to empty. A map at
// minimal capacity keeps its arrays; a larger one is compacted back down
// by the automatic shrink.
func (m *Map) Clear() {
	if m.used == 0 {
		return
	}
	m.freeAll()
	if uint32(len(m.nodes)) == minNodeCap {
		clear(m.buckets)
	}
	m.used = 0
	m.maybeShrink()
	m.checkInvariants()
}

// Close releases every stored pair and drops the map's arrays. It is
// invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map) Close() {
	m.freeAll()
	m.nodes = nil
	m.buckets = nil
	m.bucketMask = 0
	m.used = 0
	m.highWater = 0
	m.recycled = 0
}

// search walks the chain starting at idx and returns the 1-based index of
// the node holding key, or 0. The cheap comparisons run first; the
// comparer is consulted only when both hash and length already match, so
// a well behaved map performs at most one byte comparison per lookup.
func (m *Map) search(key []byte, hash uint64, idx uint32) uint32 {
	for idx != 0 {
		n := &m.nodes[idx-1]
		if n.hash == hash && n.keyLen == uint32(len(key)) && m.comparer.Equal(n.key(), key) {
			return idx
		}
		idx = n.next
	}
	return 0
}

// searchPrev is search, but it additionally returns the link slot (a
// bucket head or a predecessor's next field) pointing at the match, so
// the caller can splice the chain without a second walk.
func (m *Map) searchPrev(key []byte, hash uint64, link *uint32) (uint32, *uint32) {
	for *link != 0 {
		n := &m.nodes[*link-1]
		if n.hash == hash && n.keyLen == uint32(len(key)) && m.comparer.Equal(n.key(), key) {
			return *link, link
		}
		link = &n.next
	}
	return 0, nil
}

// addNew links a fresh pair into the bucket chain. The caller has already
// established that the key is absent.
func (m *Map) addNew(key, value []byte, hash uint64, bucket *uint32) error {
	if m.used == uint32(len(m.nodes)) {
		if err := m.grow(); err != nil {
			return err
		}
		// The old bucket link points into the discarded table.
		bucket = &m.buckets[hash&uint64(m.bucketMask)]
	}

	buf, keyOff, valCap, ok := m.pairDup(key, value)
	if !ok {
		return ErrAllocFailed
	}

	n := m.takeNode(bucket)
	n.buf = buf
	n.hash = hash
	n.keyOff = keyOff
	n.keyLen = uint32(len(key))
	n.valLen = uint32(len(value))
	n.valCap = valCap
	m.used++
	return nil
}

// takeNode acquires a node, preferring the freelist over a fresh arena
// slot, and pushes it onto the chain whose head is bucket.
func (m *Map) takeNode(bucket *uint32) *node {
	if m.recycled == 0 {
		n := &m.nodes[m.highWater]
		n.next = *bucket
		m.highWater++
		*bucket = m.highWater
		return n
	}

	n := &m.nodes[m.recycled-1]
	idx := m.recycled
	m.recycled = n.next
	n.next = *bucket
	*bucket = idx
	return n
}

// grow doubles the arena and the bucket table and rebuilds every chain
// from the stored hashes, in arena order, each chain LIFO. Keys are not
// rehashed; only the bucket index changes. On failure the map keeps its
// prior state.
func (m *Map) grow() error {
	if m.bucketMask == maxBucketMask {
		return ErrCapacity
	}

	newMask := m.bucketMask<<1 + 1
	buckets := make([]uint32, uint64(newMask)+1)
	nodes := make([]node, len(m.nodes)*2)
	copy(nodes, m.nodes[:m.highWater])

	for i := uint32(0); i < m.highWater; i++ {
		n := &nodes[i]
		if n.buf == nil {
			continue
		}
		bucket := &buckets[n.hash&uint64(newMask)]
		n.next = *bucket
		*bucket = i + 1
	}

	m.nodes = nodes
	m.buckets = buckets
	m.bucketMask = newMask
	return nil
}

// detach unlinks the node holding key and pushes its slot onto the
// freelist. For a valueless pair the key-only buffer is released right
// away and hasVal is false; otherwise the whole pair buffer is handed
// back to the caller, who takes ownership.
func (m *Map) detach(key []byte) (buf []byte, valLen uint32, hasVal, ok bool) {
	hash := m.hasher.Hash(key, m.seed)
	idx, link := m.searchPrev(key, hash, &m.buckets[hash&uint64(m.bucketMask)])
	if idx == 0 {
		return nil, 0, false, false
	}

	n := &m.nodes[idx-1]
	*link = n.next
	if n.keyOff == 0 {
		m.alloc.FreePair(n.buf)
	} else {
		buf = n.buf
		valLen = n.valLen
		hasVal = true
	}

	// The nil buffer is what separates removed nodes from live ones.
	n.buf = nil
	n.next = m.recycled
	m.recycled = idx
	m.used--
	m.maybeShrink()
	return buf, valLen, hasVal, true
}

// maybeShrink runs after removals. An empty map no longer needs its
// freelist or high-water mark. Independently, occupancy below 1/8 of
// capacity triggers a compaction attempt whose failure is ignored;
// shrinking is best effort.
func (m *Map) maybeShrink() {
	if m.used == 0 {
		m.recycled = 0
		m.highWater = 0
	}
	if (uint64(m.used)<<3)/uint64(len(m.nodes)) == 0 {
		_ = m.Shrink()
	}
}

// freeAll releases every live pair buffer. Detached values are of course
// unaffected.
func (m *Map) freeAll() {
	for i := uint32(0); i < m.highWater; i++ {
		n := &m.nodes[i]
		if n.buf != nil {
			m.alloc.FreePair(n.buf)
			n.buf = nil
		}
	}
}

// pairDup copies key and value into a single buffer: value segment first,
// then key segment, each segment padded with zero bytes up to its 4-byte
// aligned end. The pad words are written before the data because the copy
// may overwrite up to 3 of the zero bytes. keyOff is the key segment's
// offset (0 for a valueless pair) and valCap the value segment's aligned
// capacity. ok is false when the allocator fails.
func (m *Map) pairDup(key, value []byte) (buf []byte, keyOff, valCap uint32, ok bool) {
	keyAligned := uint32(len(key)) &^ 3
	if value == nil {
		buf = m.alloc.AllocPair(int(keyAligned) + 4)
		if buf == nil {
			return nil, 0, 0, false
		}
		zeroWord(buf, keyAligned)
		copy(buf, key)
		return buf, 0, 0, true
	}

	valCap = uint32(len(value)) &^ 3
	buf = m.alloc.AllocPair(int(keyAligned) + int(valCap) + 8)
	if buf == nil {
		return nil, 0, 0, false
	}
	keyOff = valCap + 4
	zeroWord(buf, keyOff+keyAligned)
	copy(buf[keyOff:], key)
	zeroWord(buf, valCap)
	copy(buf, value)
	return buf, keyOff, valCap, true
}

// assignValue replaces the value of an existing node, reusing the value
// segment in place when the new value fits its aligned capacity and
// re-duplicating the pair (key preserved) otherwise.
func (m *Map) assignValue(n *node, value []byte) error {
	if value == nil && n.keyOff == 0 {
		return nil
	}

	if value != nil && n.keyOff != 0 {
		valAligned := uint32(len(value)) &^ 3
		if valAligned <= n.valCap {
			zeroWord(n.buf, valAligned)
			copy(n.buf, value)
			n.valLen = uint32(len(value))
			return nil
		}
	}

	buf, keyOff, valCap, ok := m.pairDup(n.key(), value)
	if !ok {
		return ErrAllocFailed
	}
	m.alloc.FreePair(n.buf)
	n.buf = buf
	n.keyOff = keyOff
	n.valLen = uint32(len(value))
	n.valCap = valCap
	return nil
}

// zeroWord zeroes the 4 bytes of buf starting at off.
func zeroWord(buf []byte, off uint32) {
	buf[off] = 0
	buf[off+1] = 0
	buf[off+2] = 0
	buf[off+3] = 0
}

// checkInvariants verifies the structural invariants of the map. It
// compiles away unless the invariants build tag is set.
func (m *Map) checkInvariants() {
	if !invariants {
		return
	}
	if m.nodes == nil {
		return // closed
	}

	if k := uint32(len(m.nodes)) / minNodeCap; bits.OnesCount32(k) != 1 {
		panic(fmt.Sprintf("invariant failed: node capacity %d is not 192·2^k\n%s", len(m.nodes), m.debugString()))
	}
	if len(m.buckets) != len(m.nodes)/3*4 || uint32(len(m.buckets)) != m.bucketMask+1 {
		panic(fmt.Sprintf("invariant failed: %d buckets for %d nodes (mask %#x)\n%s",
			len(m.buckets), len(m.nodes), m.bucketMask, m.debugString()))
	}
	if m.used > m.highWater || m.highWater > uint32(len(m.nodes)) {
		panic(fmt.Sprintf("invariant failed: used=%d highWater=%d cap=%d\n%s",
			m.used, m.highWater, len(m.nodes), m.debugString()))
	}

	// Every slot below the high-water mark must appear exactly once across
	// the bucket chains and the freelist: live slots in the former, free
	// slots in the latter.
	seen := make([]bool, m.highWater)
	visit := func(idx uint32, where string) {
		if idx == 0 || idx > m.highWater {
			panic(fmt.Sprintf("invariant failed: %s links slot %d, highWater=%d\n%s",
				where, idx, m.highWater, m.debugString()))
		}
		if seen[idx-1] {
			panic(fmt.Sprintf("invariant failed: slot %d reachable twice via %s\n%s", idx, where, m.debugString()))
		}
		seen[idx-1] = true
	}

	live := uint32(0)
	for b := range m.buckets {
		for idx := m.buckets[b]; idx != 0; idx = m.nodes[idx-1].next {
			visit(idx, "bucket chain")
			n := &m.nodes[idx-1]
			if n.buf == nil {
				panic(fmt.Sprintf("invariant failed: free slot %d on a bucket chain\n%s", idx, m.debugString()))
			}
			if n.hash&uint64(m.bucketMask) != uint64(b) {
				panic(fmt.Sprintf("invariant failed: slot %d hashes to bucket %d, chained in %d\n%s",
					idx, n.hash&uint64(m.bucketMask), b, m.debugString()))
			}
			for p := n.keyOff + n.keyLen; p < uint32(len(n.buf)); p++ {
				if n.buf[p] != 0 {
					panic(fmt.Sprintf("invariant failed: slot %d key padding not zeroed\n%s", idx, m.debugString()))
				}
			}
			live++
		}
	}
	if live != m.used {
		panic(fmt.Sprintf("invariant failed: %d chained slots, used=%d\n%s", live, m.used, m.debugString()))
	}

	free := uint32(0)
	for idx := m.recycled; idx != 0; idx = m.nodes[idx-1].next {
		visit(idx, "freelist")
		if m.nodes[idx-1].buf != nil {
			panic(fmt.Sprintf("invariant failed: live slot %d on the freelist\n%s", idx, m.debugString()))
		}
		free++
	}
	if live+free != m.highWater {
		panic(fmt.Sprintf("invariant failed: %d chained + %d free != highWater %d\n%s",
			live, free, m.highWater, m.debugString()))
	}
}

func (m *Map) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "cap=%d buckets=%d used=%d highWater=%d recycled=%d\n",
		len(m.nodes), len(m.buckets), m.used, m.highWater, m.recycled)
	for i := uint32(0); i < m.highWater; i++ {
		n := &m.nodes[i]
		if n.buf == nil {
			fmt.Fprintf(&buf, "  %4d: free next=%d\n", i+1, n.next)
			continue
		}
		fmt.Fprintf(&buf, "  %4d: key=%q val=%q hash=%016x next=%d\n",
			i+1, n.key(), n.value(), n.hash, n.next)
	}
	return buf.String()
}
