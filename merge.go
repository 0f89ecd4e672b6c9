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

package bytemap

// Merge moves entries from src into m. Pair buffers are transplanted, not
// copied: a moved entry's node is spliced out of its source chain and
// recycled, and its buffer changes owner.
//
// With updateExisting false, only entries whose keys are absent from m
// move; colliding entries stay in src untouched. With updateExisting
// true, every entry moves and colliding destination values are replaced
// (their old buffers released), emptying src.
//
// Stored hashes are reused when both maps share the same hasher and seed;
// otherwise every moved key is rehashed for m. A fatal allocation error
// while growing m aborts the scan: both maps remain valid, but entries
// already moved stay moved.
func (m *Map) Merge(src *Map, updateExisting bool) error {
	if src == m || src.used == 0 {
		return nil
	}

	doRehash := !sameHashConfig(m, src)
	for i := uint32(0); i < src.highWater; i++ {
		if src.nodes[i].buf == nil {
			continue
		}
		if err := m.mergeNode(src, i, doRehash, updateExisting); err != nil {
			m.checkInvariants()
			src.checkInvariants()
			return err
		}
	}

	src.maybeShrink()
	m.checkInvariants()
	src.checkInvariants()
	return nil
}

// mergeNode tries to move the live source node at 0-based arena index i
// into m.
func (m *Map) mergeNode(src *Map, i uint32, doRehash, updateExisting bool) error {
	sn := &src.nodes[i]
	hash := sn.hash
	if doRehash {
		hash = m.hasher.Hash(sn.key(), m.seed)
	}

	bucket := &m.buckets[hash&uint64(m.bucketMask)]
	var dn *node
	if di := m.search(sn.key(), hash, *bucket); di != 0 {
		if !updateExisting {
			return nil
		}
		dn = &m.nodes[di-1]
		m.alloc.FreePair(dn.buf)
	} else {
		if m.used == uint32(len(m.nodes)) {
			if err := m.grow(); err != nil {
				return err
			}
			// The old bucket link points into the discarded table.
			bucket = &m.buckets[hash&uint64(m.bucketMask)]
		}
		dn = m.takeNode(bucket)
		m.used++
	}

	// Splice the node out of its source chain, transfer the pair, and
	// recycle the source slot.
	_, link := src.searchPrev(sn.key(), sn.hash, &src.buckets[sn.hash&uint64(src.bucketMask)])
	*link = sn.next
	dn.buf = sn.buf
	dn.hash = hash
	dn.keyOff = sn.keyOff
	dn.keyLen = sn.keyLen
	dn.valLen = sn.valLen
	dn.valCap = sn.valCap
	sn.buf = nil
	sn.next = src.recycled
	src.recycled = i + 1
	src.used--
	return nil
}
