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

// Entry is a view of one stored pair, identified by its arena slot. The
// slices it exposes alias the pair buffer owned by the map, so they stay
// valid only until the entry is removed or its value reallocated. Any
// mutation of the map invalidates an Entry used as an iteration cursor,
// because Shrink and Merge reorder or vacate slots.
type Entry struct {
	m   *Map
	idx uint32 // 1-based arena index
}

// Key returns the entry's key bytes. Treat them as read-only; the key
// participates in the hash and comparison and must never change while the
// entry is stored.
func (e *Entry) Key() []byte {
	return e.m.nodes[e.idx-1].key()
}

// Value returns the entry's value bytes, nil for a valueless pair. Treat
// them as read-only except through SetValueInPlace.
func (e *Entry) Value() []byte {
	return e.m.nodes[e.idx-1].value()
}

// SetValueInPlace overwrites the entry's value without reallocating or
// disturbing the map. The replacement must have exactly the stored
// value's length; use Map.Update to change a value's size.
func (e *Entry) SetValueInPlace(value []byte) error {
	n := &e.m.nodes[e.idx-1]
	if n.keyOff == 0 || uint32(len(value)) != n.valLen {
		return ErrValueSize
	}
	copy(n.buf, value)
	return nil
}

// Next returns the entry following cur in arena order, or the first entry
// when cur is nil, or nil when the scan is exhausted. Iteration order is
// arbitrary but stable while the map is unmodified. Typical use:
//
//	for e := m.Next(nil); e != nil; e = m.Next(e) {
//		...
//	}
func (m *Map) Next(cur *Entry) *Entry {
	i := uint32(0)
	if cur != nil {
		i = cur.idx
	}
	for ; i < m.highWater; i++ {
		if m.nodes[i].buf != nil {
			return &Entry{m: m, idx: i + 1}
		}
	}
	return nil
}

// Prev returns the entry preceding cur in arena order, or the last entry
// when cur is nil, or nil when the scan is exhausted. It visits exactly
// the entries Next visits, in reverse.
func (m *Map) Prev(cur *Entry) *Entry {
	i := m.highWater
	if cur != nil {
		i = cur.idx - 1
	}
	for ; i > 0; i-- {
		if m.nodes[i-1].buf != nil {
			return &Entry{m: m, idx: i}
		}
	}
	return nil
}

// All calls yield for every entry until yield returns false, in the same
// order as Next. The slices passed to yield alias the stored pair
// buffers; the map must not be modified during the iteration.
//
// All is usable as a range-over-func iterator:
//
//	for k, v := range m.All {
//		...
//	}
func (m *Map) All(yield func(key, value []byte) bool) {
	for i := uint32(0); i < m.highWater; i++ {
		n := &m.nodes[i]
		if n.buf != nil && !yield(n.key(), n.value()) {
			return
		}
	}
}
