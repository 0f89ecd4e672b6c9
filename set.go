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

// Set is an unordered set of byte-slice values, implemented as a Map of
// valueless pairs. Every operation forwards to the underlying map, so a
// Set costs exactly what the equivalent Map usage would.
//
// A Set is NOT goroutine-safe.
type Set struct {
	m Map
}

// NewSet constructs an empty Set. It accepts the same options as New.
func NewSet(initialCapacity int, opts ...Option) (*Set, error) {
	m, err := New(initialCapacity, opts...)
	if err != nil {
		return nil, err
	}
	return &Set{m: *m}, nil
}

// Len returns the number of values in the set.
func (s *Set) Len() int { return s.m.Len() }

// Cap returns the number of values the set can hold without growing.
func (s *Set) Cap() int { return s.m.Cap() }

// Empty reports whether the set holds no values.
func (s *Set) Empty() bool { return s.m.Empty() }

// Add inserts a copy of value. It returns ErrKeyExists if the value is
// already present.
func (s *Set) Add(value []byte) error {
	return s.m.Add(value, nil)
}

// Contains reports whether the set holds the value.
func (s *Set) Contains(value []byte) bool {
	return s.m.Contains(value)
}

// Remove deletes the value, reporting whether it was present.
func (s *Set) Remove(value []byte) bool {
	return s.m.Remove(value)
}

// Item returns a view of the stored value, or nil if it is not present.
// Only the view's Key is meaningful for a set.
func (s *Set) Item(value []byte) *Entry {
	return s.m.Item(value)
}

// Next returns the value following cur in arena order; see Map.Next.
func (s *Set) Next(cur *Entry) *Entry { return s.m.Next(cur) }

// Prev returns the value preceding cur in arena order; see Map.Prev.
func (s *Set) Prev(cur *Entry) *Entry { return s.m.Prev(cur) }

// All calls yield for every value until yield returns false, in the same
// order as Next.
func (s *Set) All(yield func(value []byte) bool) {
	s.m.All(func(key, _ []byte) bool {
		return yield(key)
	})
}

// Merge moves values from src into s; values already present stay in
// src. See Map.Merge.
func (s *Set) Merge(src *Set) error {
	return s.m.Merge(&src.m, false)
}

// Shrink compacts the set to the smallest capacity step that holds the
// current values.
func (s *Set) Shrink() error { return s.m.Shrink() }

// Clear removes every value.
func (s *Set) Clear() { s.m.Clear() }

// Close releases the set's storage. Using a Set after Close is invalid.
func (s *Set) Close() { s.m.Close() }
