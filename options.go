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

// Option provides an interface to do work on a Map while it is being
// created.
type Option interface {
	apply(m *Map)
}

type hasherOption struct {
	hasher Hasher
}

func (op hasherOption) apply(m *Map) {
	m.hasher = op.hasher
}

// WithHasher is an option to replace the default FNV-1a hasher.
func WithHasher(h Hasher) Option {
	return hasherOption{h}
}

type seedOption struct {
	seed uint64
}

func (op seedOption) apply(m *Map) {
	m.seed = op.seed
}

// WithSeed is an option to set the seed passed to the hasher. The default
// FNV-1a hasher ignores it.
func WithSeed(seed uint64) Option {
	return seedOption{seed}
}

type comparerOption struct {
	comparer Comparer
}

func (op comparerOption) apply(m *Map) {
	m.comparer = op.comparer
}

// WithComparer is an option to replace the default byte-wise equality.
func WithComparer(c Comparer) Option {
	return comparerOption{c}
}

// Allocator specifies an interface for allocating and releasing the
// memory used for key/value pair buffers. The default allocator utilizes
// Go's builtin make() and lets the GC reclaim memory, in which case
// FreePair is a no-op and AllocPair never fails.
//
// A manually managed allocator may return nil from AllocPair to signal
// exhaustion; the affected operation fails with ErrAllocFailed and the
// map keeps its prior state. If the allocator requires that buffers be
// freed, Map.Close must be called so the remaining pairs are released.
type Allocator interface {
	// AllocPair should return a slice equivalent to make([]byte, n), or
	// nil if no memory is available.
	AllocPair(n int) []byte

	// FreePair can optionally release the memory associated with the
	// supplied slice, which is guaranteed to have been allocated by
	// AllocPair.
	FreePair(buf []byte)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocPair(n int) []byte {
	return make([]byte, n)
}

func (defaultAllocator) FreePair([]byte) {
}

type allocatorOption struct {
	alloc Allocator
}

func (op allocatorOption) apply(m *Map) {
	m.alloc = op.alloc
}

// WithAllocator is an option to specify the Allocator used for pair
// buffers.
func WithAllocator(a Allocator) Option {
	return allocatorOption{a}
}
