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

import (
	"bytes"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Hasher computes a 64-bit hash of a byte sequence. Implementations must
// be deterministic for a given seed. Merge reuses stored hash values only
// between maps whose hashers compare equal (and whose seeds match), so
// hashers should be comparable value types; hashers that are not
// comparable simply force a rehash during Merge, which is always correct.
type Hasher interface {
	Hash(data []byte, seed uint64) uint64
}

// HasherFunc adapts a plain function to the Hasher interface. Two
// distinct HasherFunc values never compare equal, so merging between maps
// configured this way always rehashes.
type HasherFunc func(data []byte, seed uint64) uint64

// Hash implements Hasher.
func (f HasherFunc) Hash(data []byte, seed uint64) uint64 {
	return f(data, seed)
}

// Comparer decides the equality of two keys. It is consulted only after
// the stored hash and the byte lengths already match, so a and b are
// always the same length. Pair it with a Hasher that identifies the same
// keys (for example case-folding both) or lookups will misbehave.
type Comparer interface {
	Equal(a, b []byte) bool
}

// ComparerFunc adapts a plain function to the Comparer interface.
type ComparerFunc func(a, b []byte) bool

// Equal implements Comparer.
func (f ComparerFunc) Equal(a, b []byte) bool {
	return f(a, b)
}

// fnvHasher is the fallback used when no hasher is configured: FNV-1a,
// chosen for simplicity. It is fast and has fine diffusion for
// short keys but it is unkeyed (the seed is ignored) and gives no
// protection against adversarial key sets; use one of the seeded hashers
// below for that, or XXH3 for long keys.
type fnvHasher struct{}

func (fnvHasher) Hash(data []byte, _ uint64) uint64 {
	hash := uint64(0xcbf29ce484222325)
	for _, b := range data {
		hash = (hash ^ uint64(b)) * 0x00000100000001b3
	}
	return hash
}

// XXHash64 hashes with the 64-bit xxHash algorithm. A zero seed uses the
// streamlined no-seed path.
type XXHash64 struct{}

// Hash implements Hasher.
func (XXHash64) Hash(data []byte, seed uint64) uint64 {
	if seed == 0 {
		return xxhash.Sum64(data)
	}
	var d xxhash.Digest
	d.ResetWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}

// XXH3 hashes with the XXH3 algorithm, which vectorizes well and is the
// better choice when long keys are expected.
type XXH3 struct{}

// Hash implements Hasher.
func (XXH3) Hash(data []byte, seed uint64) uint64 {
	return xxh3.HashSeed(data, seed)
}

// rawComparer is the fallback comparer: plain byte equality.
type rawComparer struct{}

func (rawComparer) Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// sameHashConfig reports whether two maps hash identically, which is what
// allows Merge to reuse the hashes stored in the source. Comparing
// interfaces with a non-comparable dynamic type panics, so the dynamic
// types are checked first; non-comparable hashers are never considered
// identical.
func sameHashConfig(a, b *Map) bool {
	if a.seed != b.seed {
		return false
	}
	ta, tb := reflect.TypeOf(a.hasher), reflect.TypeOf(b.hasher)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a.hasher == b.hasher
}
