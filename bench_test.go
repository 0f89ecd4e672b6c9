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
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

func BenchmarkMapIter(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapIter))
	b.Run("impl=byteMap", benchSizes(benchmarkByteMapIter))
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetHit))
	b.Run("impl=byteMap", benchSizes(benchmarkByteMapGetHit))
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetMiss))
	b.Run("impl=byteMap", benchSizes(benchmarkByteMapGetMiss))
}

func BenchmarkMapPutGrow(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutGrow))
	b.Run("impl=byteMap", benchSizes(benchmarkByteMapPutGrow))
}

func BenchmarkMapPutPreAllocate(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutPreAllocate))
	b.Run("impl=byteMap", benchSizes(benchmarkByteMapPutPreAllocate))
}

func BenchmarkMapPutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutDelete))
	b.Run("impl=byteMap", benchSizes(benchmarkByteMapPutDelete))
}

func benchSizes(f func(b *testing.B, n int)) func(*testing.B) {
	var cases = []int{
		16,
		64,
		128,
		256,
		512,
		1024,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n) })
		}
	}
}

// genKeys returns the decimal encodings of [start,end).
func genKeys(start, end int) [][]byte {
	keys := make([][]byte, end-start)
	for i := range keys {
		keys[i] = strconv.AppendInt(nil, int64(start+i), 10)
	}
	return keys
}

func benchmarkRuntimeMapIter(b *testing.B, n int) {
	m := make(map[string][]byte, n)
	for _, k := range genKeys(0, n) {
		m[string(k)] = k
	}
	b.ResetTimer()
	var tmp int
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += len(k) + len(v)
		}
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkByteMapIter(b *testing.B, n int) {
	m, err := New(n)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	for _, k := range genKeys(0, n) {
		_ = m.Add(k, k)
	}
	b.ResetTimer()
	var tmp int
	for i := 0; i < b.N; i++ {
		m.All(func(k, v []byte) bool {
			tmp += len(k) + len(v)
			return true
		})
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkRuntimeMapGetHit(b *testing.B, n int) {
	m := make(map[string][]byte, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[string(k)] = k
	}
	perfbench.Open(b)
	b.ResetTimer()
	var v []byte
	for i := 0; i < b.N; i++ {
		v = m[string(keys[i%n])]
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, len(v))
}

func benchmarkByteMapGetHit(b *testing.B, n int) {
	m, err := New(n)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Add(k, k)
	}
	perfbench.Open(b)
	b.ResetTimer()
	var e *Entry
	for i := 0; i < b.N; i++ {
		e = m.Item(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, e != nil)
}

func benchmarkRuntimeMapGetMiss(b *testing.B, n int) {
	m := make(map[string][]byte)
	miss := genKeys(-n, 0)
	for _, k := range genKeys(0, n) {
		m[string(k)] = k
	}
	perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m[string(miss[i%n])]
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkByteMapGetMiss(b *testing.B, n int) {
	m, err := New(0)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	miss := genKeys(-n, 0)
	for _, k := range genKeys(0, n) {
		_ = m.Add(k, k)
	}
	perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		ok = m.Contains(miss[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapPutGrow(b *testing.B, n int) {
	keys := genKeys(0, n)
	perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i += n {
		m := make(map[string][]byte)
		for _, k := range keys {
			m[string(k)] = k
		}
	}
}

func benchmarkByteMapPutGrow(b *testing.B, n int) {
	keys := genKeys(0, n)
	perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i += n {
		m, err := New(0)
		if err != nil {
			b.Fatal(err)
		}
		for _, k := range keys {
			_ = m.Add(k, k)
		}
		m.Close()
	}
}

func benchmarkRuntimeMapPutPreAllocate(b *testing.B, n int) {
	keys := genKeys(0, n)
	perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i += n {
		m := make(map[string][]byte, n)
		for _, k := range keys {
			m[string(k)] = k
		}
	}
}

func benchmarkByteMapPutPreAllocate(b *testing.B, n int) {
	keys := genKeys(0, n)
	perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i += n {
		m, err := New(n)
		if err != nil {
			b.Fatal(err)
		}
		for _, k := range keys {
			_ = m.Add(k, k)
		}
		m.Close()
	}
}

func benchmarkRuntimeMapPutDelete(b *testing.B, n int) {
	keys := genKeys(0, n)
	m := make(map[string][]byte, n)
	for _, k := range keys {
		m[string(k)] = k
	}
	perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%n]
		delete(m, string(k))
		m[string(k)] = k
	}
}

func benchmarkByteMapPutDelete(b *testing.B, n int) {
	keys := genKeys(0, n)
	m, err := New(n)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	for _, k := range keys {
		_ = m.Add(k, k)
	}
	perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%n]
		m.Remove(k)
		_ = m.Add(k, k)
	}
}
