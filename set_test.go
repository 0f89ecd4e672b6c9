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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetBasic(t *testing.T) {
	s, err := NewSet(0)
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Empty())
	require.Equal(t, 192, s.Cap())

	require.NoError(t, s.Add([]byte("a")))
	require.NoError(t, s.Add([]byte("b")))
	require.ErrorIs(t, s.Add([]byte("a")), ErrKeyExists)
	require.Equal(t, 2, s.Len())

	require.True(t, s.Contains([]byte("a")))
	require.False(t, s.Contains([]byte("c")))

	e := s.Item([]byte("a"))
	require.NotNil(t, e)
	require.Equal(t, []byte("a"), e.Key())
	require.Nil(t, e.Value())
	require.Nil(t, s.Item([]byte("c")))

	require.True(t, s.Remove([]byte("a")))
	require.False(t, s.Remove([]byte("a")))
	require.Equal(t, 1, s.Len())

	s.Clear()
	require.True(t, s.Empty())
}

func TestSetGrowShrink(t *testing.T) {
	s, err := NewSet(0)
	require.NoError(t, err)
	defer s.Close()

	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, s.Add(ik(i)))
	}
	require.Equal(t, n, s.Len())
	require.Equal(t, 1536, s.Cap())

	for i := 0; i < n; i++ {
		require.True(t, s.Remove(ik(i)))
	}
	require.True(t, s.Empty())
	require.Equal(t, 192, s.Cap())

	require.NoError(t, s.Shrink())
	require.Equal(t, 192, s.Cap())
}

func TestSetIteration(t *testing.T) {
	s, err := NewSet(0)
	require.NoError(t, err)
	defer s.Close()

	require.Nil(t, s.Next(nil))

	expected := make(map[string]bool)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Add(ik(i)))
		expected[string(ik(i))] = true
	}

	forward := make(map[string]bool)
	for e := s.Next(nil); e != nil; e = s.Next(e) {
		forward[string(e.Key())] = true
	}
	require.Equal(t, expected, forward)

	backward := make(map[string]bool)
	for e := s.Prev(nil); e != nil; e = s.Prev(e) {
		backward[string(e.Key())] = true
	}
	require.Equal(t, expected, backward)

	yielded := make(map[string]bool)
	s.All(func(v []byte) bool {
		yielded[string(v)] = true
		return true
	})
	require.Equal(t, expected, yielded)
}

func TestSetMerge(t *testing.T) {
	a, err := NewSet(0)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSet(0)
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, a.Add(ik(i)))
	}
	for i := 25; i < 75; i++ {
		require.NoError(t, b.Add(ik(i)))
	}

	require.NoError(t, a.Merge(b))
	require.Equal(t, 75, a.Len())
	for i := 0; i < 75; i++ {
		require.True(t, a.Contains(ik(i)))
	}
	// The overlap stays behind in the source set.
	require.Equal(t, 25, b.Len())
	for i := 25; i < 50; i++ {
		require.True(t, b.Contains(ik(i)))
	}
	for i := 50; i < 75; i++ {
		require.False(t, b.Contains(ik(i)))
	}
}

func TestSetOptions(t *testing.T) {
	s, err := NewSet(0, foldOptions()...)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add([]byte("Word")))
	require.ErrorIs(t, s.Add([]byte("word")), ErrKeyExists)
	require.True(t, s.Contains([]byte("WORD")))
	require.True(t, s.Remove([]byte("wOrD")))
	require.True(t, s.Empty())
}
