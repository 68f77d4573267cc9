// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"flag"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtAndLast(t *testing.T) {
	slice := []int{0, 1, 2, 3, 4, 5}
	assert.Equal(t, 5, At(slice, -1))
	assert.Equal(t, 4, At(slice, -2))
	assert.Equal(t, 5, Last(slice))
}

func TestNormalizeIndex(t *testing.T) {
	idx, ok := NormalizeIndex(-2, 7)
	assert.True(t, ok)
	assert.Equal(t, 5, idx)
	_, ok = NormalizeIndex(-8, 7)
	assert.False(t, ok)
	_, ok = NormalizeIndex(7, 7)
	assert.False(t, ok)
}

func TestNaturalKeys(t *testing.T) {
	m := map[string]int{"sent_10": 0, "sent_2": 0, "sent_1": 0, "a": 0, "sent_2b": 0}
	assert.Equal(t, []string{"a", "sent_1", "sent_2", "sent_2b", "sent_10"}, NaturalKeys(m))
	assert.Equal(t, []string{"a", "sent_1", "sent_10", "sent_2", "sent_2b"}, SortedKeys(m))
}

func TestMapAndIota(t *testing.T) {
	in := Iota(0, 17)
	out := Map(in, func(v int) int32 { return int32(v + 1) })
	for ii := range in {
		assert.Equalf(t, int32(ii+1), out[ii], "element %d doesn't match", ii)
	}
	assert.Equal(t, []float64{3, 4}, Iota(3.0, 2))
}

func TestMake2D(t *testing.T) {
	m := Make2D[float64](3, 2)
	require.Len(t, m, 3)
	m[0] = append(m[0], 7) // Capacity is capped, so this must not overwrite row 1.
	assert.Equal(t, []float64{0, 0}, m[1])
}

func TestFlag(t *testing.T) {
	bins := Flag("test_bins", []int{2, 4}, "bins", strconv.Atoi)
	f := flag.Lookup("test_bins")
	require.NotNil(t, f)
	assert.Equal(t, "2,4", f.Value.String())
	require.NoError(t, f.Value.Set("8, 16,35"))
	assert.True(t, slices.Equal([]int{8, 16, 35}, *bins))
	require.Error(t, f.Value.Set("8,x"))
}
