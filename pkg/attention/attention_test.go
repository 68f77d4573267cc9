// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformTensor builds a tensor where every row is uniform over seqLen positions.
func uniformTensor(numLayers, numHeads, seqLen int) Tensor {
	t := make(Tensor, numLayers)
	for l := range t {
		t[l] = make([][][]float64, numHeads)
		for h := range t[l] {
			t[l][h] = make([][]float64, seqLen)
			for q := range t[l][h] {
				t[l][h][q] = make([]float64, seqLen)
				for k := range t[l][h][q] {
					t[l][h][q][k] = 1 / float64(seqLen)
				}
			}
		}
	}
	return t
}

func TestTensor(t *testing.T) {
	tensor := uniformTensor(3, 2, 4)
	assert.Equal(t, 3, tensor.NumLayers())
	assert.Equal(t, 2, tensor.NumHeads())
	assert.Equal(t, 4, tensor.SeqLen())
	require.NoError(t, tensor.Validate())

	tensor[1][1][2][0] = 7
	assert.Equal(t, 7.0, tensor.Row(1, 1, -2)[0])
	assert.Equal(t, 7.0, tensor.Row(1, 1, 2)[0])
	assert.Nil(t, tensor.Row(1, 1, 4))
	assert.Nil(t, tensor.Row(3, 0, 0))
	assert.Nil(t, tensor.Row(0, -1, 0))

	var empty Tensor
	assert.Equal(t, 0, empty.NumHeads())
	assert.Equal(t, 0, empty.SeqLen())
	assert.Error(t, empty.Validate())

	ragged := uniformTensor(2, 2, 3)
	ragged[1] = ragged[1][:1]
	assert.Error(t, ragged.Validate())
	notSquare := uniformTensor(1, 1, 3)
	notSquare[0][0][1] = notSquare[0][0][1][:2]
	assert.Error(t, notSquare.Validate())
}

func TestOnlyMaskAttention(t *testing.T) {
	tensor := uniformTensor(2, 2, 4)
	masked := OnlyMaskAttention(tensor, DefaultMaskIndex)
	for l := range masked {
		for h := range masked[l] {
			for q, row := range masked[l][h] {
				for _, v := range row {
					if q == 2 {
						assert.Equal(t, 0.25, v)
					} else {
						assert.Equal(t, 0.0, v)
					}
				}
			}
		}
	}
	// Original is not modified.
	assert.Equal(t, 0.25, tensor[0][0][0][0])
}

func TestExample(t *testing.T) {
	e := &Example{Tokens: []string{"<s>", "Paris", "</s>", MaskToken, "</s>"}}
	assert.Equal(t, 3, e.NumTokens())
	assert.True(t, e.HasMaskAt(DefaultMaskIndex, MaskToken))
	assert.True(t, e.HasMaskAt(3, MaskToken))
	assert.False(t, e.HasMaskAt(-1, MaskToken))
	assert.False(t, e.HasMaskAt(10, MaskToken))
	assert.Equal(t, 0, (&Example{Tokens: []string{"x"}}).NumTokens())
}

func TestFormatSpecialChars(t *testing.T) {
	assert.Equal(t,
		[]string{"Hello", " world", "end", "[MASK]"},
		FormatSpecialChars([]string{"ĠHello", "▁world", "end</w>", "[MASK]"}))
}
