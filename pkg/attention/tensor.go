// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package attention defines the data model of attention dumps: the per-example attention tensor of a
// transformer, indexed `[layer][head][query][key]`, and the tokens it was computed over.
//
// The tensor is a plain nested slice, owned by whoever loaded it. The analysis packages only borrow it
// read-only, and return sub-slices (views) into it where possible.
package attention

import (
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Tensor holds the attention probabilities of one example, indexed `[layer][head][query][key]`.
//
// For a fixed (layer, head, query) the values along key are a probability distribution, but that is
// not enforced.
type Tensor [][][][]float64

// NumLayers returns the number of layers.
func (t Tensor) NumLayers() int { return len(t) }

// NumHeads returns the number of heads per layer, or 0 for an empty tensor.
func (t Tensor) NumHeads() int {
	if len(t) == 0 {
		return 0
	}
	return len(t[0])
}

// SeqLen returns the number of positions (query or key) of the attention matrices, or 0 for an empty tensor.
func (t Tensor) SeqLen() int {
	if len(t) == 0 || len(t[0]) == 0 {
		return 0
	}
	return len(t[0][0])
}

// Row returns the attention row of the given query position, for the given layer and head.
// A negative query counts from the end: -1 is the last position, -2 is the mask position by convention.
//
// It returns nil if any of the indices is out of range.
func (t Tensor) Row(layer, head, query int) []float64 {
	if layer < 0 || layer >= len(t) || head < 0 || head >= len(t[layer]) {
		return nil
	}
	queries := t[layer][head]
	idx, ok := xslices.NormalizeIndex(query, len(queries))
	if !ok {
		return nil
	}
	return queries[idx]
}

// Validate checks that the tensor is not ragged: every layer has the same number of heads, and every head
// holds a square seqLen x seqLen matrix.
//
// The reductions in the bins package don't call it: loaders do.
func (t Tensor) Validate() error {
	if len(t) == 0 {
		return errors.New("attention tensor has no layers")
	}
	numHeads, seqLen := t.NumHeads(), t.SeqLen()
	if numHeads == 0 || seqLen == 0 {
		return errors.Errorf("attention tensor has %d heads and %d positions, both must be > 0", numHeads, seqLen)
	}
	for layer, heads := range t {
		if len(heads) != numHeads {
			return errors.Errorf("layer %d has %d heads, but layer 0 has %d", layer, len(heads), numHeads)
		}
		for head, queries := range heads {
			if len(queries) != seqLen {
				return errors.Errorf("layer %d, head %d has %d query positions, expected %d", layer, head, len(queries), seqLen)
			}
			for query, keys := range queries {
				if len(keys) != seqLen {
					return errors.Errorf("layer %d, head %d, query %d has %d key positions, expected %d",
						layer, head, query, len(keys), seqLen)
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the tensor.
func (t Tensor) Clone() Tensor {
	c := make(Tensor, len(t))
	for layer, heads := range t {
		c[layer] = make([][][]float64, len(heads))
		for head, queries := range heads {
			c[layer][head] = make([][]float64, len(queries))
			for query, keys := range queries {
				c[layer][head][query] = append([]float64(nil), keys...)
			}
		}
	}
	return c
}

// OnlyMaskAttention returns a copy of the tensor where, for every layer and head, all query rows but the
// one at maskIndex (normally -2) are zeroed. Visualizing it shows only what the mask token attends to.
func OnlyMaskAttention(t Tensor, maskIndex int) Tensor {
	c := t.Clone()
	for _, heads := range c {
		for _, queries := range heads {
			keep, _ := xslices.NormalizeIndex(maskIndex, len(queries))
			for query, keys := range queries {
				if query == keep {
					continue
				}
				clear(keys)
			}
		}
	}
	return c
}
