// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bins

import (
	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ExampleBins holds the attention values of one example split by bin, indexed `[layer][head][bin]`, where
// bins follow the order of the Ranges used to build it (mask bin last).
//
// The value slices are views into the original attention tensor, and must not be modified.
type ExampleBins [][][][]float64

// Means holds the per-layer mean attention of one example in each bin, indexed `[bin][layer]`, with bins in
// the order of the Ranges (mask bin last).
type Means [][]float64

// Slice takes, for every layer and head, the attention row of the query at queryIndex (negative values count
// from the end, conventionally -2 for the mask token), and splits it according to ranges.
//
// It only fails if a row is shorter than the ranges require.
func Slice(ranges Ranges, attn attention.Tensor, queryIndex int) (ExampleBins, error) {
	if len(ranges) < 2 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "ranges must have at least one ordinary bin and the mask bin, got %d", len(ranges))
	}
	required := ranges.Mask().End
	result := make(ExampleBins, len(attn))
	for layer, heads := range attn {
		result[layer] = make([][][]float64, len(heads))
		for head := range heads {
			row := attn.Row(layer, head, queryIndex)
			if len(row) < required {
				return nil, errors.Errorf("layer %d, head %d: query row %d has %d positions, but bins require %d",
					layer, head, queryIndex, len(row), required)
			}
			perBin := make([][]float64, len(ranges))
			for ii, b := range ranges {
				perBin[ii] = row[b.Start:b.End:b.End]
			}
			result[layer][head] = perBin
		}
	}
	return result, nil
}

// LayerMeans reduces the values of one example to the mean attention per (bin, layer): each head contributes
// the mean of its values in the bin, and those are averaged over the heads of the layer.
func LayerMeans(eb ExampleBins) Means {
	if len(eb) == 0 || len(eb[0]) == 0 {
		return nil
	}
	numBins := len(eb[0][0])
	means := make(Means, numBins)
	for bin := range numBins {
		means[bin] = make([]float64, len(eb))
		for layer, heads := range eb {
			var sum float64
			for _, perBin := range heads {
				values := perBin[bin]
				sum += floats.Sum(values) / float64(len(values))
			}
			means[bin][layer] = sum / float64(len(heads))
		}
	}
	return means
}
