// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package flow measures how attention flows between specific tokens across the layers of the model:
// from one token to another, and from the mask token to the entity span.
package flow

import (
	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/attnlens/attnlens/pkg/stats"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// lastIndex returns the position of the last occurrence of token, or -1.
func lastIndex(tokens []string, token string) int {
	for ii := len(tokens) - 1; ii >= 0; ii-- {
		if tokens[ii] == token {
			return ii
		}
	}
	return -1
}

// Token2Token returns, for every layer and head, the attention from token `from` (the query) to token `to`
// (the key). If a token occurs more than once, its last occurrence is used.
func Token2Token(tokens []string, t attention.Tensor, from, to string) ([][]float64, error) {
	query, key := lastIndex(tokens, from), lastIndex(tokens, to)
	if query < 0 {
		return nil, errors.Errorf("token %q not found", from)
	}
	if key < 0 {
		return nil, errors.Errorf("token %q not found", to)
	}
	out := make([][]float64, t.NumLayers())
	for layer, heads := range t {
		out[layer] = make([]float64, len(heads))
		for head := range heads {
			row := t.Row(layer, head, query)
			if key >= len(row) {
				return nil, errors.Errorf("layer %d, head %d: key %d out of range for %d positions", layer, head, key, len(row))
			}
			out[layer][head] = row[key]
		}
	}
	return out, nil
}

// LayerMean averages a `[layer][head]` matrix over the heads, returning one value per layer.
func LayerMean(perHead [][]float64) []float64 {
	return xslices.Map(perHead, func(heads []float64) float64 { return stat.Mean(heads, nil) })
}

// EntitySpan returns the first and last position of the entity, delimited by the first two
// attention.EntityToken markers (the markers themselves are excluded).
//
// For a single token entity, start == end.
func EntitySpan(tokens []string) (start, end int, err error) {
	var markers []int
	for ii, token := range tokens {
		if token == attention.EntityToken {
			markers = append(markers, ii)
			if len(markers) == 2 {
				break
			}
		}
	}
	if len(markers) < 2 {
		return 0, 0, errors.Errorf("expected two %s markers, found %d", attention.EntityToken, len(markers))
	}
	start, end = markers[0]+1, markers[1]-1
	if end < start {
		return 0, 0, errors.Errorf("empty entity between %s markers at %d and %d", attention.EntityToken, markers[0], markers[1])
	}
	return start, end, nil
}

// MaskToEntity returns, for each layer, the attention from the mask row (at maskIndex) to the entity
// positions [start, end]: each head's mean over the entity positions, averaged over the heads.
func MaskToEntity(t attention.Tensor, start, end, maskIndex int) ([]float64, error) {
	out := make([]float64, t.NumLayers())
	for layer, heads := range t {
		var sum float64
		for head := range heads {
			row := t.Row(layer, head, maskIndex)
			if end >= len(row) || start < 0 || start > end {
				return nil, errors.Errorf("layer %d, head %d: entity span [%d, %d] out of range for %d positions",
					layer, head, start, end, len(row))
			}
			sum += stat.Mean(row[start:end+1], nil)
		}
		out[layer] = sum / float64(len(heads))
	}
	return out, nil
}

// Curve is a per-layer value for one example.
type Curve struct {
	Name   string
	Values []float64
}

// EntityStartPosition is the entity start position separated by SplitByEntityPosition: the entity
// immediately follows the first token and its marker.
const EntityStartPosition = 2

// SplitByEntityPosition computes the mask-to-entity curve of every example, and splits them between those
// whose entity starts at EntityStartPosition (atStart) and the rest.
//
// If includeOnlyTokenLen > 0, only examples with exactly that many tokens in total, the trailing mask and end
// tokens included (len(Tokens), not attention.Example.NumTokens), are considered. Examples without a well-formed entity span are skipped, and counted in skipped.
func SplitByEntityPosition(examples []attention.Example, maskIndex, includeOnlyTokenLen int) (atStart, rest []Curve, skipped int, err error) {
	for ii := range examples {
		e := &examples[ii]
		if includeOnlyTokenLen > 0 && len(e.Tokens) != includeOnlyTokenLen {
			continue
		}
		start, end, spanErr := EntitySpan(e.Tokens)
		if spanErr != nil {
			skipped++
			continue
		}
		values, err := MaskToEntity(e.Attention, start, end, maskIndex)
		if err != nil {
			return nil, nil, skipped, errors.WithMessagef(err, "example %q", e.Name)
		}
		curve := Curve{Name: e.Name, Values: values}
		if start == EntityStartPosition {
			atStart = append(atStart, curve)
		} else {
			rest = append(rest, curve)
		}
	}
	return atStart, rest, skipped, nil
}

// MeanCurve returns the element-wise mean of the curves, which must all have the same length.
func MeanCurve(curves []Curve) ([]float64, error) {
	if len(curves) == 0 {
		return nil, errors.New("no curves to average")
	}
	mean := make([]float64, len(curves[0].Values))
	for _, c := range curves {
		if len(c.Values) != len(mean) {
			return nil, errors.Wrapf(stats.ErrDimensionMismatch, "curve %q has %d layers, expected %d", c.Name, len(c.Values), len(mean))
		}
		floats.Add(mean, c.Values)
	}
	floats.Scale(1/float64(len(curves)), mean)
	return mean, nil
}
