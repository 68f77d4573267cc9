// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bins partitions the key positions of an attention row into contiguous, near-equal-size position
// bins (plus a singleton bin for the mask position), and aggregates the attention mass falling in each bin:
// first across the heads of each layer of one example, then across examples, with mean, unbiased variance
// and standard error.
//
// The typical flow for each example is:
//
//	ranges, err := bins.NewRanges(numBins, example.NumTokens())
//	exampleBins, err := bins.Slice(ranges, example.Attention, attention.DefaultMaskIndex)
//	err = acc.Add(bins.LayerMeans(exampleBins))
//
// and, once all examples are added, `acc.Stats()`.
package bins

import (
	"math"
	"strconv"

	"github.com/attnlens/attnlens/pkg/stats"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfiguration is returned when the requested number of bins can't be built over the
	// number of tokens available.
	ErrInvalidConfiguration = errors.New("invalid bins configuration")

	// ErrDimensionMismatch is returned when per-example results being aggregated have inconsistent numbers
	// of bins or of layers.
	ErrDimensionMismatch = stats.ErrDimensionMismatch

	// ErrInsufficientSamples is returned when variance or standard error are requested with fewer than
	// 2 examples.
	ErrInsufficientSamples = stats.ErrInsufficientSamples
)

// BinID identifies a bin: ordinary bins are numbered from 0, and MaskBin is the bin of the mask position.
type BinID int

// MaskBin is the BinID of the singleton bin holding the mask position.
const MaskBin BinID = -1

// String implements fmt.Stringer.
func (id BinID) String() string {
	if id == MaskBin {
		return "mask"
	}
	return strconv.Itoa(int(id))
}

// Bin is a contiguous range of key positions, [Start, End).
type Bin struct {
	ID         BinID
	Start, End int
}

// Len returns the number of positions in the bin.
func (b Bin) Len() int { return b.End - b.Start }

// Ranges is an ordered partition of the key positions [0, N] of an example: the ordinary bins 0..B-1
// partition [0, N) and are followed by the mask bin covering exactly [N, N+1).
type Ranges []Bin

// NumBins returns the number of ordinary bins (B), excluding the mask bin.
func (r Ranges) NumBins() int { return len(r) - 1 }

// NumTokens returns the number of positions (N) covered by the ordinary bins.
func (r Ranges) NumTokens() int { return r.Mask().Start }

// Ordinary returns the ordinary bins, excluding the mask bin.
func (r Ranges) Ordinary() []Bin { return r[:len(r)-1] }

// Mask returns the mask bin.
func (r Ranges) Mask() Bin { return r[len(r)-1] }

// IDs returns the bin identifiers in order, the mask bin last.
func (r Ranges) IDs() []BinID {
	ids := make([]BinID, len(r))
	for ii, b := range r {
		ids[ii] = b.ID
	}
	return ids
}

// Names returns the bin names in order: "0", "1", ..., "mask".
func (r Ranges) Names() []string {
	return Names(r.IDs())
}

// Names converts bin identifiers to their display names.
func Names(ids []BinID) []string {
	names := make([]string, len(ids))
	for ii, id := range ids {
		names[ii] = id.String()
	}
	return names
}

// NewRanges partitions numTokens (N) positions into numBins (B) contiguous bins.
//
// Each of the bins 0..B-2 gets `base` positions, where `base` is N/B rounded half-to-even and then
// decremented until `base*B <= N`. The last ordinary bin absorbs the remainder up to N. The mask bin,
// appended at the end, covers position N.
//
// E.g.: B=3, N=5 yields bins {0}, {1}, {2, 3, 4} and the mask bin {5}.
//
// It returns ErrInvalidConfiguration if numBins < 1 or numBins > numTokens.
func NewRanges(numBins, numTokens int) (Ranges, error) {
	if numBins < 1 || numBins > numTokens {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "cannot split %d tokens into %d bins", numTokens, numBins)
	}
	base := int(math.RoundToEven(float64(numTokens) / float64(numBins)))
	for base*numBins > numTokens {
		base--
	}
	ranges := make(Ranges, 0, numBins+1)
	start := 0
	for ii := range numBins - 1 {
		ranges = append(ranges, Bin{ID: BinID(ii), Start: start, End: start + base})
		start += base
	}
	ranges = append(ranges,
		Bin{ID: BinID(numBins - 1), Start: start, End: numTokens},
		Bin{ID: MaskBin, Start: numTokens, End: numTokens + 1})
	return ranges, nil
}

// binIDs returns the identifiers of ranges with numBins ordinary bins, the mask bin last.
func binIDs(numBins int) []BinID {
	ids := make([]BinID, numBins+1)
	for ii := range numBins {
		ids[ii] = BinID(ii)
	}
	ids[numBins] = MaskBin
	return ids
}
