// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bins

import (
	"slices"

	"github.com/attnlens/attnlens/pkg/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats holds the cross-example statistics of the per-layer bin means, indexed `[bin][layer]`, with the
// bins in the order of Bins (mask bin last).
type Stats struct {
	Bins                   []BinID
	Mean, Variance, StdErr [][]float64
	NumSamples             int
}

// NumLayers returns the number of layers in the statistics.
func (s *Stats) NumLayers() int {
	if len(s.Mean) == 0 {
		return 0
	}
	return len(s.Mean[0])
}

// Index returns the position of the given bin in Bins, or -1 if it is not there.
func (s *Stats) Index(id BinID) int {
	return slices.Index(s.Bins, id)
}

// GlobalMeans returns, for each bin, the mean over layers of the bin's mean attention. It gives a rough
// idea of how much attention each bin receives overall.
func (s *Stats) GlobalMeans() []float64 {
	global := make([]float64, len(s.Mean))
	for ii, layers := range s.Mean {
		global[ii] = stat.Mean(layers, nil)
	}
	return global
}

// TopBins returns the indices (into Bins) of the k bins with the highest global mean, in bin order.
// If k is larger than the number of bins, all indices are returned.
func (s *Stats) TopBins(k int) []int {
	global := s.GlobalMeans()
	indices := make([]int, len(global))
	if k >= len(global) {
		for ii := range indices {
			indices[ii] = ii
		}
		return indices
	}
	floats.Argsort(global, indices)
	top := slices.Clone(indices[len(indices)-max(k, 0):])
	slices.Sort(top)
	return top
}

// Aggregate computes, for each (bin, layer), the mean, unbiased variance and standard error of the
// per-example means, with an explicit two-pass reduction.
//
// It returns ErrInsufficientSamples with fewer than 2 examples, and ErrDimensionMismatch if examples have
// different numbers of bins or layers.
func Aggregate(examples []Means) (*Stats, error) {
	if len(examples) < 2 {
		return nil, errors.Wrapf(ErrInsufficientSamples, "aggregating %d examples", len(examples))
	}
	numBins := len(examples[0])
	if numBins == 0 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "example #0 has no bins")
	}
	for ii, m := range examples {
		if len(m) != numBins {
			return nil, errors.Wrapf(ErrDimensionMismatch, "example #%d has %d bins, but example #0 has %d", ii, len(m), numBins)
		}
	}
	s := &Stats{
		Bins:       binIDs(numBins - 1),
		Mean:       make([][]float64, numBins),
		Variance:   make([][]float64, numBins),
		StdErr:     make([][]float64, numBins),
		NumSamples: len(examples),
	}
	samples := make([][]float64, len(examples))
	for bin := range numBins {
		for ii, m := range examples {
			samples[ii] = m[bin]
		}
		var err error
		s.Mean[bin], s.Variance[bin], s.StdErr[bin], err = stats.MeanVarSE(samples)
		if err != nil {
			return nil, errors.WithMessagef(err, "bin %s", s.Bins[bin])
		}
	}
	return s, nil
}

// Accumulator aggregates per-example Means as they are computed, without keeping them in memory.
// Accumulators fed by different goroutines (each with its own) can be combined with Merge.
//
// The zero value is ready to use. It is not safe for concurrent use.
type Accumulator struct {
	bins []stats.Running
}

// Count returns the number of examples added (directly or through Merge).
func (acc *Accumulator) Count() int {
	if len(acc.bins) == 0 {
		return 0
	}
	return acc.bins[0].Count()
}

// Add the means of one example. The shape of m is fully validated (checkShape) before any bin is updated,
// so on a dimension mismatch the accumulator is left unchanged.
func (acc *Accumulator) Add(m Means) error {
	if len(m) == 0 {
		return errors.Wrapf(ErrDimensionMismatch, "example has no bins")
	}
	if err := acc.checkShape(len(m), func(bin int) int { return len(m[bin]) }); err != nil {
		return err
	}
	if acc.bins == nil {
		acc.bins = make([]stats.Running, len(m))
	}
	for bin, layers := range m {
		if err := acc.bins[bin].Add(layers); err != nil {
			return errors.WithMessagef(err, "bin #%d", bin)
		}
	}
	return nil
}

// Merge the examples accumulated by other into acc. other is not changed. As with Add, shapes are validated
// before any bin is updated.
func (acc *Accumulator) Merge(other *Accumulator) error {
	if other == nil || other.Count() == 0 {
		return nil
	}
	if err := acc.checkShape(len(other.bins), func(bin int) int { return other.bins[bin].Dim() }); err != nil {
		return err
	}
	if acc.bins == nil {
		acc.bins = make([]stats.Running, len(other.bins))
	}
	for bin := range acc.bins {
		if err := acc.bins[bin].Merge(&other.bins[bin]); err != nil {
			return errors.WithMessagef(err, "bin #%d", bin)
		}
	}
	return nil
}

// checkShape verifies that the given number of bins and the number of layers of each bin are compatible
// with what was accumulated so far, and are consistent among themselves.
func (acc *Accumulator) checkShape(numBins int, numLayers func(bin int) int) error {
	want := numLayers(0)
	if acc.Count() > 0 {
		if numBins != len(acc.bins) {
			return errors.Wrapf(ErrDimensionMismatch, "got %d bins, but accumulator has %d", numBins, len(acc.bins))
		}
		want = acc.bins[0].Dim()
	}
	for bin := range numBins {
		if got := numLayers(bin); got != want {
			return errors.Wrapf(ErrDimensionMismatch, "bin #%d has %d layers, expected %d", bin, got, want)
		}
	}
	return nil
}

// Stats returns the statistics of the examples accumulated so far.
// It returns ErrInsufficientSamples with fewer than 2 examples.
func (acc *Accumulator) Stats() (*Stats, error) {
	n := acc.Count()
	if n < 2 {
		return nil, errors.Wrapf(ErrInsufficientSamples, "aggregating %d examples", n)
	}
	s := &Stats{
		Bins:       binIDs(len(acc.bins) - 1),
		Mean:       make([][]float64, len(acc.bins)),
		Variance:   make([][]float64, len(acc.bins)),
		StdErr:     make([][]float64, len(acc.bins)),
		NumSamples: n,
	}
	for bin := range acc.bins {
		s.Mean[bin] = acc.bins[bin].Mean()
		var err error
		s.Variance[bin], s.StdErr[bin], err = acc.bins[bin].VarianceSE()
		if err != nil {
			return nil, errors.WithMessagef(err, "bin %s", s.Bins[bin])
		}
	}
	return s, nil
}
