// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stats implements the small statistical reductions used across the analysis tools: column-wise
// mean/variance/standard-error over a set of samples (two-pass and streaming), summaries of scalar
// distributions, probability calibration curves and confusion matrices.
package stats

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDimensionMismatch is returned when vectors that should be aggregated element-wise have different lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInsufficientSamples is returned when the unbiased variance (and hence the standard error) is requested
	// over fewer than 2 samples.
	ErrInsufficientSamples = errors.New("insufficient samples")
)

// MeanVarSE computes, element-wise over the vectors in `samples` (all of the same length), the mean, the
// unbiased (N-1) variance and the standard error `sqrt(variance)/sqrt(N)`.
//
// It is an explicit two-pass reduction: the first pass sums to compute the mean, the second sums the squared
// deviations from it.
func MeanVarSE(samples [][]float64) (mean, variance, stdErr []float64, err error) {
	n := len(samples)
	if n < 2 {
		return nil, nil, nil, errors.Wrapf(ErrInsufficientSamples, "variance requires at least 2 samples, got %d", n)
	}
	dim := len(samples[0])
	mean = make([]float64, dim)
	for ii, sample := range samples {
		if len(sample) != dim {
			return nil, nil, nil, errors.Wrapf(ErrDimensionMismatch,
				"sample #%d has length %d, but sample #0 has length %d", ii, len(sample), dim)
		}
		floats.Add(mean, sample)
	}
	floats.Scale(1/float64(n), mean)

	variance = make([]float64, dim)
	for _, sample := range samples {
		for jj, x := range sample {
			d := x - mean[jj]
			variance[jj] += d * d
		}
	}
	floats.Scale(1/float64(n-1), variance)

	stdErr = make([]float64, dim)
	for jj, v := range variance {
		stdErr[jj] = stat.StdErr(math.Sqrt(v), float64(n))
	}
	return mean, variance, stdErr, nil
}

// Running accumulates element-wise mean and variance of a stream of equally sized vectors, using Welford's
// update. Two Running accumulators over disjoint streams can be combined with Merge.
//
// The zero value is ready to use: its dimension is set by the first vector added.
type Running struct {
	n        int
	mean, m2 []float64
}

// Count returns the number of vectors added so far.
func (r *Running) Count() int { return r.n }

// Dim returns the dimension of the vectors accumulated, or 0 if nothing was added yet.
func (r *Running) Dim() int { return len(r.mean) }

// Add one vector to the accumulator.
func (r *Running) Add(x []float64) error {
	if r.n == 0 {
		r.mean = make([]float64, len(x))
		r.m2 = make([]float64, len(x))
	} else if len(x) != len(r.mean) {
		return errors.Wrapf(ErrDimensionMismatch, "vector of length %d added to accumulator of length %d", len(x), len(r.mean))
	}
	r.n++
	invN := 1 / float64(r.n)
	for ii, v := range x {
		delta := v - r.mean[ii]
		r.mean[ii] += delta * invN
		r.m2[ii] += delta * (v - r.mean[ii])
	}
	return nil
}

// Merge the statistics of `other` into `r`. `other` is not changed.
func (r *Running) Merge(other *Running) error {
	if other == nil || other.n == 0 {
		return nil
	}
	if r.n == 0 {
		r.n = other.n
		r.mean = append([]float64(nil), other.mean...)
		r.m2 = append([]float64(nil), other.m2...)
		return nil
	}
	if len(other.mean) != len(r.mean) {
		return errors.Wrapf(ErrDimensionMismatch, "merging accumulators of lengths %d and %d", len(r.mean), len(other.mean))
	}
	nA, nB := float64(r.n), float64(other.n)
	total := nA + nB
	for ii := range r.mean {
		delta := other.mean[ii] - r.mean[ii]
		r.mean[ii] += delta * nB / total
		r.m2[ii] += other.m2[ii] + delta*delta*nA*nB/total
	}
	r.n += other.n
	return nil
}

// Mean returns a copy of the current element-wise mean.
func (r *Running) Mean() []float64 {
	return append([]float64(nil), r.mean...)
}

// VarianceSE returns the unbiased element-wise variance and the standard error of the mean.
func (r *Running) VarianceSE() (variance, stdErr []float64, err error) {
	if r.n < 2 {
		return nil, nil, errors.Wrapf(ErrInsufficientSamples, "variance requires at least 2 samples, got %d", r.n)
	}
	variance = make([]float64, len(r.m2))
	stdErr = make([]float64, len(r.m2))
	for ii, m2 := range r.m2 {
		variance[ii] = m2 / float64(r.n-1)
		stdErr[ii] = stat.StdErr(math.Sqrt(variance[ii]), float64(r.n))
	}
	return variance, stdErr, nil
}

// Summary of a distribution of scalar values.
type Summary struct {
	Count     int
	Mean, Std float64 // Std is the population standard deviation.
	Min, Max  float64
}

// Summarize the given values. The standard deviation is the population one (denominator N), which is how
// token-length histograms are annotated.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count: len(values),
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
}

// Ints converts integer values to float64, a convenience to Summarize token lengths.
func Ints(values []int) []float64 {
	out := make([]float64, len(values))
	for ii, v := range values {
		out[ii] = float64(v)
	}
	return out
}
