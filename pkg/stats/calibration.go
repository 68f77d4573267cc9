// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stats

import (
	"math"

	"github.com/pkg/errors"
)

// Sigmoid returns 1/(1+exp(-x)).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// LogitsToProbs applies Sigmoid element-wise to a batch of logits, returning a new matrix.
func LogitsToProbs(logits [][]float64) [][]float64 {
	probs := make([][]float64, len(logits))
	for ii, row := range logits {
		probs[ii] = make([]float64, len(row))
		for jj, x := range row {
			probs[ii][jj] = Sigmoid(x)
		}
	}
	return probs
}

// CalibrationCurve computes the reliability diagram of binary predictions: `yProb` is split into `nBins`
// uniform bins over [0, 1]; for each non-empty bin it returns the fraction of positives (`probTrue`) and
// the mean predicted probability (`probPred`). Empty bins are dropped, so the returned slices may be
// shorter than `nBins`.
//
// A probability equal to an inner bin edge falls in the lower bin.
func CalibrationCurve(yTrue, yProb []float64, nBins int) (probTrue, probPred []float64, err error) {
	if len(yTrue) != len(yProb) {
		return nil, nil, errors.Wrapf(ErrDimensionMismatch, "%d labels but %d probabilities", len(yTrue), len(yProb))
	}
	if nBins < 1 {
		return nil, nil, errors.Errorf("CalibrationCurve requires nBins >= 1, got %d", nBins)
	}
	sums := make([]float64, nBins)
	trues := make([]float64, nBins)
	totals := make([]int, nBins)
	for ii, p := range yProb {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return nil, nil, errors.Errorf("probability #%d is %g, it must be in the range [0, 1]", ii, p)
		}
		label := yTrue[ii]
		if label != 0 && label != 1 {
			return nil, nil, errors.Errorf("label #%d is %g, only binary labels (0 or 1) are supported", ii, label)
		}
		bin := calibrationBin(p, nBins)
		sums[bin] += p
		trues[bin] += label
		totals[bin]++
	}
	for bin, total := range totals {
		if total == 0 {
			continue
		}
		probTrue = append(probTrue, trues[bin]/float64(total))
		probPred = append(probPred, sums[bin]/float64(total))
	}
	return probTrue, probPred, nil
}

// calibrationBin returns the number of inner edges (k/nBins, k=1..nBins-1) strictly smaller than p.
func calibrationBin(p float64, nBins int) int {
	bin := 0
	for k := 1; k < nBins; k++ {
		if float64(k)/float64(nBins) < p {
			bin = k
		} else {
			break
		}
	}
	return bin
}
