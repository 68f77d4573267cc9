// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stats

import (
	"github.com/pkg/errors"
)

// OneHot converts rows of scores (logits, or 0/1 labels) into 0/1 indicator rows: an entry is on if its
// score is > 0. If withReject is set, an extra trailing "reject" column is appended, on for rows where no
// other entry is on.
func OneHot(rows [][]float64, withReject bool) [][]int {
	out := make([][]int, len(rows))
	for ii, row := range rows {
		width := len(row)
		if withReject {
			width++
		}
		encoded := make([]int, width)
		anyOn := false
		for jj, score := range row {
			if score > 0 {
				encoded[jj] = 1
				anyOn = true
			}
		}
		if withReject && !anyOn {
			encoded[width-1] = 1
		}
		out[ii] = encoded
	}
	return out
}

// Argmax returns the index of the largest value, the first one in case of ties. It returns -1 for an
// empty slice.
func Argmax[T int | float64](values []T) int {
	best := -1
	for ii, v := range values {
		if best < 0 || v > values[best] {
			best = ii
		}
	}
	return best
}

// ConfusionMatrix counts, for each true class (row) the number of times each class (column) was predicted.
// If nClasses <= 0 it is inferred as 1 + the largest class index seen.
func ConfusionMatrix(trueIdx, predIdx []int, nClasses int) ([][]int, error) {
	if len(trueIdx) != len(predIdx) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d true labels but %d predictions", len(trueIdx), len(predIdx))
	}
	if nClasses <= 0 {
		for ii := range trueIdx {
			nClasses = max(nClasses, trueIdx[ii]+1, predIdx[ii]+1)
		}
	}
	matrix := make([][]int, nClasses)
	for ii := range matrix {
		matrix[ii] = make([]int, nClasses)
	}
	for ii, t := range trueIdx {
		p := predIdx[ii]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, errors.Errorf("example #%d has class indices (true=%d, predicted=%d) out of range [0, %d)", ii, t, p, nClasses)
		}
		matrix[t][p]++
	}
	return matrix, nil
}

// MultilabelConfusion computes one 2x2 confusion matrix per class (column) of the multi-label indicator
// matrices yTrue and yPred. Each matrix is laid out as [[tn, fp], [fn, tp]].
func MultilabelConfusion(yTrue, yPred [][]int) ([][2][2]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d true rows but %d predicted rows", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, nil
	}
	numClasses := len(yTrue[0])
	result := make([][2][2]int, numClasses)
	for ii := range yTrue {
		if len(yTrue[ii]) != numClasses || len(yPred[ii]) != numClasses {
			return nil, errors.Wrapf(ErrDimensionMismatch, "row #%d has %d true and %d predicted classes, expected %d",
				ii, len(yTrue[ii]), len(yPred[ii]), numClasses)
		}
		for class := range numClasses {
			t, p := yTrue[ii][class] != 0, yPred[ii][class] != 0
			result[class][boolIdx(t)][boolIdx(p)]++
		}
	}
	return result, nil
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SplitSingleMulti separates the rows of yTrue/yPred into those whose true labels have exactly one class on
// ("single") and those with more than one ("multi"). Rows with no true label go nowhere.
func SplitSingleMulti(yTrue, yPred [][]int) (singleTrue, singlePred, multiTrue, multiPred [][]int) {
	for ii, row := range yTrue {
		count := 0
		for _, v := range row {
			if v != 0 {
				count++
			}
		}
		switch {
		case count == 1:
			singleTrue = append(singleTrue, row)
			singlePred = append(singlePred, yPred[ii])
		case count > 1:
			multiTrue = append(multiTrue, row)
			multiPred = append(multiPred, yPred[ii])
		}
	}
	return
}

// Flatten turns a confusion matrix into a single feature vector, row-major.
func Flatten(matrix [][]int) []float64 {
	var out []float64
	for _, row := range matrix {
		for _, v := range row {
			out = append(out, float64(v))
		}
	}
	return out
}
