// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dimreduce projects feature vectors (one row per sample) to a few components for visualization,
// with PCA or t-SNE.
package dimreduce

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// toDense converts rows of equal length to a matrix.
func toDense(x [][]float64) (*mat.Dense, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return nil, errors.New("no data to project")
	}
	numFeatures := len(x[0])
	data := make([]float64, 0, len(x)*numFeatures)
	for ii, row := range x {
		if len(row) != numFeatures {
			return nil, errors.Errorf("row #%d has %d features, but row #0 has %d", ii, len(row), numFeatures)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(x), numFeatures, data), nil
}

// toRows converts a matrix back to rows.
func toRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for ii := range rows {
		rows[ii] = make([]float64, c)
		for jj := range c {
			rows[ii][jj] = m.At(ii, jj)
		}
	}
	return rows
}

// PCA projects the rows of x onto their first k principal components. The data is centered first.
//
// k must be <= min(number of rows, number of features).
func PCA(x [][]float64, k int) ([][]float64, error) {
	a, err := toDense(x)
	if err != nil {
		return nil, err
	}
	n, d := a.Dims()
	if k < 1 || k > min(n, d) {
		return nil, errors.Errorf("PCA with %d components requested for %d samples with %d features", k, n, d)
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(a, nil); !ok {
		return nil, errors.New("PCA failed: singular value decomposition did not converge")
	}
	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	centered := mat.DenseCopyOf(a)
	for jj := range d {
		col := mat.Col(nil, jj, a)
		mean := stat.Mean(col, nil)
		for ii := range n {
			centered.Set(ii, jj, col[ii]-mean)
		}
	}
	var projected mat.Dense
	projected.Mul(centered, vectors.Slice(0, d, 0, k))
	return toRows(&projected), nil
}
