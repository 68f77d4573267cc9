// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pngplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
)

func saveAndCheck(t *testing.T, p *plot.Plot, name string) {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "figures", name)
	require.NoError(t, Save(p, filePath))
	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func testStats() *bins.Stats {
	return &bins.Stats{
		Bins:       []bins.BinID{0, 1, 2, bins.MaskBin},
		Mean:       [][]float64{{0.1, 0.2, 0.3}, {0.3, 0.2, 0.1}, {0.2, 0.2, 0.2}, {0.5, 0.4, 0.3}},
		Variance:   [][]float64{{0.01, 0.01, 0.01}, {0.01, 0.01, 0.01}, {0.01, 0.01, 0.01}, {0.01, 0.01, 0.01}},
		StdErr:     [][]float64{{0.05, 0.05, 0.05}, {0.05, 0.05, 0.05}, {0.05, 0.05, 0.05}, {0.05, 0.05, 0.05}},
		NumSamples: 4,
	}
}

func TestBinsMeanPlot(t *testing.T) {
	s := testStats()
	p, err := BinsMeanPlot(s, "Attention per bin", false)
	require.NoError(t, err)
	saveAndCheck(t, p, "bins.png")

	p, err = BinsMeanPlot(s, "Mask to mask", true)
	require.NoError(t, err)
	saveAndCheck(t, p, "mask.svg")

	s.Bins = []bins.BinID{0, 1, 2, 3}
	_, err = BinsMeanPlot(s, "No mask", true)
	require.Error(t, err)
}

// statsWithBins returns statistics for numBins ordinary bins plus the mask bin, with global means given by
// globalMean(index).
func statsWithBins(numBins int, globalMean func(index int) float64) *bins.Stats {
	s := &bins.Stats{NumSamples: 2}
	for ii := range numBins + 1 {
		id := bins.BinID(ii)
		if ii == numBins {
			id = bins.MaskBin
		}
		v := globalMean(ii)
		s.Bins = append(s.Bins, id)
		s.Mean = append(s.Mean, []float64{v, v})
		s.Variance = append(s.Variance, []float64{0, 0})
		s.StdErr = append(s.StdErr, []float64{0, 0})
	}
	return s
}

func TestPlottedBins(t *testing.T) {
	// 11 ordinary bins + mask: the lowest ranked bin (#0) falls out of the top 11, and the mask is dropped.
	s := statsWithBins(11, func(ii int) float64 { return float64(ii + 1) })
	got := plottedBins(s)
	assert.Len(t, got, MaxBinsPlotted-1)
	assert.NotContains(t, got, 0)
	assert.NotContains(t, got, s.Index(bins.MaskBin))

	// Mask ranked last: the 11 best ordinary bins are drawn.
	s = statsWithBins(14, func(ii int) float64 {
		if ii == 14 {
			return 0
		}
		return float64(ii + 1)
	})
	got = plottedBins(s)
	assert.Len(t, got, MaxBinsPlotted)
	assert.Equal(t, 3, got[0])

	// Few bins: all ordinary bins.
	assert.Equal(t, []int{0, 1, 2}, plottedBins(testStats()))

	p, err := BinsMeanPlot(statsWithBins(11, func(ii int) float64 { return float64(ii) }), "Many bins", false)
	require.NoError(t, err)
	saveAndCheck(t, p, "many_bins.png")
}

func TestTokenLengthHistogram(t *testing.T) {
	p, err := TokenLengthHistogram([]int{5, 7, 7, 8, 10, 12, 12, 12, 20}, 5, "")
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "Number of samples: 9")
	saveAndCheck(t, p, "lengths.png")

	_, err = TokenLengthHistogram(nil, 5, "")
	require.Error(t, err)
}

func TestFlowPlots(t *testing.T) {
	curves := []Series{{Name: "a", Values: []float64{0.1, 0.2, 0.3}}, {Name: "b", Values: []float64{0.3, 0.2, 0.1}}}
	p, err := MaskToEntityPlot(curves, []float64{0.2, 0.2, 0.2}, "Mask to entity")
	require.NoError(t, err)
	saveAndCheck(t, p, "entity.png")

	p, err = Token2TokenPlot([][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}, "[MASK]", "Paris")
	require.NoError(t, err)
	saveAndCheck(t, p, "token2token.png")

	p, err = LinesPlot([]Series{{Name: "baseline", Values: []float64{0.5, 0.6, 0.7}}}, "F1", "Epoch", "F1", 1)
	require.NoError(t, err)
	saveAndCheck(t, p, "f1.png")
}

func TestScatterPlots(t *testing.T) {
	series := []DevTestSeries{
		{Metric: "f1", Dev: []float64{0.7, 0.8}, Test: []float64{0.65, 0.78}},
		{Metric: "precision", Dev: []float64{0.75, 0.85}, Test: []float64{0.7, 0.8}},
	}
	p, err := DevTestScatter(series, "Dev vs test")
	require.NoError(t, err)
	saveAndCheck(t, p, "devtest.png")

	_, err = DevTestScatter([]DevTestSeries{{Metric: "f1", Dev: []float64{0.1}}}, "bad")
	require.Error(t, err)

	p, err = CalibrationPlot([]string{"model"}, [][]float64{{0.1, 0.5, 0.9}}, [][]float64{{0.15, 0.45, 0.8}}, "Calibration")
	require.NoError(t, err)
	saveAndCheck(t, p, "calibration.png")

	_, err = CalibrationPlot([]string{"a", "b"}, [][]float64{{0.1}}, [][]float64{{0.1}}, "bad")
	require.Error(t, err)

	p, err = Scatter2D([]float64{1, 2, 3}, []float64{3, 1, 2}, "t-SNE", "x", "y")
	require.NoError(t, err)
	saveAndCheck(t, p, "tsne.png")
}
