// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pngplot draws the static figures of the analyses with gonum/plot: attention per bin across layers,
// token length histograms, attention flow curves, dev/test scatter plots, calibration curves and 2D
// projections.
//
// Functions build and return a *plot.Plot, which is saved with Save.
package pngplot

import (
	"fmt"
	"image/color"
	"path/filepath"
	"slices"

	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/attnlens/attnlens/pkg/stats"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	// DefaultWidth and DefaultHeight of saved figures.
	DefaultWidth  = 12 * vg.Inch
	DefaultHeight = 9 * vg.Inch

	// MaxBinsPlotted is the number of top ranked bins (by global mean, the mask bin included) considered by
	// BinsMeanPlot. The mask bin is then left out, so at most MaxBinsPlotted ordinary bins are drawn.
	MaxBinsPlotted = 11
)

// Series is a named sequence of values, one per x = offset, offset+1, ...
type Series struct {
	Name   string
	Values []float64
}

// Save the plot to filePath, creating its directory if needed. The format is given by the extension
// (".png", ".svg", ".pdf", ...).
func Save(p *plot.Plot, filePath string) error {
	dir, err := fsutil.PrepareDir(filepath.Dir(filePath))
	if err != nil {
		return err
	}
	filePath = filepath.Join(dir, filepath.Base(filePath))
	if err = p.Save(DefaultWidth, DefaultHeight, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}

// newPlot creates a plot with title, axis labels and a grid.
func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

// layerTicks marks every other layer.
func layerTicks(numLayers int) plot.ConstantTicks {
	var ticks plot.ConstantTicks
	for layer := 0; layer < numLayers; layer += 2 {
		ticks = append(ticks, plot.Tick{Value: float64(layer), Label: fmt.Sprintf("%d", layer)})
	}
	return ticks
}

// seriesXYs converts values to points with x starting at offset.
func seriesXYs(values []float64, offset float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for ii, v := range values {
		xys[ii].X = offset + float64(ii)
		xys[ii].Y = v
	}
	return xys
}

// errorPoints implements the interface required by plotter.NewYErrorBars.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// BinsMeanPlot draws, for each bin, the mean attention from the mask token across layers, with standard error
// bars. Only the ordinary bins among the MaxBinsPlotted bins with the highest global mean are drawn (see
// plottedBins).
//
// If maskToMask is false the ordinary bins are drawn, otherwise only the mask bin (the attention of the mask
// token to itself).
func BinsMeanPlot(s *bins.Stats, title string, maskToMask bool) (*plot.Plot, error) {
	p := newPlot(title, "Layer", "Avg. attention score")
	p.X.Tick.Marker = layerTicks(s.NumLayers())
	p.Legend.Top = true
	global := s.GlobalMeans()
	indices := plottedBins(s)
	if maskToMask {
		indices = []int{s.Index(bins.MaskBin)}
		if indices[0] < 0 {
			return nil, errors.New("statistics have no mask bin")
		}
	}
	for plotted, idx := range indices {
		id := s.Bins[idx]
		points := errorPoints{XYs: seriesXYs(s.Mean[idx], 0), YErrors: make(plotter.YErrors, len(s.StdErr[idx]))}
		for layer, se := range s.StdErr[idx] {
			points.YErrors[layer].Low, points.YErrors[layer].High = se, se
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, errors.Wrapf(err, "bin %s", id)
		}
		bars, err := plotter.NewYErrorBars(points)
		if err != nil {
			return nil, errors.Wrapf(err, "bin %s", id)
		}
		c := plotutil.Color(plotted)
		if maskToMask {
			c = color.Black
		}
		line.Color, bars.Color = c, c
		p.Add(line, bars)
		p.Legend.Add(fmt.Sprintf("%s (acc. attn. %.2f)", id, global[idx]), line)
	}
	return p, nil
}

// plottedBins returns the indices of the ordinary bins drawn by BinsMeanPlot: the MaxBinsPlotted top bins are
// selected first, and the mask bin is dropped from them, which may leave one bin less.
func plottedBins(s *bins.Stats) []int {
	return slices.DeleteFunc(s.TopBins(MaxBinsPlotted), func(idx int) bool { return s.Bins[idx] == bins.MaskBin })
}

// verticalLine returns a line from (x, 0) to (x, height).
func verticalLine(x, height float64, c color.Color, dashes []vg.Length) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: height}})
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(2)
	line.Dashes = dashes
	return line, nil
}

// TokenLengthHistogram draws the distribution of token lengths with numBins histogram bins, and marks the
// minimum, maximum, mean and mean±std.
func TokenLengthHistogram(lengths []int, numBins int, title string) (*plot.Plot, error) {
	if len(lengths) == 0 {
		return nil, errors.New("no token lengths to plot")
	}
	summary := stats.Summarize(stats.Ints(lengths))
	if title == "" {
		title = fmt.Sprintf("Tokens in sentences distribution\nNumber of samples: %d, bins: %d", summary.Count, numBins)
	}
	p := newPlot(title, "Number of tokens in sentence", "Count")
	p.Legend.Top = true
	hist, err := plotter.NewHist(plotter.Values(stats.Ints(lengths)), numBins)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build token length histogram")
	}
	p.Add(hist)
	height := 0.0
	for _, bin := range hist.Bins {
		height = max(height, bin.Weight)
	}
	green := color.RGBA{G: 128, A: 255}
	red := color.RGBA{R: 255, A: 255}
	marks := []struct {
		label  string
		x      float64
		color  color.Color
		dashes []vg.Length
	}{
		{fmt.Sprintf("Max = %.2f", summary.Max), summary.Max, green, nil},
		{fmt.Sprintf("Min = %.2f", summary.Min), summary.Min, green, nil},
		{fmt.Sprintf("μ = %.2f", summary.Mean), summary.Mean, color.Black, nil},
		{fmt.Sprintf("σ = %.2f", summary.Std), summary.Mean + summary.Std, red, []vg.Length{vg.Points(4)}},
		{"", summary.Mean - summary.Std, red, []vg.Length{vg.Points(4)}},
	}
	for _, mark := range marks {
		line, err := verticalLine(mark.x, height, mark.color, mark.dashes)
		if err != nil {
			return nil, err
		}
		p.Add(line)
		if mark.label != "" {
			p.Legend.Add(mark.label, line)
		}
	}
	return p, nil
}

// MaskToEntityPlot draws the per-layer curve of every example in a thin line, and their mean in a thick
// dashed line with markers.
func MaskToEntityPlot(curves []Series, mean []float64, title string) (*plot.Plot, error) {
	p := newPlot(title, "Layer", "Attention score")
	p.X.Tick.Marker = layerTicks(len(mean))
	p.Legend.Top = true
	for ii, c := range curves {
		line, err := plotter.NewLine(seriesXYs(c.Values, 0))
		if err != nil {
			return nil, errors.Wrapf(err, "curve %q", c.Name)
		}
		line.Color = plotutil.Color(ii)
		line.Width = vg.Points(0.5)
		p.Add(line)
	}
	line, points, err := plotter.NewLinePoints(seriesXYs(mean, 0))
	if err != nil {
		return nil, errors.Wrap(err, "mean curve")
	}
	green := color.RGBA{G: 128, A: 255}
	line.Color, line.Width, line.Dashes = green, vg.Points(2), []vg.Length{vg.Points(6), vg.Points(3)}
	points.Color, points.Shape, points.Radius = green, draw.CircleGlyph{}, vg.Points(5)
	p.Add(line, points)
	p.Legend.Add("Mean attention curve", line, points)
	return p, nil
}

// Token2TokenPlot draws the attention from one token to another: one star per head in every layer, and the
// mean over heads as a line.
func Token2TokenPlot(perHead [][]float64, from, to string) (*plot.Plot, error) {
	p := newPlot("Token-to-Token attention", "Layer", "Attention score")
	p.X.Tick.Marker = layerTicks(len(perHead))
	p.Legend.Top = true
	numHeads := 0
	if len(perHead) > 0 {
		numHeads = len(perHead[0])
	}
	for head := range numHeads {
		xys := make(plotter.XYs, 0, len(perHead))
		for layer, heads := range perHead {
			if head < len(heads) {
				xys = append(xys, plotter.XY{X: float64(layer), Y: heads[head]})
			}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "head %d", head)
		}
		scatter.Color, scatter.Shape = plotutil.Color(head), draw.PyramidGlyph{}
		p.Add(scatter)
	}
	means := make([]float64, len(perHead))
	for layer, heads := range perHead {
		means[layer] = floats.Sum(heads) / float64(len(heads))
	}
	line, points, err := plotter.NewLinePoints(seriesXYs(means, 0))
	if err != nil {
		return nil, errors.Wrap(err, "mean over heads")
	}
	blue := color.RGBA{B: 255, A: 255}
	line.Color, points.Color, points.Shape = blue, blue, draw.CircleGlyph{}
	p.Add(line, points)
	p.Legend.Add(fmt.Sprintf("[%s] → [%s]", from, to), line, points)
	return p, nil
}

// LinesPlot draws one line with markers per series, with x starting at xOffset. It is used for metrics
// during training, e.g. the development F1 per epoch of each experiment.
func LinesPlot(series []Series, title, xLabel, yLabel string, xOffset float64) (*plot.Plot, error) {
	p := newPlot(title, xLabel, yLabel)
	p.Legend.Top = true
	for ii, s := range series {
		line, points, err := plotter.NewLinePoints(seriesXYs(s.Values, xOffset))
		if err != nil {
			return nil, errors.Wrapf(err, "series %q", s.Name)
		}
		line.Color, points.Color, points.Shape = plotutil.Color(ii), plotutil.Color(ii), plotutil.Shape(ii)
		line.Dashes = plotutil.Dashes(ii)
		p.Add(line, points)
		p.Legend.Add(s.Name, line, points)
	}
	return p, nil
}
