// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pngplot

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// DevTestSeries are the final scores of a metric (e.g.: "f1") on the development and test sets, one pair per
// experiment.
type DevTestSeries struct {
	Metric    string
	Dev, Test []float64
}

// identityLine adds a dashed y = x line covering [lo, hi].
func identityLine(p *plot.Plot, lo, hi float64, label string) error {
	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	line.Color = color.Black
	line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

// DevTestScatter plots test against development scores, one color per metric and one glyph shape per
// experiment (in the order of the values), plus the identity line.
func DevTestScatter(series []DevTestSeries, title string) (*plot.Plot, error) {
	p := newPlot(title, "Development", "Test")
	p.Legend.Top = true
	p.Legend.Left = true
	var all []float64
	for _, s := range series {
		if len(s.Dev) != len(s.Test) {
			return nil, errors.Errorf("metric %q has %d development and %d test scores", s.Metric, len(s.Dev), len(s.Test))
		}
		all = append(all, s.Dev...)
		all = append(all, s.Test...)
	}
	if len(all) == 0 {
		return nil, errors.New("no scores to plot")
	}
	if err := identityLine(p, floats.Min(all)-0.01, floats.Max(all)+0.01, "Identity line"); err != nil {
		return nil, err
	}
	for ii, s := range series {
		xys := make(plotter.XYs, len(s.Dev))
		for jj := range s.Dev {
			xys[jj] = plotter.XY{X: s.Dev[jj], Y: s.Test[jj]}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "metric %q", s.Metric)
		}
		metricColor := plotutil.Color(ii)
		scatter.GlyphStyleFunc = func(jj int) (style draw.GlyphStyle) {
			style = scatter.GlyphStyle
			style.Color = metricColor
			style.Shape = plotutil.Shape(jj)
			style.Radius = vg.Points(5)
			return
		}
		scatter.Color = metricColor
		p.Add(scatter)
		p.Legend.Add(s.Metric, scatter)
	}
	return p, nil
}

// CalibrationPlot draws one reliability curve (fraction of positives against mean predicted probability)
// per model, plus the ideal calibration line.
func CalibrationPlot(names []string, probTrue, probPred [][]float64, title string) (*plot.Plot, error) {
	if len(names) != len(probTrue) || len(names) != len(probPred) {
		return nil, errors.Errorf("%d names for %d/%d calibration curves", len(names), len(probTrue), len(probPred))
	}
	p := newPlot(title, "Average predicted probability in each bin", "Ratio of positives")
	p.Legend.Top = true
	p.Legend.Left = true
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1
	if err := identityLine(p, 0, 1, "Ideally calibrated"); err != nil {
		return nil, err
	}
	for ii, name := range names {
		if len(probTrue[ii]) != len(probPred[ii]) {
			return nil, errors.Errorf("model %q: %d fractions of positives but %d mean probabilities", name, len(probTrue[ii]), len(probPred[ii]))
		}
		xys := make(plotter.XYs, len(probTrue[ii]))
		for jj := range xys {
			xys[jj] = plotter.XY{X: probPred[ii][jj], Y: probTrue[ii][jj]}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "model %q", name)
		}
		line.Color, points.Color, points.Shape = plotutil.Color(ii), plotutil.Color(ii), plotutil.Shape(ii)
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}
	return p, nil
}

// Scatter2D plots points (xs[i], ys[i]), e.g. two components of a t-SNE or PCA projection.
func Scatter2D(xs, ys []float64, title, xLabel, yLabel string) (*plot.Plot, error) {
	if len(xs) != len(ys) {
		return nil, errors.Errorf("%d x values but %d y values", len(xs), len(ys))
	}
	p := newPlot(title, xLabel, yLabel)
	xys := make(plotter.XYs, len(xs))
	for ii := range xs {
		xys[ii] = plotter.XY{X: xs[ii], Y: ys[ii]}
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scatter plot")
	}
	scatter.Radius = vg.Points(4)
	scatter.Color = plotutil.Color(0)
	p.Add(scatter)
	return p, nil
}
