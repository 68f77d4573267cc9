// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package margaid draws the training curves of experiments as SVG line plots, using the Margaid library
// (https://github.com/erkkah/margaid/).
//
// Points are organized per "metric type" (e.g.: "loss", "f1"): series of the same metric type share the same
// Y-axis and hence the same plot.
//
// Example: plot all points saved by an experiment:
//
//	points, err := plots.LoadPointsFromDir(experimentDir)
//	if err != nil { ... }
//	mgPlots := margaid.New(1024, 400)
//	plots.AddPoints(mgPlots, plots.NewPoints(points))
//	err = mgPlots.WriteHTML(filepath.Join(outputDir, "training.html"))
package margaid

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/attnlens/attnlens/ui/plots"
	mg "github.com/erkkah/margaid"
	"github.com/pkg/errors"
)

// Plots holds many plots for different metrics, one per metric type.
type Plots struct {
	// Image dimensions.
	Width, Height int

	// XLabel used in all plots. Defaults to "Steps".
	XLabel string

	// PerMetricType holds one plot per metric type.
	PerMetricType map[string]*Plot

	// Default projection of the graph on X, Y axis.
	xProjection, yProjection mg.Projection
}

var _ plots.Plotter = (*Plots)(nil)

// New creates new Margaid plots structure.
//
// It starts empty and can have the points added with Plots.AddPoint or plots.AddPoints.
func New(width, height int) *Plots {
	return &Plots{
		Width:       width,
		Height:      height,
		XLabel:      "Steps",
		xProjection: mg.Lin,
		yProjection: mg.Lin,
	}
}

// LogScaleX sets Plots to use a log scale on the X-axis.
// If not set, it uses linear scale.
func (ps *Plots) LogScaleX() *Plots {
	ps.xProjection = mg.Log
	return ps
}

// LogScaleY sets Plots to use a log scale on the Y-axis.
// If not set, it uses linear scale.
func (ps *Plots) LogScaleY() *Plots {
	ps.yProjection = mg.Log
	return ps
}

// Plot struct holds the series to different metrics that share the same Y axis.
// They are organized per name of the metric.
type Plot struct {
	MetricType string

	// PerName maps a metric name to its series.
	PerName map[string]*mg.Series

	// allPoints collects all points from all series, to configure the axis.
	allPoints *mg.Series

	xProjection, yProjection mg.Projection
}

// AddPoint implements plots.Plotter. Invalid values (NaN or infinity) are ignored.
func (ps *Plots) AddPoint(pt plots.Point) {
	if math.IsNaN(pt.Value) || math.IsInf(pt.Value, 0) || math.IsNaN(pt.Step) || math.IsInf(pt.Step, 0) {
		return
	}
	if ps.PerMetricType == nil {
		ps.PerMetricType = make(map[string]*Plot)
	}
	p, found := ps.PerMetricType[pt.MetricType]
	if !found {
		p = &Plot{
			MetricType:  pt.MetricType,
			PerName:     make(map[string]*mg.Series),
			xProjection: ps.xProjection,
			yProjection: ps.yProjection,
		}
		ps.PerMetricType[pt.MetricType] = p
	}
	p.AddPoint(pt.MetricName, pt.Step, pt.Value)
}

// AddValues is a shortcut to add all `values` as y-coordinates, using their indices plus xOffset as
// x-coordinates.
func (ps *Plots) AddValues(metricName, metricType string, xOffset float64, values []float64) {
	for ii, v := range values {
		ps.AddPoint(plots.Point{MetricName: metricName, MetricType: metricType, Step: xOffset + float64(ii), Value: v})
	}
}

// AddPoint adds a point for the given metric. The `step` is the x-axis, and `value` is the y-axis.
func (p *Plot) AddPoint(metricName string, step, value float64) {
	s, found := p.PerName[metricName]
	if !found {
		s = mg.NewSeries(mg.Titled(metricName))
		p.PerName[metricName] = s
	}
	mgValue := mg.MakeValue(step, value)
	s.Add(mgValue)

	if p.allPoints == nil {
		p.allPoints = mg.NewSeries()
	}
	p.allPoints.Add(mgValue)
}

// NumPoints returns the number of points in the plot, across all series.
func (p *Plot) NumPoints() int {
	if p.allPoints == nil {
		return 0
	}
	return p.allPoints.Size()
}

// SVG renders all series of the plot, returning the SVG code.
func (p *Plot) SVG(width, height int, xLabel string) (string, error) {
	if len(p.PerName) == 0 {
		return "", nil
	}
	names := xslices.SortedKeys(p.PerName)
	allSeries := make([]*mg.Series, 0, len(names))
	for _, name := range names {
		allSeries = append(allSeries, p.PerName[name])
	}
	diagram := mg.New(width, height,
		mg.WithAutorange(mg.XAxis, allSeries...),
		mg.WithProjection(mg.XAxis, p.xProjection),
		mg.WithAutorange(mg.YAxis, allSeries...),
		mg.WithProjection(mg.YAxis, p.yProjection),
		mg.WithInset(70),
		mg.WithPadding(2),
		mg.WithColorScheme(90),
		mg.WithBackgroundColor("#f8f8f8"),
	)
	for _, s := range allSeries {
		diagram.Line(s, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingMarker("square"), mg.UsingStrokeWidth(2))
	}
	diagram.Axis(p.allPoints, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, xLabel)
	diagram.Axis(p.allPoints, mg.YAxis, diagram.ValueTicker('f', 3, 10), true, p.MetricType)
	diagram.Frame()
	if p.MetricType != "" {
		diagram.Title(fmt.Sprintf("%s metrics", p.MetricType))
	}
	if len(names) > 1 || names[0] != "" {
		diagram.Legend(mg.BottomLeft)
	}
	var buf bytes.Buffer
	if err := diagram.Render(&buf); err != nil {
		return "", errors.Wrapf(err, "failed to render plot for %q", p.MetricType)
	}
	return buf.String(), nil
}

// PlotToHTML returns the HTML that includes all plots, one per metric type, sorted by metric type.
func (ps *Plots) PlotToHTML() (string, error) {
	parts := make([]string, 0, len(ps.PerMetricType))
	for _, key := range xslices.SortedKeys(ps.PerMetricType) {
		svg, err := ps.PerMetricType[key].SVG(ps.Width, ps.Height, ps.XLabel)
		if err != nil {
			return "", err
		}
		parts = append(parts, svg)
	}
	return strings.Join(parts, "\n"), nil
}

// WriteHTML writes all plots in one HTML page to filePath, creating the directory if needed.
func (ps *Plots) WriteHTML(filePath string) error {
	body, err := ps.PlotToHTML()
	if err != nil {
		return err
	}
	page := "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"></head><body>\n" + body + "\n</body></html>\n"
	return writeFile(filePath, page)
}

// WriteSVGs writes one SVG file per metric type in dir, named "<prefix><metric type>.svg".
// It returns the paths of the files written.
func (ps *Plots) WriteSVGs(dir, prefix string) ([]string, error) {
	var written []string
	for _, key := range xslices.SortedKeys(ps.PerMetricType) {
		svg, err := ps.PerMetricType[key].SVG(ps.Width, ps.Height, ps.XLabel)
		if err != nil {
			return written, err
		}
		filePath := filepath.Join(dir, prefix+key+".svg")
		if err = writeFile(filePath, svg); err != nil {
			return written, err
		}
		written = append(written, filePath)
	}
	return written, nil
}

func writeFile(filePath, contents string) error {
	dir, err := fsutil.PrepareDir(filepath.Dir(filePath))
	if err != nil {
		return err
	}
	filePath = filepath.Join(dir, filepath.Base(filePath))
	if err = os.WriteFile(filePath, []byte(contents), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write plot to %q", filePath)
	}
	return nil
}
