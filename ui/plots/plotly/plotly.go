// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plotly builds interactive Plotly (https://plotly.com/javascript/) figures, using
// github.com/MetalBlueberry/go-plotly, and writes them as standalone HTML pages.
//
// Figures holds the training curves of experiments, one figure per metric type, and implements plots.Plotter.
// Scatter2D and Scatter3D build the projection figures of the meta-analysis (t-SNE and PCA).
package plotly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/attnlens/attnlens/ui/plots"
	"github.com/pkg/errors"
)

// CDN from where the Plotly javascript library is loaded by the generated pages.
var CDN = "https://cdn.plot.ly/plotly-2.34.0.min.js"

// Figures holds one Plotly figure per metric type, each with one line trace per metric name.
type Figures struct {
	figs []*grob.Fig

	// metricsNamesToTrace maps, for each figure, the metric names to their trace index.
	metricsNamesToTrace []map[string]int

	// metricsTypesToFig maps the metric type to the figure index.
	metricsTypesToFig map[string]int

	logScale bool
}

var _ plots.Plotter = (*Figures)(nil)

// New creates an empty set of figures for training curves.
func New() *Figures {
	return &Figures{
		metricsTypesToFig: make(map[string]int),
	}
}

// LogScale sets both axes to use log scale.
func (f *Figures) LogScale() *Figures {
	f.logScale = true
	return f
}

// AddPoint implements plots.Plotter. Invalid values (NaN or infinity) are ignored.
func (f *Figures) AddPoint(pt plots.Point) {
	if math.IsNaN(pt.Value) || math.IsInf(pt.Value, 0) || math.IsNaN(pt.Step) || math.IsInf(pt.Step, 0) {
		return
	}
	figIdx, found := f.metricsTypesToFig[pt.MetricType]
	if !found {
		layout := &grob.Layout{
			Title:  &grob.LayoutTitle{Text: ptypes.S(pt.MetricType)},
			Xaxis:  &grob.LayoutXaxis{Showgrid: ptypes.B(true)},
			Yaxis:  &grob.LayoutYaxis{Showgrid: ptypes.B(true)},
			Legend: &grob.LayoutLegend{},
		}
		if f.logScale {
			layout.Xaxis.Type = grob.LayoutXaxisTypeLog
			layout.Yaxis.Type = grob.LayoutYaxisTypeLog
		}
		f.figs = append(f.figs, &grob.Fig{Layout: layout})
		f.metricsNamesToTrace = append(f.metricsNamesToTrace, make(map[string]int))
		figIdx = len(f.figs) - 1
		f.metricsTypesToFig[pt.MetricType] = figIdx
	}
	fig := f.figs[figIdx]
	nameToTrace := f.metricsNamesToTrace[figIdx]
	traceIdx, found := nameToTrace[pt.MetricName]
	if !found {
		traceIdx = len(fig.Data)
		nameToTrace[pt.MetricName] = traceIdx
		fig.Data = append(fig.Data, &grob.Scatter{
			Name: ptypes.S(pt.MetricName),
			Line: &grob.ScatterLine{
				Shape: grob.ScatterLineShapeLinear,
			},
			Mode: "lines+markers",
			X:    ptypes.DataArray([]float64{}),
			Y:    ptypes.DataArray([]float64{}),
		})
	}
	trace := fig.Data[traceIdx].(*grob.Scatter)
	xs := append(trace.X.Value().([]float64), pt.Step)
	trace.X = ptypes.DataArray(xs)
	ys := append(trace.Y.Value().([]float64), pt.Value)
	trace.Y = ptypes.DataArray(ys)
}

// MetricTypes returns the metric types with a figure, sorted.
func (f *Figures) MetricTypes() []string {
	return xslices.SortedKeys(f.metricsTypesToFig)
}

// Fig returns the figure for the given metric type, or nil if there is none.
func (f *Figures) Fig(metricType string) *grob.Fig {
	figIdx, found := f.metricsTypesToFig[metricType]
	if !found {
		return nil
	}
	return f.figs[figIdx]
}

// WriteHTML writes all figures, sorted by metric type, in one HTML page.
func (f *Figures) WriteHTML(filePath, title string) error {
	figs := make([]*grob.Fig, 0, len(f.figs))
	for _, metricType := range f.MetricTypes() {
		figs = append(figs, f.Fig(metricType))
	}
	return WriteHTML(filePath, title, figs...)
}

// Scatter2D creates a figure with one marker per point (xs[i], ys[i]). If names is given, each point is a
// separate trace named names[i], so it can be identified in the legend and on hover.
func Scatter2D(title string, names []string, xs, ys []float64) (*grob.Fig, error) {
	if len(xs) != len(ys) || (names != nil && len(names) != len(xs)) {
		return nil, errors.Errorf("plotly.Scatter2D: %d names, %d x values and %d y values", len(names), len(xs), len(ys))
	}
	fig := &grob.Fig{
		Layout: &grob.Layout{
			Title: &grob.LayoutTitle{Text: ptypes.S(title)},
			Xaxis: &grob.LayoutXaxis{Showgrid: ptypes.B(true)},
			Yaxis: &grob.LayoutYaxis{Showgrid: ptypes.B(true)},
		},
	}
	if names == nil {
		fig.Data = []ptypes.Trace{&grob.Scatter{Mode: "markers", X: ptypes.DataArray(xs), Y: ptypes.DataArray(ys)}}
		return fig, nil
	}
	for ii, name := range names {
		fig.Data = append(fig.Data, &grob.Scatter{
			Name: ptypes.S(name),
			Mode: "markers",
			X:    ptypes.DataArray(xs[ii : ii+1]),
			Y:    ptypes.DataArray(ys[ii : ii+1]),
		})
	}
	return fig, nil
}

// Scatter3D creates a figure with one marker per row of points, which must have 3 columns. If names is given,
// each point is a separate trace named names[i].
func Scatter3D(title string, names []string, points [][]float64) (*grob.Fig, error) {
	if names != nil && len(names) != len(points) {
		return nil, errors.Errorf("plotly.Scatter3D: %d names for %d points", len(names), len(points))
	}
	xs, ys, zs := make([]float64, len(points)), make([]float64, len(points)), make([]float64, len(points))
	for ii, p := range points {
		if len(p) != 3 {
			return nil, errors.Errorf("plotly.Scatter3D: point #%d has %d coordinates, wanted 3", ii, len(p))
		}
		xs[ii], ys[ii], zs[ii] = p[0], p[1], p[2]
	}
	fig := &grob.Fig{
		Layout: &grob.Layout{
			Title: &grob.LayoutTitle{Text: ptypes.S(title)},
		},
	}
	if names == nil {
		fig.Data = []ptypes.Trace{&grob.Scatter3d{
			Mode: "markers", X: ptypes.DataArray(xs), Y: ptypes.DataArray(ys), Z: ptypes.DataArray(zs),
		}}
		return fig, nil
	}
	for ii, name := range names {
		fig.Data = append(fig.Data, &grob.Scatter3d{
			Name: ptypes.S(name),
			Mode: "markers",
			X:    ptypes.DataArray(xs[ii : ii+1]),
			Y:    ptypes.DataArray(ys[ii : ii+1]),
			Z:    ptypes.DataArray(zs[ii : ii+1]),
		})
	}
	return fig, nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.CDN}}"></script>
</head>
<body>
{{range $ii, $fig := .Figs}}<div id="plot_{{$ii}}"></div>
<script>
(function() {
	const fig = {{$fig}};
	Plotly.newPlot("plot_{{$ii}}", fig);
})();
</script>
{{end}}</body>
</html>
`))

// WriteHTML writes the figures to one standalone HTML page, creating the directory if needed.
func WriteHTML(filePath, title string, figs ...*grob.Fig) error {
	page := struct {
		Title, CDN string
		Figs       []template.JS
	}{Title: title, CDN: CDN}
	for ii, fig := range figs {
		figJSON, err := json.Marshal(fig)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize figure #%d", ii)
		}
		page.Figs = append(page.Figs, template.JS(figJSON))
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return errors.Wrapf(err, "failed to generate HTML page %q", title)
	}
	dir, err := fsutil.PrepareDir(filepath.Dir(filePath))
	if err != nil {
		return err
	}
	filePath = filepath.Join(dir, filepath.Base(filePath))
	if err = os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write plotly page to %q", filePath)
	}
	return nil
}

// String returns a short description of the figures, for logging.
func (f *Figures) String() string {
	return fmt.Sprintf("plotly.Figures(%d metric types)", len(f.figs))
}
