// Package plots holds the training-curve points shared by the plotting backends (pngplot, margaid and
// plotly) and the JSON-lines files they are saved to.
package plots

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PointsFileName is the default file name within an output directory to store
// the plot points of the experiments' training curves.
const PointsFileName = "training_plot_points.json"

// Point represents a plot point of a training curve. It is used to save/load plots.
type Point struct {
	// MetricName of this point.
	MetricName string

	// Short name
	Short string

	// MetricType typically will be "loss", "f1", "precision" or "recall".
	// It's used in plotting to aggregate similar metric types in the same plot.
	MetricType string

	// Step is the optimizer step or the epoch this metric was measured.
	// Usually, this is an int value, stored as a float64.
	Step float64

	// Value is the metric captured.
	Value float64
}

// Plotter is a generic plotter API, implemented by [margaid.Plots] and [plotly.Figures].
type Plotter interface {
	// AddPoint to be drawn. One metric at a time.
	AddPoint(point Point)
}

// AddPoints adds all points to the plotter, in Step order.
func AddPoints(plotter Plotter, points Points) {
	points.Map(func(p *Point) { plotter.AddPoint(*p) })
}

// LoadPointsFromDir loads all plot points saved in file [PointsFileName] in the given directory.
func LoadPointsFromDir(dir string) ([]Point, error) {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err != nil {
		return nil, err
	}
	return LoadPoints(filepath.Join(dir, PointsFileName))
}

// LoadPoints parses all plot points saved in the given file, one JSON encoded Point per line.
// Blank lines are ignored.
func LoadPoints(filePath string) ([]Point, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plot points file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var points []Point
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var point Point
		if err := json.Unmarshal(line, &point); err != nil {
			return nil, errors.Wrapf(err, "plot points file %q, line %d", filePath, lineNum)
		}
		points = append(points, point)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "while reading plot points file %q", filePath)
	}
	return points, nil
}

// CreatePointsWriter returns a channel to append Point values to the given file, creating its directory if
// needed. Close pointWriter when done: errReport then reports the first error (or nil) and is closed.
//
// After an error the remaining points are drained and discarded.
func CreatePointsWriter(filePath string) (pointWriter chan<- Point, errReport <-chan error) {
	pointChan := make(chan Point, 100)
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		f, err := openForAppend(filePath)
		var enc *json.Encoder
		if err == nil {
			enc = json.NewEncoder(f)
		}
		for point := range pointChan {
			if err != nil {
				continue
			}
			if err = enc.Encode(point); err != nil {
				err = errors.Wrapf(err, "failed to write point %+v to %q", point, filePath)
				klog.Errorf("Error: %v", err)
			}
		}
		if f != nil {
			if closeErr := f.Close(); err == nil && closeErr != nil {
				err = errors.Wrapf(closeErr, "failed to close plot points file %q", filePath)
			}
		}
		errChan <- err
	}()
	return pointChan, errChan
}

func openForAppend(filePath string) (*os.File, error) {
	if _, err := fsutil.PrepareDir(filepath.Dir(filePath)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		err = errors.Wrapf(err, "failed to open plot points file %q for append", filePath)
		klog.Errorf("Error: %v", err)
		return nil, err
	}
	return f, nil
}

// Points groups Point values by their Step.
type Points map[float64][]Point

// NewPoints indexes rawPoints by Step.
//
// See LoadPoints and LoadPointsFromDir to read rawPoints from a file.
func NewPoints(rawPoints []Point) Points {
	points := make(Points)
	for _, p := range rawPoints {
		points[p.Step] = append(points[p.Step], p)
	}
	return points
}

// Map calls fn on every point, in Step order. Points are not re-indexed if fn changes their Step:
// use NewPoints(points.Extract()) for that.
func (points Points) Map(fn func(p *Point)) {
	for _, step := range xslices.SortedKeys(points) {
		stepPoints := points[step]
		for ii := range stepPoints {
			fn(&stepPoints[ii])
		}
	}
}

// Filter removes the points for which keep returns false. Steps left empty are removed.
func (points Points) Filter(keep func(p Point) bool) {
	for step, stepPoints := range points {
		stepPoints = slices.DeleteFunc(stepPoints, func(p Point) bool { return !keep(p) })
		if len(stepPoints) == 0 {
			delete(points, step)
			continue
		}
		points[step] = stepPoints
	}
}

// Extract returns all points as a list sorted by Step.
func (points Points) Extract() (rawPoints []Point) {
	points.Map(func(p *Point) {
		rawPoints = append(rawPoints, *p)
	})
	return
}

// Add appends a copy of otherPoints. Duplicates are not checked.
func (points Points) Add(otherPoints Points) {
	otherPoints.Map(func(p *Point) {
		points[p.Step] = append(points[p.Step], *p)
	})
}

// MetricsNames returns the metric names present, sorted by metric type and then by name.
func (points Points) MetricsNames() []string {
	nameToType := make(map[string]string)
	points.Map(func(p *Point) {
		nameToType[p.MetricName] = p.MetricType
	})
	names := xslices.Keys(nameToType)
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(nameToType[a], nameToType[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// TableForMetrics renders a table with one row per Step and one column per metric. Missing values are
// shown as "-".
//
// If metrics is empty all metrics are included, in MetricsNames order.
func (points Points) TableForMetrics(metrics ...string) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := cellStyle.Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
	if len(metrics) == 0 {
		metrics = points.MetricsNames()
	}
	table.Headers(append([]string{"Step"}, metrics...)...)
	for _, step := range xslices.SortedKeys(points) {
		row := make([]string, 1+len(metrics))
		row[0] = fmt.Sprintf("%g", step)
		for ii := range metrics {
			row[ii+1] = "-"
		}
		for _, pt := range points[step] {
			if idx := slices.Index(metrics, pt.MetricName); idx != -1 {
				row[idx+1] = fmt.Sprintf("%.4f", pt.Value)
			}
		}
		table.Row(row...)
	}
	return table.String()
}

func (points Points) String() string {
	return points.TableForMetrics()
}
