// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package margaid

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/attnlens/attnlens/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlots(t *testing.T) {
	ps := New(640, 320)
	raw := []plots.Point{
		{MetricName: "baseline/00.loss/Train", MetricType: "loss", Step: 1, Value: 0.9},
		{MetricName: "baseline/00.loss/Train", MetricType: "loss", Step: 2, Value: 0.5},
		{MetricName: "baseline/01.f1/development", MetricType: "f1", Step: 1, Value: 0.6},
		{MetricName: "baseline/01.f1/development", MetricType: "f1", Step: 2, Value: math.NaN()},
	}
	plots.AddPoints(ps, plots.NewPoints(raw))
	ps.AddValues("robust/01.f1/development", "f1", 1, []float64{0.55, 0.7})
	require.Len(t, ps.PerMetricType, 2)
	assert.Equal(t, 2, ps.PerMetricType["loss"].NumPoints())
	assert.Equal(t, 3, ps.PerMetricType["f1"].NumPoints())
	assert.Len(t, ps.PerMetricType["f1"].PerName, 2)

	html, err := ps.PlotToHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<svg")
	assert.Contains(t, html, "f1 metrics")

	dir := t.TempDir()
	require.NoError(t, ps.WriteHTML(filepath.Join(dir, "html", "training.html")))
	files, err := ps.WriteSVGs(filepath.Join(dir, "svg"), "training_")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "training_f1.svg", filepath.Base(files[0]))
	for _, f := range files {
		_, err := os.Stat(f)
		require.NoError(t, err)
	}
}
