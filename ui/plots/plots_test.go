package plots

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	dir = filepath.Join(dir, "nested", "seed_1")
	writer, errReport := CreatePointsWriter(filepath.Join(dir, PointsFileName))
	raw := []Point{
		{MetricName: "seed/00.loss/Train", Short: "loss", MetricType: "loss", Step: 0, Value: 2.5},
		{MetricName: "seed/01.f1/development", Short: "dev/f1", MetricType: "f1", Step: 0, Value: 0.5},
		{MetricName: "seed/00.loss/Train", Short: "loss", MetricType: "loss", Step: 1, Value: 1.25},
	}
	for _, p := range raw {
		writer <- p
	}
	close(writer)
	require.NoError(t, <-errReport)

	loaded, err := LoadPointsFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, raw, loaded)

	_, err = LoadPoints(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad", PointsFileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(badPath), 0755))
	require.NoError(t, os.WriteFile(badPath, []byte("\n{\"Step\": 1}\nnot json\n"), 0644))
	_, err = LoadPoints(badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestPoints(t *testing.T) {
	points := NewPoints([]Point{
		{MetricName: "b", MetricType: "loss", Step: 2, Value: 3},
		{MetricName: "a", MetricType: "f1", Step: 1, Value: 0.5},
		{MetricName: "b", MetricType: "loss", Step: 1, Value: 4},
	})
	assert.Equal(t, []string{"a", "b"}, points.MetricsNames())
	extracted := points.Extract()
	require.Len(t, extracted, 3)
	assert.Equal(t, 1.0, extracted[0].Step)
	assert.Equal(t, 2.0, extracted[2].Step)

	table := points.TableForMetrics("b")
	assert.True(t, strings.Contains(table, "Step"))
	assert.True(t, strings.Contains(table, "4.0000"))
	assert.True(t, strings.Contains(table, "3.0000"))
	assert.False(t, strings.Contains(table, "0.5000"))

	points.Filter(func(p Point) bool { return p.MetricName == "a" })
	assert.Len(t, points, 1)
	assert.Len(t, points[1], 1)

	other := NewPoints([]Point{{MetricName: "c", Step: 5, Value: 1}})
	points.Add(other)
	assert.Len(t, points.Extract(), 2)

	var collected []Point
	AddPoints(plotterFunc(func(p Point) { collected = append(collected, p) }), points)
	assert.Equal(t, points.Extract(), collected)
}

type plotterFunc func(p Point)

func (fn plotterFunc) AddPoint(p Point) { fn(p) }
