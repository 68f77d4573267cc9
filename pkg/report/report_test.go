// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testStats() *bins.Stats {
	return &bins.Stats{
		Bins:       []bins.BinID{0, 1, bins.MaskBin},
		Mean:       [][]float64{{0.1, 0.3}, {0.2, 0.4}, {0.5, 0.7}},
		Variance:   [][]float64{{0.01, 0.02}, {0.03, 0.04}, {0.05, 0.06}},
		StdErr:     [][]float64{{0.001, 0.002}, {0.003, 0.004}, {0.005, 0.006}},
		NumSamples: 10,
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	_, err = ParseFormat("pickle")
	require.Error(t, err)
}

func TestRowsAndFrame(t *testing.T) {
	rows := Rows(testStats())
	require.Len(t, rows, 6)
	assert.Equal(t, Row{Bin: "mask", Layer: 1, Mean: 0.7, Variance: 0.06, StdErr: 0.006}, rows[5])

	df := BinStatsFrame(testStats())
	require.NoError(t, df.Err)
	assert.Equal(t, 6, df.Nrow())
	assert.Equal(t, []string{"bin", "layer", "mean", "variance", "stderr"}, df.Names())
	assert.InDeltaSlice(t, []float64{0.1, 0.3, 0.2, 0.4, 0.5, 0.7}, df.Col("mean").Float(), 1e-12)
}

func TestWriteFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := testStats()

	csvPath, err := Write(dir, s, CSV)
	require.NoError(t, err)
	assert.Equal(t, "bin_stats_2.csv", filepath.Base(csvPath))
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	df := dataframe.ReadCSV(f)
	_ = f.Close()
	require.NoError(t, df.Err)
	assert.Equal(t, 6, df.Nrow())
	assert.InDeltaSlice(t, []float64{0.01, 0.02, 0.03, 0.04, 0.05, 0.06}, df.Col("variance").Float(), 1e-12)

	xlsxPath, err := Write(dir, s, XLSX)
	require.NoError(t, err)
	wb, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	assert.Equal(t, []string{SheetMean, SheetVariance, SheetStdErr}, wb.GetSheetList())
	grid, err := wb.GetRows(SheetMean)
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, []string{"layer", "0", "1", "mask"}, grid[0])
	assert.Equal(t, []string{"1", "0.3", "0.4", "0.7"}, grid[2])

	parquetPath, err := Write(dir, s, Parquet)
	require.NoError(t, err)
	rows, err := ReadParquet(parquetPath)
	require.NoError(t, err)
	assert.Equal(t, Rows(s), rows)

	_, err = Write(dir, s, Format("pickle"))
	require.Error(t, err)
}

func TestGlobalMeansAndSentences(t *testing.T) {
	dir := t.TempDir()
	filePath, err := WriteGlobalMeans(dir, testStats())
	require.NoError(t, err)
	assert.Equal(t, "bins_2.txt", filepath.Base(filePath))
	global, err := ReadGlobalMeans(filePath)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, global["0"], 1e-12)
	assert.InDelta(t, 0.3, global["1"], 1e-12)
	assert.InDelta(t, 0.6, global["mask"], 1e-12)

	filePath, err = WriteSentences(dir, 2, []string{"Paris is in [MASK] .", "Bob works at [MASK] ."})
	require.NoError(t, err)
	contents, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris is in [MASK] .", "Bob works at [MASK] ."}, strings.Split(strings.TrimSpace(string(contents)), "\n"))
}
