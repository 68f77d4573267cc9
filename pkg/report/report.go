// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package report exports the statistics of an attention-binning analysis to files: a long-format table
// (one row per bin and layer) as CSV, XLSX or Parquet, the global mean per bin as JSON, and the analyzed
// sentences as text.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// Format of an exported statistics table.
type Format string

const (
	CSV     Format = "csv"
	XLSX    Format = "xlsx"
	Parquet Format = "parquet"
)

// Formats lists all supported export formats.
var Formats = []Format{CSV, XLSX, Parquet}

// ParseFormat converts a format name (as in Formats) to a Format.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", errors.Errorf("unknown export format %q, valid formats are %v", name, Formats)
}

// Row of the long-format statistics table.
type Row struct {
	Bin      string  `dataframe:"bin" parquet:"bin" json:"bin"`
	Layer    int     `dataframe:"layer" parquet:"layer" json:"layer"`
	Mean     float64 `dataframe:"mean" parquet:"mean" json:"mean"`
	Variance float64 `dataframe:"variance" parquet:"variance" json:"variance"`
	StdErr   float64 `dataframe:"stderr" parquet:"stderr" json:"stderr"`
}

// Rows flattens the statistics to one Row per (bin, layer), in bin order.
func Rows(s *bins.Stats) []Row {
	rows := make([]Row, 0, len(s.Bins)*s.NumLayers())
	for ii, id := range s.Bins {
		for layer := range s.Mean[ii] {
			rows = append(rows, Row{
				Bin:      id.String(),
				Layer:    layer,
				Mean:     s.Mean[ii][layer],
				Variance: s.Variance[ii][layer],
				StdErr:   s.StdErr[ii][layer],
			})
		}
	}
	return rows
}

// BinStatsFrame converts the statistics to a DataFrame with columns bin, layer, mean, variance and stderr.
func BinStatsFrame(s *bins.Stats) dataframe.DataFrame {
	return dataframe.LoadStructs(Rows(s))
}

// FileName returns the conventional name of the statistics table for the given number of bins and format.
func FileName(numBins int, format Format) string {
	return fmt.Sprintf("bin_stats_%d.%s", numBins, format)
}

// Write the statistics table to dir in the given format, and returns the path of the file written.
func Write(dir string, s *bins.Stats, format Format) (string, error) {
	dir, err := fsutil.PrepareDir(dir)
	if err != nil {
		return "", err
	}
	filePath := filepath.Join(dir, FileName(len(s.Bins)-1, format))
	switch format {
	case CSV:
		err = WriteCSV(filePath, s)
	case XLSX:
		err = WriteXLSX(filePath, s)
	case Parquet:
		err = WriteParquet(filePath, s)
	default:
		err = errors.Errorf("unknown export format %q", format)
	}
	return filePath, err
}

// WriteCSV writes the long-format statistics table as CSV, with a header line.
func WriteCSV(filePath string, s *bins.Stats) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	df := BinStatsFrame(s)
	if df.Err != nil {
		_ = f.Close()
		return errors.Wrap(df.Err, "failed to build statistics table")
	}
	if err = df.WriteCSV(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write CSV to %q", filePath)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", filePath)
}

// GlobalMeansFileName is the name of the global means JSON file for the given number of (ordinary) bins.
func GlobalMeansFileName(numBins int) string {
	return fmt.Sprintf("bins_%d.txt", numBins)
}

// WriteGlobalMeans writes a JSON object mapping each bin name to the mean over layers of its mean attention,
// to the file GlobalMeansFileName in dir. It returns the path of the file written.
func WriteGlobalMeans(dir string, s *bins.Stats) (string, error) {
	dir, err := fsutil.PrepareDir(dir)
	if err != nil {
		return "", err
	}
	global := make(map[string]float64, len(s.Bins))
	for ii, mean := range s.GlobalMeans() {
		global[s.Bins[ii].String()] = mean
	}
	contents, err := json.Marshal(global)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize global means")
	}
	filePath := filepath.Join(dir, GlobalMeansFileName(len(s.Bins)-1))
	if err = os.WriteFile(filePath, contents, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write global means to %q", filePath)
	}
	return filePath, nil
}

// ReadGlobalMeans reads a file written by WriteGlobalMeans.
func ReadGlobalMeans(filePath string) (map[string]float64, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read global means from %q", filePath)
	}
	var global map[string]float64
	if err = json.Unmarshal(contents, &global); err != nil {
		return nil, errors.Wrapf(err, "failed to parse global means in %q", filePath)
	}
	return global, nil
}

// SentencesFileName is the name of the file listing the sentences analyzed with the given number of bins.
func SentencesFileName(numBins int) string {
	return fmt.Sprintf("sentences_%d", numBins)
}

// WriteSentences writes one sentence per line to the file SentencesFileName in dir, and returns its path.
func WriteSentences(dir string, numBins int, sentences []string) (string, error) {
	dir, err := fsutil.PrepareDir(dir)
	if err != nil {
		return "", err
	}
	filePath := filepath.Join(dir, SentencesFileName(numBins))
	f, err := os.Create(filePath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %q", filePath)
	}
	w := bufio.NewWriter(f)
	for _, sentence := range sentences {
		if _, err = fmt.Fprintln(w, sentence); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "failed to write sentences to %q", filePath)
	}
	return filePath, errors.Wrapf(f.Close(), "failed to close %q", filePath)
}
