// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package report

import (
	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"k8s.io/klog/v2"
)

// Sheet names of the XLSX export, one per statistic, each a [layer][bin] grid.
const (
	SheetMean     = "mean"
	SheetVariance = "variance"
	SheetStdErr   = "stderr"
)

// WriteXLSX writes one sheet per statistic (mean, variance and standard error), each with one row per layer
// and one column per bin.
func WriteXLSX(filePath string, s *bins.Stats) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			klog.Warningf("failed to close workbook for %q: %v", filePath, closeErr)
		}
	}()
	sheets := []struct {
		name   string
		values [][]float64
	}{
		{SheetMean, s.Mean},
		{SheetVariance, s.Variance},
		{SheetStdErr, s.StdErr},
	}
	for _, sheet := range sheets {
		if _, err = f.NewSheet(sheet.name); err != nil {
			return errors.Wrapf(err, "failed to create sheet %q", sheet.name)
		}
		if err = writeGrid(f, sheet.name, s.Bins, sheet.values); err != nil {
			return err
		}
	}
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "failed to remove default sheet")
	}
	if err = f.SaveAs(filePath); err != nil {
		return errors.Wrapf(err, "failed to save workbook to %q", filePath)
	}
	return nil
}

// writeGrid writes the header row ("layer", bin names...) and then one row per layer.
func writeGrid(f *excelize.File, sheet string, ids []bins.BinID, values [][]float64) error {
	header := []any{"layer"}
	for _, id := range ids {
		header = append(header, id.String())
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrapf(err, "failed to write header of sheet %q", sheet)
	}
	numLayers := 0
	if len(values) > 0 {
		numLayers = len(values[0])
	}
	for layer := range numLayers {
		row := []any{layer}
		for bin := range values {
			row = append(row, values[bin][layer])
		}
		cell, err := excelize.CoordinatesToCellName(1, layer+2)
		if err != nil {
			return errors.WithStack(err)
		}
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write layer %d of sheet %q", layer, sheet)
		}
	}
	return nil
}
