// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package report

import (
	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// WriteParquet writes the long-format statistics table (see Row) as a Parquet file.
func WriteParquet(filePath string, s *bins.Stats) error {
	if err := parquet.WriteFile(filePath, Rows(s)); err != nil {
		return errors.Wrapf(err, "failed to write parquet file %q", filePath)
	}
	return nil
}

// ReadParquet reads back a table written by WriteParquet.
func ReadParquet(filePath string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet file %q", filePath)
	}
	return rows, nil
}
