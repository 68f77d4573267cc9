// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools for the command line: progress bars and tables.
package commandline

import (
	"fmt"
	"slices"

	"github.com/attnlens/attnlens/pkg/attention/analysis"
	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var headerStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)

// HumanizeInt formats integers with thousands separators: 1234567 -> "1,234,567".
func HumanizeInt[I interface {
	uint32 | uint16 | uint8 | int64 | int32 | int16 | int8 | int
}](n I) string {
	return humanize.Comma(int64(n))
}

// NewTable returns a lipgloss table with the given headers, styled like the other tables of the command line
// tools.
func NewTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case col == 0:
				return rightAlignedStyle
			default:
				return normalStyle
			}
		}).
		Headers(headers...)
}

// SummaryTable renders rows of (name, value) pairs.
func SummaryTable(title string, rows [][2]string) string {
	table := NewTable(title, "")
	for _, row := range rows {
		table.Row(row[0], row[1])
	}
	return table.String()
}

// StatsTable renders the mean ± standard error of each bin (columns) per layer (rows).
func StatsTable(s *bins.Stats) string {
	headers := append([]string{"Layer"}, bins.Names(s.Bins)...)
	table := NewTable(headers...)
	for layer := range s.NumLayers() {
		row := make([]string, 0, len(headers))
		row = append(row, fmt.Sprintf("%d", layer))
		for ii := range s.Bins {
			row = append(row, fmt.Sprintf("%.4f ± %.4f", s.Mean[ii][layer], s.StdErr[ii][layer]))
		}
		table.Row(row...)
	}
	return table.String()
}

// ResultTable renders how many examples each evaluation set contributed, and why the others were skipped.
func ResultTable(r *analysis.Result) string {
	rows := make([][2]string, 0, len(r.Included)+5)
	for _, evalSet := range xslices.SortedKeys(r.Included) {
		rows = append(rows, [2]string{"Included from " + evalSet, HumanizeInt(r.Included[evalSet])})
	}
	rows = append(rows,
		[2]string{"Skipped: no mask", HumanizeInt(r.Skipped.NoMask)},
		[2]string{"Skipped: too short", HumanizeInt(r.Skipped.TooShort)},
		[2]string{"Skipped: other length", HumanizeInt(r.Skipped.OtherLength)},
	)
	if len(r.TokenLengths) > 0 {
		rows = append(rows, [2]string{"Token lengths", fmt.Sprintf("%d to %d", slices.Min(r.TokenLengths), slices.Max(r.TokenLengths))})
	}
	return SummaryTable(fmt.Sprintf("%d bins", r.Config.NumBins), rows)
}
