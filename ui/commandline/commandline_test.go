// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"sync"
	"testing"
	"time"

	"github.com/attnlens/attnlens/pkg/attention/analysis"
	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23ms", FormatDuration(1234567*time.Nanosecond))
	assert.Equal(t, "2.50s", FormatDuration(2500*time.Millisecond))
	assert.Equal(t, "1m5s", FormatDuration(65*time.Second+300*time.Millisecond))
	assert.Equal(t, "0s", FormatDuration(0))
}

func TestHumanizeInt(t *testing.T) {
	assert.Equal(t, "1,234,567", HumanizeInt(1234567))
	assert.Equal(t, "12", HumanizeInt(int32(12)))
	assert.Equal(t, "-1,000", HumanizeInt(int64(-1000)))
}

func TestTables(t *testing.T) {
	s := &bins.Stats{
		Bins:   []bins.BinID{0, bins.MaskBin},
		Mean:   [][]float64{{0.125, 0.25}, {0.5, 0.75}},
		StdErr: [][]float64{{0.01, 0.02}, {0.03, 0.04}},
	}
	table := StatsTable(s)
	assert.Contains(t, table, "Layer")
	assert.Contains(t, table, "mask")
	assert.Contains(t, table, "0.1250 ± 0.0100")
	assert.Contains(t, table, "0.7500 ± 0.0400")

	r := &analysis.Result{
		Config:       analysis.Config{NumBins: 5},
		Included:     map[string]int{"dev": 1200, "test": 3},
		Skipped:      analysis.SkipCounts{NoMask: 2, TooShort: 1},
		TokenLengths: []int{7, 30, 12},
	}
	table = ResultTable(r)
	assert.Contains(t, table, "5 bins")
	assert.Contains(t, table, "Included from dev")
	assert.Contains(t, table, "1,200")
	assert.Contains(t, table, "7 to 30")
}

func TestProgressBar(t *testing.T) {
	calls := 0
	pBar := NewProgressBar(10, "test", func() (string, string) {
		calls++
		return "Calls", HumanizeInt(calls)
	})
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pBar.Add(1)
		}()
	}
	wg.Wait()
	pBar.Done()
	pBar.Done()
	assert.Positive(t, calls)
}
