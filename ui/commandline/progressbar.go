// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ExtraMetricFn is any function that will give extra values to display along the progress bar.
// It is called at each time the progress bar is updated, and it should return a name and the current value.
type ExtraMetricFn func() (name, value string)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

// ProgressBar displays the progress of processing a known number of items (e.g.: examples of an evaluation set),
// with a small table of stats above it.
//
// Updates are drawn asynchronously, so Add is cheap and safe to call from many goroutines.
type ProgressBar struct {
	description string
	total       int
	start       time.Time

	bar           *progressbar.ProgressBar
	termenv       *termenv.Output
	statsStyle    lipgloss.Style
	statsTable    *lgtable.Table
	isFirstOutput bool

	updates          chan int
	asyncUpdatesDone sync.WaitGroup
	doneOnce         sync.Once

	extraMetricFns []ExtraMetricFn
}

// NewProgressBar creates and starts displaying a progress bar for total items.
// Call ProgressBar.Add as items are processed and ProgressBar.Done at the end.
func NewProgressBar(total int, description string, extraMetrics ...ExtraMetricFn) *ProgressBar {
	pBar := &ProgressBar{
		description:    description,
		total:          total,
		start:          time.Now(),
		isFirstOutput:  true,
		termenv:        termenv.NewOutput(os.Stdout),
		statsStyle:     lipgloss.NewStyle().PaddingLeft(8),
		updates:        make(chan int, 100),
		extraMetricFns: extraMetrics,
	}
	pBar.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("      [bold]"+description+"[reset]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("examples"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(os.Stdout),
	)
	pBar.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	pBar.asyncUpdatesDone.Add(1)
	go pBar.drawLoop()
	return pBar
}

// Add n processed items.
func (pBar *ProgressBar) Add(n int) {
	pBar.updates <- n
}

// Done stops the progress bar, waiting for the pending updates to be drawn. It can be called more than once.
func (pBar *ProgressBar) Done() {
	pBar.doneOnce.Do(func() {
		close(pBar.updates)
		pBar.asyncUpdatesDone.Wait()
		pBar.termenv.ShowCursor()
		fmt.Println()
	})
}

// drawLoop asynchronously draws updates, in case processing is faster than the terminal.
func (pBar *ProgressBar) drawLoop() {
	defer pBar.asyncUpdatesDone.Done()
	processed := 0
	for amount := range pBar.updates {
		// Exhaust the updates in the buffer:
	exhaust:
		for {
			select {
			case more, ok := <-pBar.updates:
				if !ok {
					break exhaust
				}
				amount += more
			default:
				break exhaust
			}
		}
		processed += amount

		pBar.statsTable.Data(lgtable.NewStringData())
		pBar.statsTable.Row(pBar.description, fmt.Sprintf("%s of %s", HumanizeInt(processed), HumanizeInt(pBar.total)))
		elapsed := time.Since(pBar.start)
		pBar.statsTable.Row("Elapsed", FormatDuration(elapsed))
		if processed > 0 {
			pBar.statsTable.Row("Per example", FormatDuration(elapsed/time.Duration(processed)))
		}
		for _, extraMetric := range pBar.extraMetricFns {
			name, value := extraMetric()
			pBar.statsTable.Row(name, value)
		}
		numRows := 2 + len(pBar.extraMetricFns)
		if processed > 0 {
			numRows++
		}

		// Clear the previous lines that will be overwritten.
		pBar.termenv.HideCursor()
		if !pBar.isFirstOutput {
			pBar.termenv.CursorPrevLine(numRows + 2 + 1)
		}
		pBar.isFirstOutput = false
		fmt.Println(pBar.statsStyle.Render(pBar.statsTable.String()))
		_ = pBar.bar.Add(amount)
		fmt.Println()
		pBar.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}
