// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// attention_bins bins the attention of the mask token over the sentence positions, for a list of bin
// counts, and plots the per-layer mean attention of each bin.
//
// For each number of bins it writes, to the output directory:
//
//   - bins_<B>.txt: the global mean attention per bin, as JSON.
//   - sentences_<B>: the sentences included.
//   - plot_token_len_hist_<B>.png, plot_avg_attention_bins_plt_bins_<B>.png and
//     plot_avg_attention_bins_mask_to_mask_<B>.png.
//   - Optionally the statistics table in the formats given by -export.
//   - For the bin counts in -entity, the mask to entity attention plots of each evaluation set.
//
// Example:
//
//	attention_bins -data ~/data/outputs/attention -output ~/tmp/attention_bins -bins 2,4,8 -export csv,xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/attnlens/attnlens/pkg/attention/analysis"
	"github.com/attnlens/attnlens/pkg/attention/dump"
	"github.com/attnlens/attnlens/pkg/attention/flow"
	"github.com/attnlens/attnlens/pkg/report"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/attnlens/attnlens/ui/commandline"
	"github.com/attnlens/attnlens/ui/plots/pngplot"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagDataDir     = flag.String("data", "~/data/outputs/attention", "Directory with the attention dumps, named \"output_attentions_<set>.json[l]\".")
	flagOutputDir   = flag.String("output", "attention_bins", "Directory where to write the plots and files.")
	flagNumBins     = xslices.Flag("bins", []int{2, 4, 8, 16, 35, 50, 64, 72, 84, 97, 98, 114}, "Comma-separated list of number of bins to analyse.", strconv.Atoi)
	flagEvalSets    = flag.String("sets", "test,dev", "Comma-separated list of evaluation sets to aggregate.")
	flagMaskIndex   = flag.Int("mask_index", attention.DefaultMaskIndex, "Position of the mask token, negative values count from the end.")
	flagParallelism = flag.Int("parallelism", runtime.NumCPU(), "Number of examples reduced in parallel. 0 for no parallelism, -1 for unlimited.")
	flagEntityBins  = xslices.Flag("entity", []int{35, 50, 64, 72}, "Comma-separated list of number of bins for which to plot the mask to entity attention.", strconv.Atoi)
	flagExport      = xslices.Flag("export", []report.Format{}, "Comma-separated list of formats to export the statistics table to: csv, xlsx or parquet.", report.ParseFormat)
	flagHistBins    = flag.Int("hist_bins", 100, "Number of bins of the token length histogram.")
	flagProgress    = flag.Bool("progress", true, "Display a progress bar while reducing the examples.")
	flagTables      = flag.Bool("tables", false, "Print the statistics table of each number of bins.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	source := must.M1(dump.NewDir(*flagDataDir))
	outputDir := must.M1(fsutil.PrepareDir(*flagOutputDir))
	cfg := analysis.DefaultConfig()
	cfg.DataDir = source.Path
	cfg.EvalSets = strings.Split(*flagEvalSets, ",")
	cfg.MaskIndex = *flagMaskIndex
	cfg.Parallelism = *flagParallelism
	if *flagProgress {
		cfg.NewProgress = func(evalSet string, numExamples int) analysis.Progress {
			return commandline.NewProgressBar(numExamples, evalSet)
		}
	}

	ctx := context.Background()
	for _, numBins := range *flagNumBins {
		if err := runBins(ctx, cfg.WithNumBins(numBins), source, outputDir); err != nil {
			klog.Errorf("Failed analysis with %d bins: %+v", numBins, err)
			os.Exit(1)
		}
	}
}

// runBins runs the analysis for one number of bins and writes all its outputs.
func runBins(ctx context.Context, cfg analysis.Config, source *dump.Dir, outputDir string) error {
	numBins := cfg.NumBins
	r, err := analysis.Analyze(ctx, cfg, source)
	if err != nil {
		return err
	}
	fmt.Println(commandline.ResultTable(r))
	if *flagTables {
		fmt.Println(commandline.StatsTable(r.Stats))
	}

	if _, err = report.WriteGlobalMeans(outputDir, r.Stats); err != nil {
		return err
	}
	if _, err = report.WriteSentences(outputDir, numBins, r.Sentences); err != nil {
		return err
	}
	for _, format := range *flagExport {
		filePath, err := report.Write(outputDir, r.Stats, format)
		if err != nil {
			return err
		}
		klog.V(1).Infof("Exported statistics to %q", filePath)
	}

	klog.Infof("Saving plots for %d bins to %q", numBins, outputDir)
	hist, err := pngplot.TokenLengthHistogram(r.TokenLengths, *flagHistBins, "")
	if err != nil {
		return err
	}
	if err = pngplot.Save(hist, filepath.Join(outputDir, fmt.Sprintf("plot_token_len_hist_%d.png", numBins))); err != nil {
		return err
	}
	numSamples := r.NumIncluded()
	binsPlot, err := pngplot.BinsMeanPlot(r.Stats,
		fmt.Sprintf("Average attention score for sentence in bins\nNo. samples=%d, with errors bars", numSamples), false)
	if err != nil {
		return err
	}
	if err = pngplot.Save(binsPlot, filepath.Join(outputDir, fmt.Sprintf("plot_avg_attention_bins_plt_bins_%d.png", numBins))); err != nil {
		return err
	}
	maskPlot, err := pngplot.BinsMeanPlot(r.Stats,
		fmt.Sprintf("Average attention score [mask] → [mask] attention\nNo. samples=%d", numSamples), true)
	if err != nil {
		return err
	}
	if err = pngplot.Save(maskPlot, filepath.Join(outputDir, fmt.Sprintf("plot_avg_attention_bins_mask_to_mask_%d.png", numBins))); err != nil {
		return err
	}

	if slices.Contains(*flagEntityBins, numBins) {
		for _, evalSet := range cfg.EvalSets {
			if err = plotMaskToEntity(cfg, source, evalSet, outputDir); err != nil {
				return errors.WithMessagef(err, "mask to entity plots of %q", evalSet)
			}
		}
	}
	return nil
}

// plotMaskToEntity plots the attention from the mask to the entity, separately for the examples where the
// entity starts the sentence and for the rest.
func plotMaskToEntity(cfg analysis.Config, source *dump.Dir, evalSet, outputDir string) error {
	examples, err := source.Examples(evalSet)
	if err != nil {
		return err
	}
	atStart, rest, skipped, err := flow.SplitByEntityPosition(examples, cfg.MaskIndex, cfg.IncludeOnlyTokenLen)
	if err != nil {
		return err
	}
	if skipped > 0 {
		klog.Warningf("%s: %d examples skipped for the mask to entity attention", evalSet, skipped)
	}
	groups := []struct {
		curves      []flow.Curve
		name, title string
	}{
		{atStart, "position_2", "Position: only 2"},
		{rest, "position_rest", "Position: exclude 2"},
	}
	for _, group := range groups {
		if len(group.curves) == 0 {
			klog.Warningf("%s: no examples with entity %s, %d bins", evalSet, strings.ToLower(group.title), cfg.NumBins)
			continue
		}
		mean, err := flow.MeanCurve(group.curves)
		if err != nil {
			return err
		}
		series := xslices.Map(group.curves, func(c flow.Curve) pngplot.Series {
			return pngplot.Series{Name: c.Name, Values: c.Values}
		})
		title := fmt.Sprintf("%s (%s, bins: %d)\n[MASK] → [ENTITY]", group.title, evalSet, cfg.NumBins)
		p, err := pngplot.MaskToEntityPlot(series, mean, title)
		if err != nil {
			return err
		}
		fileName := fmt.Sprintf("plot_mask_to_entity_%s_%s_bins_%d.png", group.name, evalSet, cfg.NumBins)
		if err = pngplot.Save(p, filepath.Join(outputDir, fileName)); err != nil {
			return err
		}
	}
	return nil
}
