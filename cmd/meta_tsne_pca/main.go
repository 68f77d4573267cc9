// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// meta_tsne_pca projects the confusion matrices of a set of experiments (e.g.: the same model trained with
// different seeds) to 3 dimensions, with t-SNE and PCA, to show how much the errors of the models vary.
//
// For each evaluation set and kind of confusion matrix (see experiments.ConfusionKinds), it saves the 3
// pairs of components as PNG scatter plots, and the 3D projection as an interactive Plotly HTML page, in
// "plots_tsne" and "plots_pca" under the output directory.
//
// Example:
//
//	meta_tsne_pca -data ~/data/outputs/seed_experiment_500 -output ~/tmp/meta
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/attnlens/attnlens/pkg/dimreduce"
	"github.com/attnlens/attnlens/pkg/experiments"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/ui/plots/plotly"
	"github.com/attnlens/attnlens/ui/plots/pngplot"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagDataDir    = flag.String("data", "~/data/outputs/seed_experiment_500", "Directory with the experiments, each in a directory with a \"results.json\".")
	flagOutputDir  = flag.String("output", "plots_meta_analysis", "Directory where to write the plots.")
	flagTag        = flag.String("tag", "", "Only include experiments whose directory name contains the tag. Empty includes all.")
	flagTitle      = flag.String("title", "Seed Experiment", "Name of the experiment set, used in the plot titles.")
	flagTSNE       = flag.Bool("tsne", true, "Save the t-SNE plots.")
	flagPCA        = flag.Bool("pca", true, "Save the PCA plots.")
	flagPerplexity = flag.Float64("perplexity", 30, "t-SNE perplexity.")
	flagIterations = flag.Int("iterations", 1000, "t-SNE gradient descent iterations.")
	flagSeed       = flag.Uint64("seed", 42, "t-SNE random seed.")
)

const numComponents = 3

var (
	evalSetTitles = map[string]string{"dev": "Development set", "test": "Test set"}
	kindTitles    = map[experiments.ConfusionKind]string{
		experiments.SingleLabelOnly: "Single-labelled",
		experiments.MultiLabelOnly:  "Multi-labelled",
		experiments.MultiLabelAll:   "Single-labelled & Multi-labelled",
	}
	ordinals = []string{"1st", "2nd", "3rd"}
)

// projection is a dimensionality reduction to numComponents.
type projection struct {
	name, dir string
	fn        func(x [][]float64) ([][]float64, error)
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	dataDir := must.M1(fsutil.ReplaceTildeInDir(*flagDataDir))
	outputDir := must.M1(fsutil.PrepareDir(*flagOutputDir))
	exps := must.M1(experiments.Walk(dataDir, *flagTag))
	if len(exps) < 2 {
		klog.Errorf("Found %d experiments in %q, at least 2 are needed", len(exps), dataDir)
		os.Exit(1)
	}
	klog.Infof("Found %d experiments in %q", len(exps), dataDir)

	var projections []projection
	if *flagTSNE {
		cfg := dimreduce.DefaultTSNEConfig()
		cfg.Components = numComponents
		cfg.Perplexity = *flagPerplexity
		cfg.Iterations = *flagIterations
		cfg.Seed = *flagSeed
		projections = append(projections, projection{"t-SNE", "plots_tsne",
			func(x [][]float64) ([][]float64, error) { return dimreduce.TSNE(x, cfg) }})
	}
	if *flagPCA {
		projections = append(projections, projection{"PCA", "plots_pca",
			func(x [][]float64) ([][]float64, error) { return dimreduce.PCA(x, numComponents) }})
	}

	for _, evalSet := range experiments.EvalSets {
		for _, kind := range experiments.ConfusionKinds {
			names, features := confusionFeatures(exps, evalSet, kind)
			if len(features) < numComponents {
				klog.Warningf("%s, %s: only %d experiments with predictions, skipping", evalSet, kind, len(features))
				continue
			}
			for _, proj := range projections {
				title := fmt.Sprintf("%s - %s\n%s\n%s", proj.name, *flagTitle, kindTitles[kind], evalSetTitles[evalSet])
				baseName := fmt.Sprintf("%s_%s", evalSet, kind)
				if err := saveProjection(proj, filepath.Join(outputDir, proj.dir), baseName, title, names, features); err != nil {
					klog.Errorf("Failed %s of %s: %+v", proj.name, baseName, err)
					os.Exit(1)
				}
			}
		}
	}
}

// confusionFeatures returns the flattened confusion matrices of the experiments that have predictions for
// the evaluation set.
func confusionFeatures(exps []*experiments.Experiment, evalSet string, kind experiments.ConfusionKind) (names []string, features [][]float64) {
	for _, e := range exps {
		f, err := e.ConfusionFeatures(evalSet, kind)
		if err != nil {
			klog.Warningf("Skipping %q: %v", e.Name, err)
			continue
		}
		if len(features) > 0 && len(f) != len(features[0]) {
			klog.Warningf("Skipping %q: %d confusion features, other experiments have %d", e.Name, len(f), len(features[0]))
			continue
		}
		names = append(names, e.Name)
		features = append(features, f)
	}
	return
}

// saveProjection projects the features and saves the plots of each pair of components, and the 3D plot.
func saveProjection(proj projection, dir, baseName, title string, names []string, features [][]float64) error {
	projected, err := proj.fn(features)
	if err != nil {
		return err
	}
	components := make([][]float64, numComponents)
	for _, row := range projected {
		if len(row) != numComponents {
			return errors.Errorf("%s returned %d components, wanted %d", proj.name, len(row), numComponents)
		}
		for c := range numComponents {
			components[c] = append(components[c], row[c])
		}
	}
	pairs := []struct {
		x, y int
		name string
	}{{0, 1, "one_two"}, {0, 2, "one_thr"}, {1, 2, "two_thr"}}
	for _, pair := range pairs {
		p, err := pngplot.Scatter2D(components[pair.x], components[pair.y], title,
			fmt.Sprintf("%s %s component", ordinals[pair.x], proj.name),
			fmt.Sprintf("%s %s component", ordinals[pair.y], proj.name))
		if err != nil {
			return err
		}
		if err = pngplot.Save(p, filepath.Join(dir, fmt.Sprintf("%s_%s.png", baseName, pair.name))); err != nil {
			return err
		}
	}
	fig, err := plotly.Scatter3D(strings.ReplaceAll(title, "\n", "<br>"), names, projected)
	if err != nil {
		return err
	}
	return plotly.WriteHTML(filepath.Join(dir, baseName+"_one_two_thr.html"), strings.ReplaceAll(title, "\n", " "), fig)
}
