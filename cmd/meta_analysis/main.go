// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// meta_analysis compares the experiments of a hyperparameter sweep: for each tag (the hyperparameter varied,
// see experiments.Tags) it collects the experiment directories whose name contains the tag, and plots:
//
//   - The training curves (loss, and development f1, precision and recall per epoch), saved as plot points
//     per experiment and drawn with Margaid (SVG) and Plotly (HTML).
//   - The development F1 during training.
//   - Test against development scores.
//   - The calibration curves of the development and test predictions.
//
// Example:
//
//	meta_analysis -data ~/data/outputs/sweep -output ~/tmp/meta -names name_change.json
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/attnlens/attnlens/pkg/experiments"
	"github.com/attnlens/attnlens/pkg/stats"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/ui/commandline"
	"github.com/attnlens/attnlens/ui/plots"
	"github.com/attnlens/attnlens/ui/plots/margaid"
	"github.com/attnlens/attnlens/ui/plots/plotly"
	"github.com/attnlens/attnlens/ui/plots/pngplot"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagDataDir         = flag.String("data", "~/data/outputs/seed_lr_wd_batch_train_size_dropout_with_eval_no_train", "Directory with the experiments, each in a directory with a \"results.json\".")
	flagOutputDir       = flag.String("output", "plots_meta_analysis", "Directory where to write the plots.")
	flagNames           = flag.String("names", "", "Optional JSON or YAML file mapping experiment directory names to display names.")
	flagTags            = flag.String("tags", strings.Join(experiments.Tags, ","), "Comma-separated list of experiment tags to analyse.")
	flagPoints          = flag.Bool("points", true, "Save the training curves as plot points and draw them.")
	flagF1Plot          = flag.Bool("f1_plot", true, "Plot the development F1 during training.")
	flagScatter         = flag.Bool("scatter", true, "Plot test against development scores.")
	flagCalibration     = flag.Bool("calibration", true, "Plot calibration curves.")
	flagCalibrationBins = flag.Int("calibration_bins", 10, "Number of bins of the calibration curves.")
	flagEvalPriorTrain  = flag.Bool("eval_prior_train", true, "Whether the development set was evaluated before training: if so, the first epoch value is epoch 0.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	names := experiments.NameChanges{}
	if *flagNames != "" {
		names = must.M1(experiments.LoadNameChanges(*flagNames))
	}
	dataDir := must.M1(fsutil.ReplaceTildeInDir(*flagDataDir))
	outputDir := must.M1(fsutil.PrepareDir(*flagOutputDir))
	for _, tag := range strings.Split(*flagTags, ",") {
		if err := analyseTag(dataDir, outputDir, tag, names); err != nil {
			klog.Errorf("Failed meta-analysis of %q: %+v", tag, err)
			os.Exit(1)
		}
	}
}

// tagExperiments holds the experiments of a tag sorted by their display names.
type tagExperiments struct {
	tag         string
	experiments []*experiments.Experiment
	labels      []string
	title       string
}

func analyseTag(dataDir, outputDir, tag string, names experiments.NameChanges) error {
	exps, err := experiments.Walk(dataDir, tag)
	if err != nil {
		return err
	}
	if len(exps) == 0 {
		klog.Warningf("No experiments found for tag %q in %q", tag, dataDir)
		return nil
	}
	slices.SortStableFunc(exps, func(a, b *experiments.Experiment) int {
		return strings.Compare(names.Apply(a.Name), names.Apply(b.Name))
	})
	te := &tagExperiments{tag: tag, experiments: exps}
	for _, e := range exps {
		te.labels = append(te.labels, experiments.DisplayLabel(names.Apply(e.Name)))
	}
	te.title = experiments.Title(te.labels[0])
	klog.Infof("Tag %q: %d experiments", tag, len(exps))

	if *flagPoints {
		if err = te.trainingCurves(outputDir); err != nil {
			return err
		}
	}
	if *flagF1Plot {
		if err = te.f1Plot(outputDir); err != nil {
			return err
		}
	}
	if *flagScatter {
		if err = te.scatterPlot(outputDir); err != nil {
			return err
		}
	}
	if *flagCalibration {
		if err = te.calibrationPlots(outputDir); err != nil {
			return err
		}
	}
	return nil
}

// trainingCurves saves the plot points of each experiment (unless already saved), and draws the curves of
// all experiments of the tag together.
func (te *tagExperiments) trainingCurves(outputDir string) error {
	mgPlots := margaid.New(1024, 400)
	mgPlots.XLabel = "Steps / epochs"
	figs := plotly.New()
	for ii, e := range te.experiments {
		rawPoints := e.Points(te.tag)
		pointsDir, err := fsutil.PrepareDir(filepath.Join(outputDir, "plot_points", e.Name))
		if err != nil {
			return err
		}
		pointsPath := filepath.Join(pointsDir, plots.PointsFileName)
		exists, err := fsutil.FileExists(pointsPath)
		if err != nil {
			return err
		}
		if !exists {
			pointWriter, errReport := plots.CreatePointsWriter(pointsPath)
			for _, p := range rawPoints {
				pointWriter <- p
			}
			close(pointWriter)
			if err = <-errReport; err != nil {
				return err
			}
		}

		// Series of different experiments share the plot of their metric type.
		points := plots.NewPoints(rawPoints)
		points.Map(func(p *plots.Point) { p.MetricName = te.labels[ii] + ": " + p.Short })
		plots.AddPoints(mgPlots, points)
		plots.AddPoints(figs, points)
	}
	trainingDir := filepath.Join(outputDir, "plots_training")
	if err := mgPlots.WriteHTML(filepath.Join(trainingDir, fmt.Sprintf("training_%s.html", te.tag))); err != nil {
		return err
	}
	return figs.WriteHTML(filepath.Join(trainingDir, fmt.Sprintf("training_%s_plotly.html", te.tag)), te.title)
}

func (te *tagExperiments) f1Plot(outputDir string) error {
	var series []pngplot.Series
	for ii, e := range te.experiments {
		if f1 := e.EpochMetric("dev_f1"); len(f1) > 0 {
			series = append(series, pngplot.Series{Name: te.labels[ii], Values: f1})
		}
	}
	if len(series) == 0 {
		klog.Warningf("Tag %q: no development F1 per epoch recorded", te.tag)
		return nil
	}
	xOffset := 1.0
	if *flagEvalPriorTrain {
		xOffset = 0
	}
	p, err := pngplot.LinesPlot(series, "F1-score development set\n"+te.title, "Epoch", "F1-score", xOffset)
	if err != nil {
		return err
	}
	return pngplot.Save(p, filepath.Join(outputDir, "plots_f1_train", fmt.Sprintf("f1_train_%s.png", te.tag)))
}

func (te *tagExperiments) scatterPlot(outputDir string) error {
	var series []pngplot.DevTestSeries
	table := commandline.NewTable("Experiment", "Metric", "Development", "Test")
	labelOf := make(map[string]string, len(te.experiments))
	for ii, e := range te.experiments {
		labelOf[e.Name] = te.labels[ii]
	}
	for _, metric := range experiments.EvalMetrics {
		names, dev, test := experiments.DevTestPairs(te.experiments, metric)
		if len(names) == 0 {
			continue
		}
		series = append(series, pngplot.DevTestSeries{Metric: metric, Dev: dev, Test: test})
		for ii, name := range names {
			table.Row(labelOf[name], metric, fmt.Sprintf("%.4f", dev[ii]), fmt.Sprintf("%.4f", test[ii]))
		}
	}
	if len(series) == 0 {
		klog.Warningf("Tag %q: no development and test scores recorded", te.tag)
		return nil
	}
	fmt.Println(table.String())
	p, err := pngplot.DevTestScatter(series, te.title)
	if err != nil {
		return err
	}
	return pngplot.Save(p, filepath.Join(outputDir, "plots_scatter", fmt.Sprintf("dev_test_%s.png", te.tag)))
}

var evalSetTitles = map[string]string{"dev": "Development set", "test": "Test set"}

func (te *tagExperiments) calibrationPlots(outputDir string) error {
	for _, evalSet := range experiments.EvalSets {
		var labels []string
		var probTrue, probPred [][]float64
		for ii, e := range te.experiments {
			yTrue, yProb, err := e.Calibration(evalSet)
			if err != nil {
				klog.Warningf("Tag %q: skipping calibration of %q: %v", te.tag, e.Name, err)
				continue
			}
			pt, pp, err := stats.CalibrationCurve(yTrue, yProb, *flagCalibrationBins)
			if err != nil {
				return errors.WithMessagef(err, "calibration of %q on %q", e.Name, evalSet)
			}
			labels = append(labels, te.labels[ii])
			probTrue = append(probTrue, pt)
			probPred = append(probPred, pp)
		}
		if len(labels) == 0 {
			continue
		}
		p, err := pngplot.CalibrationPlot(labels, probTrue, probPred, evalSetTitles[evalSet])
		if err != nil {
			return err
		}
		filePath := filepath.Join(outputDir, "plots_calibration", fmt.Sprintf("%s_%s.png", te.tag, evalSet))
		if err = pngplot.Save(p, filePath); err != nil {
			return err
		}
	}
	return nil
}
