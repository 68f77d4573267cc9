// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiments

import (
	"fmt"

	"github.com/attnlens/attnlens/pkg/stats"
	"github.com/attnlens/attnlens/ui/plots"
	"github.com/pkg/errors"
)

// Tags are the hyperparameters varied in the experiments, each with its own set of experiment directories.
var Tags = []string{"learning_rate", "seed", "train_batch_size", "train_frac_size", "hidden_dropout_prob", "weight_decay"}

// EvalSets with final metrics and predictions.
var EvalSets = []string{"dev", "test"}

// EvalMetrics reported for each evaluation set.
var EvalMetrics = []string{"f1", "precision", "recall"}

// Points returns the training curves of the experiment as plot points, with metric names grouped by tag:
// the training loss per optimizer step, and the development set f1, precision and recall per epoch.
func (e *Experiment) Points(tag string) []plots.Point {
	var points []plots.Point
	for step, loss := range e.TrainingLoss() {
		points = append(points, plots.Point{
			MetricName: fmt.Sprintf("%s/00.loss/Train", tag),
			Short:      "loss",
			MetricType: "loss",
			Step:       float64(step),
			Value:      loss,
		})
	}
	for ii, metric := range EvalMetrics {
		for epoch, value := range e.EpochMetric("dev_" + metric) {
			points = append(points, plots.Point{
				MetricName: fmt.Sprintf("%s/%02d.%s/development", tag, ii+1, metric),
				Short:      "dev/" + metric,
				MetricType: metric,
				Step:       float64(epoch),
				Value:      value,
			})
		}
	}
	return points
}

// DevTestPairs returns, for each experiment that has both, the final metric on the development and the test
// sets, along with the experiment names.
func DevTestPairs(experiments []*Experiment, metric string) (names []string, dev, test []float64) {
	for _, e := range experiments {
		d, okDev := e.EvalMetric("dev", metric)
		t, okTest := e.EvalMetric("test", metric)
		if !okDev || !okTest {
			continue
		}
		names = append(names, e.Name)
		dev = append(dev, d)
		test = append(test, t)
	}
	return
}

// Calibration returns the flattened true labels and predicted probabilities (sigmoid of the logits) of all
// examples and entity types of the evaluation set.
func (e *Experiment) Calibration(evalSet string) (yTrue, yProb []float64, err error) {
	preds, ok := e.Results.Predictions[evalSet]
	if !ok {
		return nil, nil, errors.Errorf("experiment %q has no predictions for %q", e.Name, evalSet)
	}
	if len(preds.TrueLabels) != len(preds.PredictLogits) {
		return nil, nil, errors.Wrapf(stats.ErrDimensionMismatch, "experiment %q, %s: %d label rows but %d logit rows",
			e.Name, evalSet, len(preds.TrueLabels), len(preds.PredictLogits))
	}
	for ii, labels := range preds.TrueLabels {
		logits := preds.PredictLogits[ii]
		if len(labels) != len(logits) {
			return nil, nil, errors.Wrapf(stats.ErrDimensionMismatch, "experiment %q, %s row %d: %d labels but %d logits",
				e.Name, evalSet, ii, len(labels), len(logits))
		}
		yTrue = append(yTrue, labels...)
		for _, logit := range logits {
			yProb = append(yProb, stats.Sigmoid(logit))
		}
	}
	return yTrue, yProb, nil
}

// ConfusionKind selects which confusion matrix ConfusionFeatures returns.
type ConfusionKind int

const (
	// MultiLabelAll is the per-class 2x2 confusion over all examples.
	MultiLabelAll ConfusionKind = iota

	// SingleLabelOnly is the class confusion matrix over the examples with a single true label.
	SingleLabelOnly

	// MultiLabelOnly is the per-class 2x2 confusion over the examples with more than one true label.
	MultiLabelOnly
)

// ConfusionKinds lists all kinds, in order.
var ConfusionKinds = []ConfusionKind{MultiLabelAll, SingleLabelOnly, MultiLabelOnly}

// String implements fmt.Stringer.
func (k ConfusionKind) String() string {
	switch k {
	case MultiLabelAll:
		return "multi_label_all"
	case SingleLabelOnly:
		return "single_label_only"
	case MultiLabelOnly:
		return "multi_label_only"
	}
	return fmt.Sprintf("ConfusionKind(%d)", int(k))
}

// ConfusionFeatures returns the flattened confusion matrix of the given kind for the evaluation set. Labels
// and predictions are one-hot encoded with an extra "reject" class, so every experiment over the same
// dataset yields a feature vector of the same length.
func (e *Experiment) ConfusionFeatures(evalSet string, kind ConfusionKind) ([]float64, error) {
	preds, ok := e.Results.Predictions[evalSet]
	if !ok {
		return nil, errors.Errorf("experiment %q has no predictions for %q", e.Name, evalSet)
	}
	yTrue := stats.OneHot(preds.TrueLabels, true)
	yPred := stats.OneHot(preds.PredictLogits, true)
	if kind == MultiLabelAll {
		return flattenMultilabel(yTrue, yPred)
	}
	singleTrue, singlePred, multiTrue, multiPred := stats.SplitSingleMulti(yTrue, yPred)
	if kind == MultiLabelOnly {
		if len(multiTrue) == 0 && len(yTrue) > 0 {
			// No multi-labelled examples: all-zero confusion of the right size.
			return make([]float64, 4*len(yTrue[0])), nil
		}
		return flattenMultilabel(multiTrue, multiPred)
	}
	numClasses := 0
	if len(yTrue) > 0 {
		numClasses = len(yTrue[0])
	}
	trueIdx := make([]int, len(singleTrue))
	predIdx := make([]int, len(singlePred))
	for ii := range singleTrue {
		trueIdx[ii] = stats.Argmax(singleTrue[ii])
		predIdx[ii] = stats.Argmax(singlePred[ii])
	}
	matrix, err := stats.ConfusionMatrix(trueIdx, predIdx, numClasses)
	if err != nil {
		return nil, errors.WithMessagef(err, "experiment %q, %s", e.Name, evalSet)
	}
	return stats.Flatten(matrix), nil
}

func flattenMultilabel(yTrue, yPred [][]int) ([]float64, error) {
	perClass, err := stats.MultilabelConfusion(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	features := make([]float64, 0, 4*len(perClass))
	for _, m := range perClass {
		features = append(features, float64(m[0][0]), float64(m[0][1]), float64(m[1][0]), float64(m[1][1]))
	}
	return features, nil
}
