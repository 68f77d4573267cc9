// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package experiments loads the results of fine-tuning experiments (one `results.json` per experiment
// directory) and extracts what the meta-analysis plots need: training loss, metrics per epoch, final
// dev/test metrics, predictions for calibration and confusion matrices.
package experiments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/pkg/errors"
)

// ResultsFileName is the name of the file with the results of one experiment.
const ResultsFileName = "results.json"

// Predictions of one evaluation set: multi-hot true labels and the logits predicted, one row per example and
// one column per entity type.
type Predictions struct {
	TrueLabels    [][]float64 `json:"true_labels"`
	PredictLogits [][]float64 `json:"predict_logits"`
}

// Results of one experiment, as stored in ResultsFileName.
type Results struct {
	// LogParameters are the hyperparameters of the experiment
	// (from "experimental_configurations.log_parameters").
	LogParameters map[string]any

	// TrainingLoss recorded at every step (before gradient accumulation).
	TrainingLoss []float64

	// Metrics holds every top-level numeric value, e.g.: "dev_f1", "test_recall", "dev_f1_epoch_3".
	Metrics map[string]float64

	// Predictions per evaluation set ("dev", "test"), from "evaluation_predict_label".
	Predictions map[string]Predictions
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Results) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Results{Metrics: make(map[string]float64)}
	for key, raw := range fields {
		switch key {
		case "experimental_configurations":
			var configs struct {
				LogParameters map[string]any `json:"log_parameters"`
			}
			if err := json.Unmarshal(raw, &configs); err != nil {
				return errors.Wrapf(err, "parsing %q", key)
			}
			r.LogParameters = configs.LogParameters
		case "training_loss":
			if err := json.Unmarshal(raw, &r.TrainingLoss); err != nil {
				return errors.Wrapf(err, "parsing %q", key)
			}
		case "evaluation_predict_label":
			if err := json.Unmarshal(raw, &r.Predictions); err != nil {
				return errors.Wrapf(err, "parsing %q", key)
			}
		default:
			var value float64
			if err := json.Unmarshal(raw, &value); err == nil {
				r.Metrics[key] = value
			}
		}
	}
	return nil
}

// Experiment is one experiment directory.
type Experiment struct {
	// Name is the base name of the directory.
	Name string

	// Dir is the path to the experiment directory.
	Dir string

	Results Results
}

// Load the experiment in dir.
func Load(dir string) (*Experiment, error) {
	filePath := filepath.Join(dir, ResultsFileName)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read experiment results %q", filePath)
	}
	e := &Experiment{Name: filepath.Base(dir), Dir: dir}
	if err = json.Unmarshal(data, &e.Results); err != nil {
		return nil, errors.Wrapf(err, "failed to parse experiment results %q", filePath)
	}
	return e, nil
}

// Parameter returns the value of the hyperparameter, if it was logged.
func (e *Experiment) Parameter(name string) (any, bool) {
	v, ok := e.Results.LogParameters[name]
	return v, ok
}

// GradientAccumulationSteps returns the "gradient_accumulation_steps" parameter, or 1 if it is missing or
// invalid.
func (e *Experiment) GradientAccumulationSteps() int {
	v, ok := e.Parameter("gradient_accumulation_steps")
	if !ok {
		return 1
	}
	steps, ok := v.(float64)
	if !ok || steps < 1 {
		return 1
	}
	return int(steps)
}

// TrainingLoss returns the loss per optimizer step: the recorded losses are grouped by
// GradientAccumulationSteps and averaged. If the number of losses is not a multiple of it, the last loss is
// repeated to complete the last group.
func (e *Experiment) TrainingLoss() []float64 {
	losses := e.Results.TrainingLoss
	if len(losses) == 0 {
		return nil
	}
	groupSize := e.GradientAccumulationSteps()
	numGroups := (len(losses) + groupSize - 1) / groupSize
	out := make([]float64, numGroups)
	for ii := range numGroups {
		var sum float64
		for jj := ii * groupSize; jj < (ii+1)*groupSize; jj++ {
			sum += losses[min(jj, len(losses)-1)]
		}
		out[ii] = sum / float64(groupSize)
	}
	return out
}

// EpochMetric returns the values of metric (e.g.: "dev_f1") recorded at every epoch (keys
// "<metric>_epoch_<n>"), in epoch order.
func (e *Experiment) EpochMetric(metric string) []float64 {
	prefix := metric + "_epoch"
	var keys []string
	for key := range e.Results.Metrics {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, xslices.NaturalCompare)
	return xslices.Map(keys, func(key string) float64 { return e.Results.Metrics[key] })
}

// EvalMetric returns the final metric (e.g.: "f1", "precision", "recall") on the evaluation set
// (e.g.: "dev", "test").
func (e *Experiment) EvalMetric(evalSet, metric string) (float64, bool) {
	v, ok := e.Results.Metrics[evalSet+"_"+metric]
	return v, ok
}

// Walk returns the experiments under dataDir: every directory, at any depth, that has a ResultsFileName
// and whose base name contains tag (an empty tag matches all). They are returned in natural order of their
// names.
func Walk(dataDir, tag string) ([]*Experiment, error) {
	var found []*Experiment
	err := filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !strings.Contains(filepath.Base(path), tag) {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, ResultsFileName)); statErr != nil {
			return nil
		}
		e, err := Load(path)
		if err != nil {
			return err
		}
		found = append(found, e)
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "walking experiments in %q", dataDir)
	}
	slices.SortFunc(found, func(a, b *Experiment) int { return xslices.NaturalCompare(a.Name, b.Name) })
	return found, nil
}
