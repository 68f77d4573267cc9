// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiments

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsJSON = `{
  "experimental_configurations": {"log_parameters": {"seed": 7, "gradient_accumulation_steps": 2}},
  "training_loss": [4, 2, 3, 1, 5],
  "dev_f1_epoch_0": 0.1, "dev_f1_epoch_10": 0.9, "dev_f1_epoch_2": 0.5,
  "dev_precision_epoch_0": 0.2,
  "dev_f1": 0.8, "test_f1": 0.75, "dev_precision": 0.7, "test_precision": 0.6,
  "notes": "ignored",
  "evaluation_predict_label": {
    "dev": {"true_labels": [[1, 0, 0], [0, 1, 1], [0, 0, 0]],
            "predict_logits": [[2, -1, -3], [-1, 3, -2], [-1, -1, -1]]}
  }
}`

func writeExperiment(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, ResultsFileName), []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := writeExperiment(t, t.TempDir(), "seed_7", resultsJSON)
	e, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "seed_7", e.Name)

	seed, ok := e.Parameter("seed")
	require.True(t, ok)
	assert.Equal(t, 7.0, seed)
	assert.Equal(t, 2, e.GradientAccumulationSteps())

	// Pairs averaged, the last one padded with the last loss.
	assert.Equal(t, []float64{3, 2, 5}, e.TrainingLoss())

	assert.Equal(t, []float64{0.1, 0.5, 0.9}, e.EpochMetric("dev_f1"))
	assert.Equal(t, []float64{0.2}, e.EpochMetric("dev_precision"))
	assert.Empty(t, e.EpochMetric("dev_recall"))

	f1, ok := e.EvalMetric("test", "f1")
	require.True(t, ok)
	assert.Equal(t, 0.75, f1)
	_, ok = e.EvalMetric("test", "recall")
	assert.False(t, ok)
	_, ok = e.Results.Metrics["notes"]
	assert.False(t, ok)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeExperiment(t, root, "learning_rate_10", resultsJSON)
	writeExperiment(t, root, filepath.Join("nested", "learning_rate_2"), resultsJSON)
	writeExperiment(t, root, "seed_1", resultsJSON)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "learning_rate_empty"), 0o755))

	found, err := Walk(root, "learning_rate")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "learning_rate_2", found[0].Name)
	assert.Equal(t, "learning_rate_10", found[1].Name)

	all, err := Walk(root, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	writeExperiment(t, root, "seed_bad", "{not json")
	_, err = Walk(root, "seed")
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"seed_1": "b.Seed = 1", "seed_2": "a.Seed = 2"}`), 0o644))
	changes, err := LoadNameChanges(path)
	require.NoError(t, err)
	assert.Equal(t, "a.Seed = 2", changes.Apply("seed_2"))
	assert.Equal(t, "other", changes.Apply("other"))

	yamlPath := filepath.Join(t.TempDir(), "names.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("robust_lr: robust_Learning rate = 1e-5\n"), 0o644))
	changes, err = LoadNameChanges(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Learning rate = 1e-5", DisplayLabel(changes.Apply("robust_lr")))

	assert.Equal(t, []string{"Seed = 2", "plain"}, DisplayLabels([]string{"a.Seed = 2", "plain"}))
	assert.Equal(t, "Seed", Title("Seed = 2"))
	assert.Equal(t, "plain", Title(" plain "))

	_, err = LoadNameChanges(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMeta(t *testing.T) {
	dir := writeExperiment(t, t.TempDir(), "seed_7", resultsJSON)
	e, err := Load(dir)
	require.NoError(t, err)

	points := e.Points("seed")
	// 3 losses, 3 dev f1 and 1 dev precision.
	require.Len(t, points, 7)
	assert.Equal(t, "seed/00.loss/Train", points[0].MetricName)
	assert.Equal(t, "seed/01.f1/development", points[3].MetricName)
	assert.Equal(t, 2.0, points[5].Step)
	assert.Equal(t, "seed/02.precision/development", points[6].MetricName)

	other := &Experiment{Name: "no_test", Results: Results{Metrics: map[string]float64{"dev_f1": 0.1}}}
	names, dev, test := DevTestPairs([]*Experiment{e, other}, "f1")
	assert.Equal(t, []string{"seed_7"}, names)
	assert.Equal(t, []float64{0.8}, dev)
	assert.Equal(t, []float64{0.75}, test)

	yTrue, yProb, err := e.Calibration("dev")
	require.NoError(t, err)
	assert.Len(t, yTrue, 9)
	require.Len(t, yProb, 9)
	assert.InDelta(t, 1/(1+math.Exp(-2)), yProb[0], 1e-12)
	_, _, err = e.Calibration("test")
	assert.Error(t, err)

	// With reject column: 4 classes.
	features, err := e.ConfusionFeatures("dev", MultiLabelAll)
	require.NoError(t, err)
	assert.Len(t, features, 16)
	// Class 0: tp=1, tn=2.
	assert.Equal(t, []float64{2, 0, 0, 1}, features[:4])
	// Class 2: one false negative (row 1), 2 true negatives.
	assert.Equal(t, []float64{2, 0, 1, 0}, features[8:12])

	single, err := e.ConfusionFeatures("dev", SingleLabelOnly)
	require.NoError(t, err)
	// Rows 0 (class 0) and 2 (reject) are single labelled, both predicted right.
	want := make([]float64, 16)
	want[0], want[15] = 1, 1
	assert.Equal(t, want, single)

	multi, err := e.ConfusionFeatures("dev", MultiLabelOnly)
	require.NoError(t, err)
	assert.Len(t, multi, 16)
	assert.Equal(t, "single_label_only", SingleLabelOnly.String())
}
