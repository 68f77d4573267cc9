// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/attnlens/attnlens/pkg/attention/dump"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string][]attention.Example

func (s mapSource) Examples(evalSet string) ([]attention.Example, error) {
	examples, ok := s[evalSet]
	if !ok {
		return nil, errors.Errorf("unknown evaluation set %q", evalSet)
	}
	return examples, nil
}

// makeExample creates an example with numTokens sentence tokens, followed by the mask and a terminal
// marker. The mask row attends with weight `value` to every position, in all layers and heads.
func makeExample(name string, numTokens int, value float64) attention.Example {
	seqLen := numTokens + attention.NumTrailingTokens
	tokens := make([]string, seqLen)
	for ii := range numTokens {
		tokens[ii] = fmt.Sprintf("t%d", ii)
	}
	tokens[seqLen-2] = attention.MaskToken
	tokens[seqLen-1] = "</s>"
	const numLayers, numHeads = 3, 2
	t := make(attention.Tensor, numLayers)
	for l := range t {
		t[l] = make([][][]float64, numHeads)
		for h := range t[l] {
			t[l][h] = make([][]float64, seqLen)
			for q := range t[l][h] {
				t[l][h][q] = make([]float64, seqLen)
				if q == seqLen-2 {
					for k := range seqLen {
						t[l][h][q][k] = value + float64(l)
					}
				}
			}
		}
	}
	return attention.Example{Name: name, Sentence: "sentence " + name, Tokens: tokens, Attention: t}
}

func TestAnalyze(t *testing.T) {
	noMask := makeExample("no_mask", 6, 1)
	noMask.Tokens[len(noMask.Tokens)-2] = "dog"
	source := mapSource{
		"test": {makeExample("a", 6, 1), makeExample("b", 7, 2), noMask, makeExample("short", 2, 9)},
		"dev":  {makeExample("c", 10, 3)},
	}
	for _, parallelism := range []int{0, 1, 4} {
		cfg := DefaultConfig()
		cfg.NumBins = 3
		cfg.Parallelism = parallelism
		r, err := Analyze(context.Background(), cfg, source)
		require.NoError(t, err)
		assert.Equal(t, 3, r.Stats.NumSamples)
		assert.Equal(t, 3, r.NumIncluded())
		assert.Equal(t, map[string]int{"test": 2, "dev": 1}, r.Included)
		assert.Equal(t, SkipCounts{NoMask: 1, TooShort: 1}, r.Skipped)
		assert.Equal(t, []string{"0", "1", "2", "mask"}, r.BinNames)
		assert.Equal(t, []int{6, 7, 10}, r.TokenLengths)
		assert.Equal(t, []string{"sentence a", "sentence b", "sentence c"}, r.Sentences)
		// Every bin gets mean of {1, 2, 3} (+layer) with variance 1.
		for bin := range r.Stats.Mean {
			assert.InDeltaSlice(t, []float64{2, 3, 4}, r.Stats.Mean[bin], 1e-12)
			assert.InDeltaSlice(t, []float64{1, 1, 1}, r.Stats.Variance[bin], 1e-12)
		}
	}
}

type countingProgress struct {
	added, done *atomic.Int64
}

func (p countingProgress) Add(n int) { p.added.Add(int64(n)) }
func (p countingProgress) Done()     { p.done.Add(1) }

func TestAnalyzeProgress(t *testing.T) {
	source := mapSource{
		"test": {makeExample("a", 6, 1), makeExample("b", 7, 2), makeExample("c", 8, 3)},
		"dev":  {makeExample("d", 10, 3)},
	}
	var added, done atomic.Int64
	totals := make(map[string]int)
	cfg := DefaultConfig()
	cfg.NumBins = 3
	cfg.NewProgress = func(evalSet string, numExamples int) Progress {
		totals[evalSet] = numExamples
		return countingProgress{added: &added, done: &done}
	}
	_, err := Analyze(context.Background(), cfg, source)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"test": 3, "dev": 1}, totals)
	assert.Equal(t, int64(4), added.Load())
	assert.Equal(t, int64(2), done.Load())
}

func TestAnalyzeFilters(t *testing.T) {
	source := mapSource{
		"test": {makeExample("a", 5, 1), makeExample("b", 5, 2), makeExample("c", 7, 3)},
	}
	cfg := DefaultConfig()
	cfg.EvalSets = []string{"test"}
	cfg.IncludeOnlyTokenLen = 5
	r, err := Analyze(context.Background(), cfg, source)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Stats.NumSamples)
	assert.Equal(t, 1, r.Skipped.OtherLength)

	// Only one example left: not enough for variance.
	cfg.IncludeOnlyTokenLen = 7
	_, err = Analyze(context.Background(), cfg, source)
	assert.True(t, errors.Is(err, bins.ErrInsufficientSamples))

	cfg.IncludeOnlyTokenLen = 0
	cfg.NumBins = 0
	_, err = Analyze(context.Background(), cfg, source)
	assert.True(t, errors.Is(err, bins.ErrInvalidConfiguration))

	cfg = DefaultConfig()
	_, err = Analyze(context.Background(), cfg, source)
	assert.ErrorContains(t, err, `"dev"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Analyze(ctx, DefaultConfig(), source)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithNumBins(t *testing.T) {
	cfg := DefaultConfig().WithNumBins(50)
	assert.Equal(t, 50, cfg.NumBins)
	assert.Equal(t, 50, cfg.IncludeOnlyTokenLen)
	cfg = cfg.WithNumBins(16)
	assert.Equal(t, 0, cfg.IncludeOnlyTokenLen)
	assert.True(t, IsExactLengthBin(114))
	assert.False(t, IsExactLengthBin(2))
}

func TestAnalyzeFromDump(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, dump.WriteJSONL(filepath.Join(dir, dump.FileName("dev", dump.ExtJSONL)),
		[]attention.Example{makeExample("x_1", 4, 0.5), makeExample("x_2", 4, 0.25)}))
	cfg := DefaultConfig()
	cfg.EvalSets = []string{"dev"}
	cfg.NumBins = 2
	cfg.DataDir = dir
	r, err := Analyze(context.Background(), cfg, &dump.Dir{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Stats.NumSamples)
	assert.InDeltaSlice(t, []float64{0.375, 1.375, 2.375}, r.Stats.Mean[0], 1e-12)
}
