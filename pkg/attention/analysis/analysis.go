// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package analysis runs the attention binning over whole evaluation sets: it loads the examples, filters out
// those that can't be binned, reduces each example in parallel and aggregates the results across examples.
package analysis

import (
	"context"
	"runtime"
	"slices"

	"github.com/attnlens/attnlens/internal/workerspool"
	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/attnlens/attnlens/pkg/attention/bins"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ExactLengthBins are bin counts that, in the entity-typing dataset, are only analysed over the examples with
// exactly that many tokens, so that every bin holds a single position.
//
// It is a policy of the command line tool: Analyze only applies what Config.IncludeOnlyTokenLen says.
var ExactLengthBins = []int{35, 50, 64, 72, 84, 97, 98, 114}

// IsExactLengthBin returns whether numBins is one of ExactLengthBins.
func IsExactLengthBin(numBins int) bool {
	return slices.Contains(ExactLengthBins, numBins)
}

// Config of an analysis run.
type Config struct {
	// DataDir where the attention dumps are stored. Only informative for Analyze, the Source does the loading.
	DataDir string

	// EvalSets to include, in order.
	EvalSets []string

	// NumBins is the number of ordinary position bins.
	NumBins int

	// MaskIndex is the query position whose attention row is binned, and where the mask token is expected.
	// Negative values count from the end.
	MaskIndex int

	// MaskToken expected at MaskIndex: examples without it are skipped.
	MaskToken string

	// IncludeOnlyTokenLen, if > 0, restricts the analysis to examples with exactly this number of tokens.
	IncludeOnlyTokenLen int

	// Parallelism is the number of examples reduced in parallel. 0 runs everything in the calling goroutine,
	// -1 is unlimited.
	Parallelism int

	// NewProgress, if set, is called when the reduction of an evaluation set starts, with the number of
	// examples to reduce.
	NewProgress func(evalSet string, numExamples int) Progress
}

// Progress of the reduction of an evaluation set, e.g.: commandline.ProgressBar.
// Add may be called concurrently.
type Progress interface {
	Add(n int)
	Done()
}

// DefaultConfig returns the configuration used for the entity-typing dataset, with 5 bins.
func DefaultConfig() Config {
	return Config{
		EvalSets:    []string{"test", "dev"},
		NumBins:     5,
		MaskIndex:   attention.DefaultMaskIndex,
		MaskToken:   attention.MaskToken,
		Parallelism: runtime.NumCPU(),
	}
}

// WithNumBins returns a copy of the config with the given number of bins, and with IncludeOnlyTokenLen set
// to numBins if it is one of the ExactLengthBins.
func (cfg Config) WithNumBins(numBins int) Config {
	cfg.NumBins = numBins
	cfg.IncludeOnlyTokenLen = 0
	if IsExactLengthBin(numBins) {
		cfg.IncludeOnlyTokenLen = numBins
	}
	return cfg
}

// Source of examples of an evaluation set, e.g.: dump.Dir.
type Source interface {
	Examples(evalSet string) ([]attention.Example, error)
}

// SkipCounts holds the number of examples skipped, per reason.
type SkipCounts struct {
	// NoMask counts examples without the mask token at the mask index.
	NoMask int

	// TooShort counts examples with fewer tokens than bins.
	TooShort int

	// OtherLength counts examples excluded by Config.IncludeOnlyTokenLen.
	OtherLength int
}

// Total number of examples skipped.
func (s SkipCounts) Total() int { return s.NoMask + s.TooShort + s.OtherLength }

// Result of an analysis run.
type Result struct {
	Config Config

	// Stats across all included examples of all evaluation sets.
	Stats *bins.Stats

	// BinNames in the order of Stats.Bins.
	BinNames []string

	// TokenLengths and Sentences of the included examples, in the order they were processed.
	TokenLengths []int
	Sentences    []string

	// Included is the number of examples aggregated, per evaluation set.
	Included map[string]int

	Skipped SkipCounts
}

// NumIncluded returns the total number of examples aggregated.
func (r *Result) NumIncluded() int {
	total := 0
	for _, n := range r.Included {
		total += n
	}
	return total
}

// Analyze bins the attention of the mask token of every example of every evaluation set in cfg, and
// aggregates the per-layer bin means across all of them.
//
// Examples that can't be binned are skipped (and logged): it is an error only if fewer than 2 examples
// remain.
func Analyze(ctx context.Context, cfg Config, source Source) (*Result, error) {
	if cfg.NumBins < 1 {
		return nil, errors.Wrapf(bins.ErrInvalidConfiguration, "number of bins must be >= 1, got %d", cfg.NumBins)
	}
	if len(cfg.EvalSets) == 0 {
		return nil, errors.New("no evaluation sets configured")
	}
	pool := workerspool.New()
	pool.SetMaxParallelism(cfg.Parallelism)

	r := &Result{Config: cfg, Included: make(map[string]int)}
	var total bins.Accumulator
	for _, evalSet := range cfg.EvalSets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		examples, err := source.Examples(evalSet)
		if err != nil {
			return nil, errors.WithMessagef(err, "loading evaluation set %q", evalSet)
		}
		included := r.filter(evalSet, examples)
		r.Included[evalSet] = len(included)
		klog.V(1).Infof("%s: %d bins over %d examples (%d skipped so far)", evalSet, cfg.NumBins, len(included), r.Skipped.Total())

		var progress Progress
		if cfg.NewProgress != nil {
			progress = cfg.NewProgress(evalSet, len(included))
		}
		partials := make([]bins.Accumulator, pool.NumWorkers())
		err = pool.ForEach(ctx, len(included), func(worker, index int) error {
			means, err := reduceExample(cfg, included[index])
			if err != nil {
				return errors.WithMessagef(err, "%s example %q", evalSet, included[index].Name)
			}
			if progress != nil {
				progress.Add(1)
			}
			return partials[worker].Add(means)
		})
		if progress != nil {
			progress.Done()
		}
		if err != nil {
			return nil, err
		}
		for ii := range partials {
			if err := total.Merge(&partials[ii]); err != nil {
				return nil, errors.WithMessagef(err, "aggregating evaluation set %q", evalSet)
			}
		}
	}

	var err error
	r.Stats, err = total.Stats()
	if err != nil {
		return nil, errors.WithMessagef(err, "%d bins over %d examples", cfg.NumBins, total.Count())
	}
	r.BinNames = bins.Names(r.Stats.Bins)
	return r, nil
}

// filter returns the examples to include, and records the token lengths and sentences of those and the skip
// counts of the others.
func (r *Result) filter(evalSet string, examples []attention.Example) []*attention.Example {
	cfg := &r.Config
	included := make([]*attention.Example, 0, len(examples))
	for ii := range examples {
		e := &examples[ii]
		if !e.HasMaskAt(cfg.MaskIndex, cfg.MaskToken) {
			klog.Warningf("[not included] %s example %q did not have %s at position %d", evalSet, e.Name, cfg.MaskToken, cfg.MaskIndex)
			r.Skipped.NoMask++
			continue
		}
		numTokens := e.NumTokens()
		if cfg.NumBins > numTokens {
			klog.Warningf("[not included] %s example %q has %d tokens but was asked for %d bins", evalSet, e.Name, numTokens, cfg.NumBins)
			r.Skipped.TooShort++
			continue
		}
		if cfg.IncludeOnlyTokenLen > 0 && numTokens != cfg.IncludeOnlyTokenLen {
			r.Skipped.OtherLength++
			continue
		}
		included = append(included, e)
		r.TokenLengths = append(r.TokenLengths, numTokens)
		r.Sentences = append(r.Sentences, e.Sentence)
	}
	return included
}

// reduceExample computes the per-layer bin means of one example.
func reduceExample(cfg Config, e *attention.Example) (bins.Means, error) {
	ranges, err := bins.NewRanges(cfg.NumBins, e.NumTokens())
	if err != nil {
		return nil, err
	}
	exampleBins, err := bins.Slice(ranges, e.Attention, cfg.MaskIndex)
	if err != nil {
		return nil, err
	}
	return bins.LayerMeans(exampleBins), nil
}
