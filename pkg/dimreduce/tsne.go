// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dimreduce

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// TSNEConfig holds the parameters of TSNE.
type TSNEConfig struct {
	// Components is the dimension of the output.
	Components int

	// Perplexity is roughly the number of effective neighbors of each point. If it is too large for the
	// number of samples, it is reduced to (n-1)/3.
	Perplexity float64

	// Iterations of gradient descent.
	Iterations int

	// LearningRate of gradient descent.
	LearningRate float64

	// Seed of the random initialization.
	Seed uint64
}

// DefaultTSNEConfig returns the usual t-SNE parameters, projecting to 3 components.
func DefaultTSNEConfig() TSNEConfig {
	return TSNEConfig{
		Components:   3,
		Perplexity:   30,
		Iterations:   1000,
		LearningRate: 200,
		Seed:         42,
	}
}

const (
	exaggeration           = 4.0
	exaggerationIterations = 100
	momentumSwitch         = 250
	perplexityTolerance    = 1e-5
	perplexitySearchSteps  = 50
	minProbability         = 1e-12
)

// TSNE projects the rows of x to cfg.Components dimensions with exact t-SNE: Gaussian affinities in the
// input space calibrated to the perplexity, Student-t affinities in the output space, and gradient descent
// with momentum on their KL divergence (with early exaggeration).
//
// It is O(n²) per iteration, fine for the few hundreds of samples of a meta-analysis.
func TSNE(x [][]float64, cfg TSNEConfig) ([][]float64, error) {
	a, err := toDense(x)
	if err != nil {
		return nil, err
	}
	n, _ := a.Dims()
	if n < 2 {
		return nil, errors.Errorf("t-SNE requires at least 2 samples, got %d", n)
	}
	if cfg.Components < 1 || cfg.Iterations < 1 || cfg.LearningRate <= 0 || cfg.Perplexity <= 0 {
		return nil, errors.Errorf("invalid t-SNE configuration %+v", cfg)
	}
	perplexity := cfg.Perplexity
	if maxPerplexity := float64(n-1) / 3; perplexity > maxPerplexity {
		klog.V(1).Infof("t-SNE perplexity %g too large for %d samples, using %g", perplexity, n, maxPerplexity)
		perplexity = max(maxPerplexity, 1)
	}

	p := affinities(squaredDistances(a), perplexity)
	p.Scale(exaggeration, p)

	dims := cfg.Components
	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	y := mat.NewDense(n, dims, nil)
	for ii := range n {
		for jj := range dims {
			y.Set(ii, jj, rng.NormFloat64()*1e-4)
		}
	}
	update := mat.NewDense(n, dims, nil)
	grad := mat.NewDense(n, dims, nil)
	num := mat.NewDense(n, n, nil)
	diff := make([]float64, dims)

	for iter := range cfg.Iterations {
		// Student-t affinities in the output space.
		var sumNum float64
		for ii := range n {
			for jj := ii + 1; jj < n; jj++ {
				var d2 float64
				for kk := range dims {
					delta := y.At(ii, kk) - y.At(jj, kk)
					d2 += delta * delta
				}
				q := 1 / (1 + d2)
				num.Set(ii, jj, q)
				num.Set(jj, ii, q)
				sumNum += 2 * q
			}
		}
		sumNum = max(sumNum, minProbability)

		grad.Zero()
		for ii := range n {
			for jj := range n {
				if ii == jj {
					continue
				}
				q := max(num.At(ii, jj)/sumNum, minProbability)
				factor := 4 * (p.At(ii, jj) - q) * num.At(ii, jj)
				for kk := range dims {
					diff[kk] = y.At(ii, kk) - y.At(jj, kk)
					grad.Set(ii, kk, grad.At(ii, kk)+factor*diff[kk])
				}
			}
		}

		momentum := 0.5
		if iter >= momentumSwitch {
			momentum = 0.8
		}
		update.Scale(momentum, update)
		grad.Scale(cfg.LearningRate, grad)
		update.Sub(update, grad)
		y.Add(y, update)

		if iter == exaggerationIterations {
			p.Scale(1/exaggeration, p)
		}
	}
	return toRows(y), nil
}

func squaredDistances(a *mat.Dense) *mat.Dense {
	n, d := a.Dims()
	dist := mat.NewDense(n, n, nil)
	for ii := range n {
		for jj := ii + 1; jj < n; jj++ {
			var sum float64
			for kk := range d {
				delta := a.At(ii, kk) - a.At(jj, kk)
				sum += delta * delta
			}
			dist.Set(ii, jj, sum)
			dist.Set(jj, ii, sum)
		}
	}
	return dist
}

// affinities returns the symmetric joint probabilities P_ij = (P_j|i + P_i|j) / 2n, where each conditional
// distribution P_·|i is a Gaussian around i whose precision is binary-searched so that its entropy matches
// log(perplexity).
func affinities(dist *mat.Dense, perplexity float64) *mat.Dense {
	n, _ := dist.Dims()
	targetEntropy := math.Log(perplexity)
	cond := mat.NewDense(n, n, nil)
	row := make([]float64, n)
	for ii := range n {
		beta, betaMin, betaMax := 1.0, math.Inf(-1), math.Inf(1)
		for range perplexitySearchSteps {
			entropy := conditionalRow(dist, ii, beta, row)
			delta := entropy - targetEntropy
			if math.Abs(delta) < perplexityTolerance {
				break
			}
			if delta > 0 {
				// Too flat: increase precision.
				betaMin = beta
				if math.IsInf(betaMax, 1) {
					beta *= 2
				} else {
					beta = (beta + betaMax) / 2
				}
			} else {
				betaMax = beta
				if math.IsInf(betaMin, -1) {
					beta /= 2
				} else {
					beta = (beta + betaMin) / 2
				}
			}
		}
		conditionalRow(dist, ii, beta, row)
		cond.SetRow(ii, row)
	}
	p := mat.NewDense(n, n, nil)
	for ii := range n {
		for jj := range n {
			if ii != jj {
				p.Set(ii, jj, max((cond.At(ii, jj)+cond.At(jj, ii))/(2*float64(n)), minProbability))
			}
		}
	}
	return p
}

// conditionalRow fills row with P_j|i for precision beta, and returns its entropy (in nats).
func conditionalRow(dist *mat.Dense, ii int, beta float64, row []float64) float64 {
	n := len(row)
	// Subtract the smallest distance for numerical stability.
	minDist := math.Inf(1)
	for jj := range n {
		if jj != ii {
			minDist = min(minDist, dist.At(ii, jj))
		}
	}
	var sum float64
	for jj := range n {
		if jj == ii {
			row[jj] = 0
			continue
		}
		row[jj] = math.Exp(-beta * (dist.At(ii, jj) - minDist))
		sum += row[jj]
	}
	var entropy float64
	for jj := range n {
		row[jj] /= sum
		if row[jj] > minProbability {
			entropy -= row[jj] * math.Log(row[jj])
		}
	}
	return entropy
}
