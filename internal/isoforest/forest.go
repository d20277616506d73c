// Package isoforest provides isolation-based outlier detection over
// district feature vectors.
package isoforest

import (
	"math"
	"math/rand"
)

// maxSubsample caps the per-tree subsample, following the standard
// isolation-forest formulation.
const maxSubsample = 256

// Forest is an ensemble of isolation trees. Fitting and scoring are fully
// deterministic for a fixed seed: the engine's reproducibility contract
// depends on that, so the forest owns its own seeded source and nothing
// else may draw from it.
type Forest struct {
	trees     []*treeNode
	subsample int
	rng       *rand.Rand
}

type treeNode struct {
	// internal node
	splitFeature int
	splitValue   float64
	left, right  *treeNode

	// external node
	size int
}

func (n *treeNode) external() bool { return n.left == nil }

// New creates an unfitted forest with the given ensemble size and seed.
func New(trees int, seed int64) *Forest {
	if trees <= 0 {
		trees = 100
	}
	return &Forest{
		trees: make([]*treeNode, 0, trees),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Fit builds the ensemble over the sample matrix. Each tree is grown on a
// random subsample drawn without replacement, with splits at uniformly
// random values of uniformly random features.
func (f *Forest) Fit(samples [][]float64) {
	n := len(samples)
	if n == 0 {
		return
	}

	f.subsample = n
	if f.subsample > maxSubsample {
		f.subsample = maxSubsample
	}
	depthLimit := int(math.Ceil(math.Log2(float64(f.subsample) + 1e-12)))
	if depthLimit < 1 {
		depthLimit = 1
	}

	total := cap(f.trees)
	f.trees = f.trees[:0]
	for i := 0; i < total; i++ {
		sub := f.drawSubsample(samples)
		f.trees = append(f.trees, f.grow(sub, 0, depthLimit))
	}
}

// drawSubsample picks subsample rows without replacement.
func (f *Forest) drawSubsample(samples [][]float64) [][]float64 {
	n := len(samples)
	if f.subsample >= n {
		out := make([][]float64, n)
		copy(out, samples)
		return out
	}
	idx := f.rng.Perm(n)[:f.subsample]
	out := make([][]float64, 0, f.subsample)
	for _, i := range idx {
		out = append(out, samples[i])
	}
	return out
}

func (f *Forest) grow(samples [][]float64, depth, depthLimit int) *treeNode {
	if depth >= depthLimit || len(samples) <= 1 {
		return &treeNode{size: len(samples)}
	}

	features := len(samples[0])
	feature := f.rng.Intn(features)

	lo, hi := samples[0][feature], samples[0][feature]
	for _, s := range samples[1:] {
		v := s[feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		// No split possible on this feature; the subsample is isolated
		// enough to terminate here.
		return &treeNode{size: len(samples)}
	}

	split := lo + f.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, s := range samples {
		if s[feature] < split {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &treeNode{
		splitFeature: feature,
		splitValue:   split,
		left:         f.grow(left, depth+1, depthLimit),
		right:        f.grow(right, depth+1, depthLimit),
	}
}

// ScoreSamples returns the anomaly score of each sample: the negated
// isolation score -2^(-E[h(x)]/c(psi)), in (-1, 0]. Lower means more
// anomalous.
func (f *Forest) ScoreSamples(samples [][]float64) []float64 {
	scores := make([]float64, len(samples))
	if len(f.trees) == 0 {
		return scores
	}

	norm := avgPathLength(f.subsample)
	if norm <= 0 {
		norm = 1
	}

	for i, s := range samples {
		var sum float64
		for _, tree := range f.trees {
			sum += pathLength(tree, s, 0)
		}
		mean := sum / float64(len(f.trees))
		scores[i] = -math.Pow(2, -mean/norm)
	}
	return scores
}

func pathLength(n *treeNode, sample []float64, depth float64) float64 {
	if n.external() {
		return depth + avgPathLength(n.size)
	}
	if sample[n.splitFeature] < n.splitValue {
		return pathLength(n.left, sample, depth+1)
	}
	return pathLength(n.right, sample, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search, used to normalize isolation depths.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649015329) - 2*(fn-1)/fn
}

// Quantile returns the q-quantile of an ascending-sorted slice with linear
// interpolation between order statistics. Used to place the contamination
// decision boundary on the score distribution.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if q <= 0 {
		q = 0
	}
	if q >= 1 {
		q = 1
	}

	pos := q * float64(len(values)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return values[lo]
	}
	frac := pos - float64(lo)
	return values[lo]*(1-frac) + values[hi]*frac
}
