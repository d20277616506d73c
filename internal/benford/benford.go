package benford

import (
	"context"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/opensource-identity/shikra/internal/domain"
)

// Digit buckets cover the leading two digits 10..99.
const (
	minDigit = 10
	maxDigit = 99
	buckets  = maxDigit - minDigit + 1
)

// epsilon guards the chi-square denominator. All theoretical bucket
// probabilities are positive, so this can never matter structurally, but
// the guard stays in place.
const epsilon = 1e-10

// Analyzer tests per-district digit distributions against the logarithmic
// expectation P(d) = log10(1 + 1/d).
type Analyzer struct {
	minSampleSize  int
	moderateFactor float64
	highFactor     float64
	workers        int

	// criticalValue is the chi-square quantile at the configured confidence
	// with buckets-1 degrees of freedom, computed once.
	criticalValue float64

	// expected[i] is P(minDigit+i).
	expected [buckets]float64
}

// NewAnalyzer creates an analyzer from the engine tunables.
func NewAnalyzer(cfg domain.EngineConfig) *Analyzer {
	a := &Analyzer{
		minSampleSize:  cfg.MinSampleSize,
		moderateFactor: cfg.ModerateFactor,
		highFactor:     cfg.HighFactor,
		workers:        cfg.Workers,
	}
	if a.minSampleSize <= 0 {
		a.minSampleSize = 5
	}
	if a.workers <= 0 {
		a.workers = 8
	}

	confidence := cfg.Confidence
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	chi2 := distuv.ChiSquared{K: buckets - 1}
	a.criticalValue = chi2.Quantile(confidence)

	for d := minDigit; d <= maxDigit; d++ {
		a.expected[d-minDigit] = math.Log10(1 + 1/float64(d))
	}
	return a
}

// CriticalValue returns the chi-square rejection threshold in use.
func (a *Analyzer) CriticalValue() float64 {
	return a.criticalValue
}

// Assess scores every eligible district and returns assessments ranked by
// chi-square statistic descending (worst first). Districts whose digit
// sample is smaller than the minimum are excluded entirely: a sparse sample
// must not read as compliance. An empty result is a valid outcome, not an
// error.
//
// Each district's test is independent of every other district's, so the
// loop fans out over a bounded worker pool.
func (a *Analyzer) Assess(ctx context.Context, aggregates []domain.DistrictAggregate) []domain.BenfordAssessment {
	results := make([]*domain.BenfordAssessment, len(aggregates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.workers)

	for i := range aggregates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, agg *domain.DistrictAggregate) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if assessment, ok := a.assessDistrict(agg); ok {
				results[idx] = &assessment
			}
		}(i, &aggregates[i])
	}
	wg.Wait()

	assessments := make([]domain.BenfordAssessment, 0, len(results))
	for _, r := range results {
		if r != nil {
			assessments = append(assessments, *r)
		}
	}

	sort.SliceStable(assessments, func(i, j int) bool {
		if assessments[i].ChiSquareStat != assessments[j].ChiSquareStat {
			return assessments[i].ChiSquareStat > assessments[j].ChiSquareStat
		}
		if assessments[i].State != assessments[j].State {
			return assessments[i].State < assessments[j].State
		}
		return assessments[i].District < assessments[j].District
	})
	return assessments
}

// assessDistrict runs the conformance test for one district. ok is false
// when the district has too few valid digit values to score.
func (a *Analyzer) assessDistrict(agg *domain.DistrictAggregate) (domain.BenfordAssessment, bool) {
	sample := DigitSample(agg.PeriodValues)
	if len(sample) < a.minSampleSize {
		return domain.BenfordAssessment{}, false
	}

	var observed [buckets]float64
	for _, d := range sample {
		observed[d-minDigit]++
	}

	n := float64(len(sample))
	var chiSquare float64
	for i := 0; i < buckets; i++ {
		expected := a.expected[i] * n
		diff := observed[i] - expected
		chiSquare += diff * diff / (expected + epsilon)
	}

	deviation := chiSquare / a.criticalValue

	risk := domain.RiskCompliant
	switch {
	case deviation > a.highFactor:
		risk = domain.RiskHigh
	case deviation > a.moderateFactor:
		risk = domain.RiskModerate
	}

	return domain.BenfordAssessment{
		State:           agg.State,
		District:        agg.District,
		TotalEnrolment:  agg.TotalEnrolment,
		ChiSquareStat:   chiSquare,
		CriticalValue:   a.criticalValue,
		DeviationFactor: deviation,
		RiskLevel:       risk,
		SampleSize:      len(sample),
	}, true
}
