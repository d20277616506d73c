package isoforest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-identity/shikra/internal/domain"
)

// Detector flags districts whose adult-enrolment behavior is statistically
// unusual. Adult identity saturation is near-complete nationally, so high
// adult-enrolment volume relative to peers is itself suspicious.
type Detector struct {
	contamination float64
	trees         int
	seed          int64
}

// NewDetector creates a detector from the engine tunables.
func NewDetector(cfg domain.EngineConfig) *Detector {
	d := &Detector{
		contamination: cfg.Contamination,
		trees:         cfg.Trees,
		seed:          cfg.Seed,
	}
	if d.contamination <= 0 || d.contamination >= 0.5 {
		d.contamination = 0.05
	}
	if d.trees <= 0 {
		d.trees = 100
	}
	return d
}

// Assess scores every district and returns assessments sorted ascending by
// anomaly score (most anomalous first). There is no minimum-sample
// exclusion: features are aggregated totals, so any district with a row can
// be scored. Given identical input, contamination, and seed the output is
// bit-for-bit reproducible.
func (d *Detector) Assess(aggregates []domain.DistrictAggregate) []domain.AnomalyAssessment {
	if len(aggregates) == 0 {
		return []domain.AnomalyAssessment{}
	}

	assessments := make([]domain.AnomalyAssessment, len(aggregates))
	matrix := make([][]float64, len(aggregates))
	for i := range aggregates {
		agg := &aggregates[i]
		totalEnrol := agg.EnrolAge18Plus + agg.EnrolAge5To17 + agg.EnrolAge0To5

		// The +1 denominators guard zero-activity districts against division
		// by zero, at the cost of a small, consistent downward bias on
		// very-low-volume districts.
		ratio := float64(agg.EnrolAge18Plus) / float64(totalEnrol+1)
		perBio := float64(agg.EnrolAge18Plus) / float64(agg.BioAge17Plus+1)

		assessments[i] = domain.AnomalyAssessment{
			State:             agg.State,
			District:          agg.District,
			AdultEnrolments:   agg.EnrolAge18Plus,
			AdultEnrolRatio:   ratio,
			AdultPerBioUpdate: perBio,
		}
		matrix[i] = []float64{float64(agg.EnrolAge18Plus), ratio, perBio}
	}

	standardize(matrix)

	forest := New(d.trees, d.seed)
	forest.Fit(matrix)
	scores := forest.ScoreSamples(matrix)

	// Decision boundary: the contamination quantile of the score
	// distribution. Scores strictly below it are outliers.
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	offset := Quantile(sorted, d.contamination)

	for i := range assessments {
		assessments[i].AnomalyScore = scores[i]
		assessments[i].IsAnomaly = scores[i] < offset
	}

	sort.SliceStable(assessments, func(i, j int) bool {
		if assessments[i].AnomalyScore != assessments[j].AnomalyScore {
			return assessments[i].AnomalyScore < assessments[j].AnomalyScore
		}
		if assessments[i].State != assessments[j].State {
			return assessments[i].State < assessments[j].State
		}
		return assessments[i].District < assessments[j].District
	})
	return assessments
}

// standardize scales each feature column to zero mean and unit variance
// across the district population, so districts compare against the national
// distribution rather than absolute scale. A zero-variance column maps to
// all zeros.
func standardize(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	features := len(matrix[0])
	column := make([]float64, len(matrix))

	for f := 0; f < features; f++ {
		for i := range matrix {
			column[i] = matrix[i][f]
		}
		mean := stat.Mean(column, nil)

		// Population standard deviation, matching how the national
		// distribution itself is the reference.
		var sumsq float64
		for _, v := range column {
			dv := v - mean
			sumsq += dv * dv
		}
		std := math.Sqrt(sumsq / float64(len(column)))

		for i := range matrix {
			if std == 0 {
				matrix[i][f] = 0
			} else {
				matrix[i][f] = (matrix[i][f] - mean) / std
			}
		}
	}
}
