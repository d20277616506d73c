// Package fusion merges the conformance and outlier assessments into one
// ranked suspect list.
package fusion

import (
	"sort"

	"github.com/opensource-identity/shikra/internal/domain"
)

// DefaultTopN is the suspect-list size most consumers ask for.
const DefaultTopN = 20

// Fuser combines the two independent signals with configurable weights.
// The Benford signal is weighted higher by default, reflecting its lower
// false-positive rate at scale.
type Fuser struct {
	benfordWeight float64
	anomalyWeight float64
}

// NewFuser creates a fuser from the engine tunables.
func NewFuser(cfg domain.EngineConfig) *Fuser {
	f := &Fuser{
		benfordWeight: cfg.BenfordWeight,
		anomalyWeight: cfg.AnomalyWeight,
	}
	if f.benfordWeight <= 0 && f.anomalyWeight <= 0 {
		f.benfordWeight = 0.6
		f.anomalyWeight = 0.4
	}
	return f
}

// Fuse inner-joins the assessments on (state, district) and ranks the
// result by composite risk score descending. Districts present in only one
// assessment set do not appear: a suspect must clear both the
// minimum-sample bar and have a computed anomaly score. Empty input on
// either side yields an empty, correctly-shaped list, never an error.
func (f *Fuser) Fuse(benford []domain.BenfordAssessment, anomalies []domain.AnomalyAssessment) []domain.CombinedRiskRecord {
	combined := make([]domain.CombinedRiskRecord, 0, len(benford))
	if len(benford) == 0 || len(anomalies) == 0 {
		return combined
	}

	anomalyByKey := make(map[domain.DistrictKey]*domain.AnomalyAssessment, len(anomalies))
	for i := range anomalies {
		key := domain.DistrictKey{State: anomalies[i].State, District: anomalies[i].District}
		anomalyByKey[key] = &anomalies[i]
	}

	for _, b := range benford {
		a, ok := anomalyByKey[domain.DistrictKey{State: b.State, District: b.District}]
		if !ok {
			continue
		}

		// The (1 - anomaly_score) inversion makes more-negative (more
		// anomalous) scores contribute more to risk.
		score := b.DeviationFactor*f.benfordWeight + (1-a.AnomalyScore)*f.anomalyWeight

		combined = append(combined, domain.CombinedRiskRecord{
			State:           b.State,
			District:        b.District,
			TotalEnrolment:  b.TotalEnrolment,
			ChiSquareStat:   b.ChiSquareStat,
			CriticalValue:   b.CriticalValue,
			DeviationFactor: b.DeviationFactor,
			RiskLevel:       b.RiskLevel,
			SampleSize:      b.SampleSize,
			AnomalyScore:    a.AnomalyScore,
			IsAnomaly:       a.IsAnomaly,
			RiskScore:       score,
			DualDetection:   b.RiskLevel != domain.RiskCompliant && a.IsAnomaly,
		})
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].RiskScore != combined[j].RiskScore {
			return combined[i].RiskScore > combined[j].RiskScore
		}
		if combined[i].State != combined[j].State {
			return combined[i].State < combined[j].State
		}
		return combined[i].District < combined[j].District
	})
	return combined
}
