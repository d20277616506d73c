package domain

import (
	"time"
)

// Benford risk tiers. The literal strings are part of the output contract:
// downstream consumers match them verbatim.
const (
	RiskCompliant = "COMPLIANT"
	RiskModerate  = "MODERATE RISK"
	RiskHigh      = "HIGH RISK"
)

// BenfordAssessment is the conformance-test result for one district.
type BenfordAssessment struct {
	State          string  `json:"state"`
	District       string  `json:"district"`
	TotalEnrolment int64   `json:"total_enrolment"`
	ChiSquareStat  float64 `json:"chi_square_stat"`
	CriticalValue  float64 `json:"critical_value"`

	// DeviationFactor is ChiSquareStat / CriticalValue. Values below 1.0 are
	// compliant, 1.0-1.5 moderate risk, above 1.5 high risk.
	DeviationFactor float64 `json:"deviation_factor"`
	RiskLevel       string  `json:"risk_level"`
	SampleSize      int     `json:"sample_size"`
}

// AnomalyAssessment is the outlier-detector result for one district.
// More negative AnomalyScore means more anomalous.
type AnomalyAssessment struct {
	State    string `json:"state"`
	District string `json:"district"`

	// Feature vector, in the order fed to the forest.
	AdultEnrolments   int64   `json:"enrol_age_18_plus"`
	AdultEnrolRatio   float64 `json:"adult_enrol_ratio"`
	AdultPerBioUpdate float64 `json:"adult_per_bio_update"`

	AnomalyScore float64 `json:"anomaly_score"`
	IsAnomaly    bool    `json:"is_anomaly"`
}

// CombinedRiskRecord is the inner join of a BenfordAssessment and an
// AnomalyAssessment on (state, district), plus the fused score.
type CombinedRiskRecord struct {
	State           string  `json:"state"`
	District        string  `json:"district"`
	TotalEnrolment  int64   `json:"total_enrolment"`
	ChiSquareStat   float64 `json:"chi_square_stat"`
	CriticalValue   float64 `json:"critical_value"`
	DeviationFactor float64 `json:"deviation_factor"`
	RiskLevel       string  `json:"risk_level"`
	SampleSize      int     `json:"sample_size"`
	AnomalyScore    float64 `json:"anomaly_score"`
	IsAnomaly       bool    `json:"is_anomaly"`

	// RiskScore is the weighted composite of both signals.
	RiskScore float64 `json:"risk_score"`

	// DualDetection marks agreement between both signals, the
	// highest-confidence alert category.
	DualDetection bool `json:"dual_detection"`
}

// RunResult is the complete output of one analysis run. Recomputed fully on
// every run; immutable once produced.
type RunResult struct {
	RunID       string    `json:"runId"`
	Fingerprint string    `json:"fingerprint"`
	StartedAt   time.Time `json:"startedAt"`

	Benford   []BenfordAssessment  `json:"benford"`
	Anomalies []AnomalyAssessment  `json:"anomalies"`
	Suspects  []CombinedRiskRecord `json:"suspects"`

	Summary RunSummary `json:"summary"`
}

// RunSummary carries run-level counts and timings.
type RunSummary struct {
	Records          int   `json:"records"`
	Districts        int   `json:"districts"`
	BenfordEligible  int   `json:"benfordEligible"`
	HighRisk         int   `json:"highRisk"`
	ModerateRisk     int   `json:"moderateRisk"`
	AnomaliesFlagged int   `json:"anomaliesFlagged"`
	DualDetections   int   `json:"dualDetections"`
	BenfordMs        int64 `json:"benfordMs"`
	OutlierMs        int64 `json:"outlierMs"`
	FusionMs         int64 `json:"fusionMs"`
	TotalMs          int64 `json:"totalMs"`
	CacheHit         bool  `json:"cacheHit"`
}

// TopSuspects returns the n highest-risk fused records. Suspects are already
// ranked by risk score descending.
func (r *RunResult) TopSuspects(n int) []CombinedRiskRecord {
	if n <= 0 || n > len(r.Suspects) {
		n = len(r.Suspects)
	}
	return r.Suspects[:n]
}
