// Package domain defines the core interfaces and types for Shikra.
package domain

// TransactionRecord is one row of the input dataset: identity-transaction
// counters for a (state, district, month) combination. Records are produced
// by the upstream ETL and are read-only to the engine.
type TransactionRecord struct {
	State    string `json:"state"`
	District string `json:"district"`
	Period   string `json:"period"` // year-month, e.g. "2023-04"

	TotalEnrolment int64 `json:"total_enrolment"`

	// Age-segmented enrolment counters
	EnrolAge0To5   int64 `json:"enrol_age_0_5"`
	EnrolAge5To17  int64 `json:"enrol_age_5_17"`
	EnrolAge18Plus int64 `json:"enrol_age_18_plus"`

	// Age-segmented biometric update counters
	BioAge5To17  int64 `json:"bio_age_5_17"`
	BioAge17Plus int64 `json:"bio_age_17_plus"`

	// Age-segmented demographic update counters
	DemoAge5To17  int64 `json:"demo_age_5_17"`
	DemoAge17Plus int64 `json:"demo_age_17_plus"`
}

// DistrictAggregate collapses all periods of one (state, district) into
// summed counters plus the ordered per-period total-enrolment series used
// for digit extraction. Immutable after construction.
type DistrictAggregate struct {
	State    string `json:"state"`
	District string `json:"district"`

	TotalEnrolment int64 `json:"total_enrolment"`
	EnrolAge0To5   int64 `json:"enrol_age_0_5"`
	EnrolAge5To17  int64 `json:"enrol_age_5_17"`
	EnrolAge18Plus int64 `json:"enrol_age_18_plus"`
	BioAge17Plus   int64 `json:"bio_age_17_plus"`
	DemoAge17Plus  int64 `json:"demo_age_17_plus"`

	// PeriodValues holds the per-period total_enrolment values in period
	// order. This is the series the conformance tester samples digits from.
	PeriodValues []int64 `json:"period_values"`
}

// Key returns the join key shared by all assessment types.
func (a *DistrictAggregate) Key() DistrictKey {
	return DistrictKey{State: a.State, District: a.District}
}

// DistrictKey identifies a district within a state.
type DistrictKey struct {
	State    string `json:"state"`
	District string `json:"district"`
}
