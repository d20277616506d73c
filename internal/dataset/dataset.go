// Package dataset validates and aggregates the input counter table.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/opensource-identity/shikra/internal/domain"
)

// ErrMissingColumn marks a malformed input schema. Schema problems abort the
// whole run: silently proceeding would produce misleading fraud scores.
var ErrMissingColumn = errors.New("missing required column")

// RequiredColumns is the minimum schema of the input table, in the upstream
// ETL's column order.
var RequiredColumns = []string{
	"state",
	"district",
	"month",
	"total_enrolment",
	"enrol_age_0_5",
	"enrol_age_5_17",
	"enrol_age_18_plus",
	"bio_age_5_17",
	"bio_age_17_plus",
	"demo_age_5_17",
	"demo_age_17_plus",
}

// ValidateColumns checks that every required column is present. The error
// names the first missing column so the caller can surface a clear
// diagnostic.
func ValidateColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	for _, required := range RequiredColumns {
		if !present[required] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return nil
}

// Aggregate collapses records into one DistrictAggregate per
// (state, district), with counters summed across periods and the
// total-enrolment series kept in period order for digit extraction.
// Output order is deterministic: state, then district.
func Aggregate(records []domain.TransactionRecord) []domain.DistrictAggregate {
	type series struct {
		agg     *domain.DistrictAggregate
		periods []string
	}

	byKey := make(map[domain.DistrictKey]*series)
	var keys []domain.DistrictKey

	for _, rec := range records {
		key := domain.DistrictKey{State: rec.State, District: rec.District}
		s, ok := byKey[key]
		if !ok {
			s = &series{agg: &domain.DistrictAggregate{
				State:    rec.State,
				District: rec.District,
			}}
			byKey[key] = s
			keys = append(keys, key)
		}

		s.agg.TotalEnrolment += rec.TotalEnrolment
		s.agg.EnrolAge0To5 += rec.EnrolAge0To5
		s.agg.EnrolAge5To17 += rec.EnrolAge5To17
		s.agg.EnrolAge18Plus += rec.EnrolAge18Plus
		s.agg.BioAge17Plus += rec.BioAge17Plus
		s.agg.DemoAge17Plus += rec.DemoAge17Plus
		s.agg.PeriodValues = append(s.agg.PeriodValues, rec.TotalEnrolment)
		s.periods = append(s.periods, rec.Period)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].State != keys[j].State {
			return keys[i].State < keys[j].State
		}
		return keys[i].District < keys[j].District
	})

	out := make([]domain.DistrictAggregate, 0, len(keys))
	for _, key := range keys {
		s := byKey[key]
		sortSeriesByPeriod(s.agg.PeriodValues, s.periods)
		out = append(out, *s.agg)
	}
	return out
}

// sortSeriesByPeriod orders a value series by its period labels. Periods are
// year-month strings, so lexicographic order is chronological.
func sortSeriesByPeriod(values []int64, periods []string) {
	idx := make([]int, len(periods))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return periods[idx[a]] < periods[idx[b]] })

	sortedValues := make([]int64, len(values))
	for i, j := range idx {
		sortedValues[i] = values[j]
	}
	copy(values, sortedValues)
}

// Fingerprint hashes the canonical record stream. Identical datasets produce
// identical fingerprints regardless of input row order, which makes the
// fingerprint a stable memoization key for run results.
func Fingerprint(records []domain.TransactionRecord) string {
	sorted := make([]domain.TransactionRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.State != b.State {
			return a.State < b.State
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.Period < b.Period
	})

	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	for _, rec := range sorted {
		h.WriteString(rec.State)
		h.WriteString("\x00")
		h.WriteString(rec.District)
		h.WriteString("\x00")
		h.WriteString(rec.Period)
		h.WriteString("\x00")
		writeInt(rec.TotalEnrolment)
		writeInt(rec.EnrolAge0To5)
		writeInt(rec.EnrolAge5To17)
		writeInt(rec.EnrolAge18Plus)
		writeInt(rec.BioAge5To17)
		writeInt(rec.BioAge17Plus)
		writeInt(rec.DemoAge5To17)
		writeInt(rec.DemoAge17Plus)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
