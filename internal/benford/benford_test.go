package benford

import (
	"context"
	"testing"

	"github.com/opensource-identity/shikra/internal/domain"
)

// growthSeries builds a multiplicative-growth counter series. Organic
// enrolment tends to grow multiplicatively, which produces leading digits
// close to the logarithmic expectation.
func growthSeries(start int64, periods int) []int64 {
	values := make([]int64, 0, periods)
	v := start
	for i := 0; i < periods; i++ {
		values = append(values, v)
		v = v * 135 / 100
	}
	return values
}

// flatSeries builds a near-constant series whose leading two digits never
// change, the signature of clerically fabricated counts.
func flatSeries(start int64, periods int) []int64 {
	values := make([]int64, 0, periods)
	for i := 0; i < periods; i++ {
		values = append(values, start+int64(i))
	}
	return values
}

func aggregate(state, district string, series []int64) domain.DistrictAggregate {
	var total int64
	for _, v := range series {
		total += v
	}
	return domain.DistrictAggregate{
		State:          state,
		District:       district,
		TotalEnrolment: total,
		PeriodValues:   series,
	}
}

func TestNewAnalyzerCriticalValue(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	// Chi-square 0.95 quantile at 89 degrees of freedom.
	cv := a.CriticalValue()
	if cv < 111 || cv > 113 {
		t.Fatalf("critical value = %v, want ~112", cv)
	}
}

func TestAssessFlatSeriesIsHighRisk(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	aggs := []domain.DistrictAggregate{
		aggregate("Alpha", "Uniform", flatSeries(50000, 12)),
	}
	out := a.Assess(context.Background(), aggs)
	if len(out) != 1 {
		t.Fatalf("expected 1 assessment, got %d", len(out))
	}

	got := out[0]
	if got.RiskLevel != domain.RiskHigh {
		t.Fatalf("risk level = %q, want %q (chi=%v, deviation=%v)",
			got.RiskLevel, domain.RiskHigh, got.ChiSquareStat, got.DeviationFactor)
	}
	if got.DeviationFactor <= 1.5 {
		t.Fatalf("deviation factor = %v, want > 1.5", got.DeviationFactor)
	}
	if got.SampleSize != 12 {
		t.Fatalf("sample size = %d, want 12", got.SampleSize)
	}
	if got.CriticalValue != a.CriticalValue() {
		t.Fatalf("assessment carries critical value %v, want %v", got.CriticalValue, a.CriticalValue())
	}
}

func TestAssessGrowthSeriesIsCompliant(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	aggs := []domain.DistrictAggregate{
		aggregate("Alpha", "Organic", growthSeries(10000, 24)),
	}
	out := a.Assess(context.Background(), aggs)
	if len(out) != 1 {
		t.Fatalf("expected 1 assessment, got %d", len(out))
	}

	got := out[0]
	if got.RiskLevel != domain.RiskCompliant {
		t.Fatalf("risk level = %q, want %q (chi=%v, deviation=%v)",
			got.RiskLevel, domain.RiskCompliant, got.ChiSquareStat, got.DeviationFactor)
	}
	if got.DeviationFactor > 1.0 {
		t.Fatalf("deviation factor = %v, want <= 1.0", got.DeviationFactor)
	}
}

func TestAssessRanksWorstFirst(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	aggs := []domain.DistrictAggregate{
		aggregate("Alpha", "Organic", growthSeries(10000, 24)),
		aggregate("Alpha", "Uniform", flatSeries(50000, 12)),
	}
	out := a.Assess(context.Background(), aggs)
	if len(out) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(out))
	}
	if out[0].District != "Uniform" {
		t.Fatalf("worst district first: got %q", out[0].District)
	}
	if out[0].ChiSquareStat < out[1].ChiSquareStat {
		t.Fatalf("assessments not sorted by chi-square descending: %v < %v",
			out[0].ChiSquareStat, out[1].ChiSquareStat)
	}
}

func TestAssessExcludesSparseSamples(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	aggs := []domain.DistrictAggregate{
		aggregate("Alpha", "FourPeriods", growthSeries(10000, 4)),
		aggregate("Alpha", "FivePeriods", growthSeries(10000, 5)),
	}
	out := a.Assess(context.Background(), aggs)
	if len(out) != 1 {
		t.Fatalf("expected only the five-period district, got %d assessments", len(out))
	}
	if out[0].District != "FivePeriods" {
		t.Fatalf("unexpected district %q", out[0].District)
	}
}

func TestAssessDropsUndefinedDigits(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	// Six periods, but two have zero activity: only four valid digit values
	// remain, which is below the minimum sample.
	series := []int64{12000, 0, 16000, 0, 21000, 29000}
	out := a.Assess(context.Background(), []domain.DistrictAggregate{
		aggregate("Alpha", "Sparse", series),
	})
	if len(out) != 0 {
		t.Fatalf("expected exclusion, got %d assessments", len(out))
	}
}

func TestAssessEmptyInput(t *testing.T) {
	a := NewAnalyzer(domain.DefaultEngineConfig())

	out := a.Assess(context.Background(), nil)
	if out == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}

func TestNewAnalyzerDefaults(t *testing.T) {
	a := NewAnalyzer(domain.EngineConfig{})
	if a.minSampleSize != 5 {
		t.Fatalf("minSampleSize = %d, want 5", a.minSampleSize)
	}
	if a.workers != 8 {
		t.Fatalf("workers = %d, want 8", a.workers)
	}
	if a.criticalValue < 111 || a.criticalValue > 113 {
		t.Fatalf("critical value = %v, want ~112", a.criticalValue)
	}
}
