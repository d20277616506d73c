package fusion

import (
	"math"
	"testing"

	"github.com/opensource-identity/shikra/internal/domain"
)

func benfordFor(district string, deviation float64, risk string) domain.BenfordAssessment {
	return domain.BenfordAssessment{
		State:           "Alpha",
		District:        district,
		TotalEnrolment:  100000,
		ChiSquareStat:   deviation * 112.0,
		CriticalValue:   112.0,
		DeviationFactor: deviation,
		RiskLevel:       risk,
		SampleSize:      12,
	}
}

func anomalyFor(district string, score float64, flagged bool) domain.AnomalyAssessment {
	return domain.AnomalyAssessment{
		State:        "Alpha",
		District:     district,
		AnomalyScore: score,
		IsAnomaly:    flagged,
	}
}

func TestFuseRiskScoreWeighting(t *testing.T) {
	f := NewFuser(domain.DefaultEngineConfig())

	out := f.Fuse(
		[]domain.BenfordAssessment{benfordFor("Uniform", 2.0, domain.RiskHigh)},
		[]domain.AnomalyAssessment{anomalyFor("Uniform", -0.6, true)},
	)
	if len(out) != 1 {
		t.Fatalf("expected 1 combined record, got %d", len(out))
	}

	// 2.0*0.6 + (1 - (-0.6))*0.4
	want := 2.0*0.6 + 1.6*0.4
	if math.Abs(out[0].RiskScore-want) > 1e-12 {
		t.Fatalf("risk score = %v, want %v", out[0].RiskScore, want)
	}
	if !out[0].DualDetection {
		t.Fatal("high-risk flagged district must be a dual detection")
	}
}

func TestFuseDualDetectionRequiresBothSignals(t *testing.T) {
	f := NewFuser(domain.DefaultEngineConfig())

	tests := []struct {
		name    string
		risk    string
		flagged bool
		want    bool
	}{
		{name: "HighAndFlagged", risk: domain.RiskHigh, flagged: true, want: true},
		{name: "ModerateAndFlagged", risk: domain.RiskModerate, flagged: true, want: true},
		{name: "CompliantAndFlagged", risk: domain.RiskCompliant, flagged: true, want: false},
		{name: "HighNotFlagged", risk: domain.RiskHigh, flagged: false, want: false},
		{name: "CompliantNotFlagged", risk: domain.RiskCompliant, flagged: false, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := f.Fuse(
				[]domain.BenfordAssessment{benfordFor("D", 1.2, tc.risk)},
				[]domain.AnomalyAssessment{anomalyFor("D", -0.5, tc.flagged)},
			)
			if len(out) != 1 {
				t.Fatalf("expected 1 record, got %d", len(out))
			}
			if out[0].DualDetection != tc.want {
				t.Fatalf("dual detection = %v, want %v", out[0].DualDetection, tc.want)
			}
		})
	}
}

func TestFuseInnerJoin(t *testing.T) {
	f := NewFuser(domain.DefaultEngineConfig())

	out := f.Fuse(
		[]domain.BenfordAssessment{
			benfordFor("Both", 1.0, domain.RiskCompliant),
			benfordFor("BenfordOnly", 2.0, domain.RiskHigh),
		},
		[]domain.AnomalyAssessment{
			anomalyFor("Both", -0.4, false),
			anomalyFor("AnomalyOnly", -0.9, true),
		},
	)
	if len(out) != 1 {
		t.Fatalf("expected inner join of 1, got %d", len(out))
	}
	if out[0].District != "Both" {
		t.Fatalf("joined district = %q, want Both", out[0].District)
	}
}

func TestFuseRankedDescending(t *testing.T) {
	f := NewFuser(domain.DefaultEngineConfig())

	out := f.Fuse(
		[]domain.BenfordAssessment{
			benfordFor("Low", 0.5, domain.RiskCompliant),
			benfordFor("High", 3.0, domain.RiskHigh),
			benfordFor("Mid", 1.2, domain.RiskModerate),
		},
		[]domain.AnomalyAssessment{
			anomalyFor("Low", -0.3, false),
			anomalyFor("High", -0.8, true),
			anomalyFor("Mid", -0.5, false),
		},
	)
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	wantOrder := []string{"High", "Mid", "Low"}
	for i, district := range wantOrder {
		if out[i].District != district {
			t.Fatalf("rank %d = %q, want %q", i, out[i].District, district)
		}
	}
	for i := 1; i < len(out); i++ {
		if out[i].RiskScore > out[i-1].RiskScore {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	f := NewFuser(domain.DefaultEngineConfig())

	for name, out := range map[string][]domain.CombinedRiskRecord{
		"NoBenford":   f.Fuse(nil, []domain.AnomalyAssessment{anomalyFor("D", -0.5, true)}),
		"NoAnomalies": f.Fuse([]domain.BenfordAssessment{benfordFor("D", 1.0, domain.RiskCompliant)}, nil),
		"BothEmpty":   f.Fuse(nil, nil),
	} {
		if out == nil || len(out) != 0 {
			t.Fatalf("%s: expected empty non-nil slice, got %v", name, out)
		}
	}
}

func TestNewFuserDefaults(t *testing.T) {
	f := NewFuser(domain.EngineConfig{})
	if f.benfordWeight != 0.6 || f.anomalyWeight != 0.4 {
		t.Fatalf("default weights = %v/%v, want 0.6/0.4", f.benfordWeight, f.anomalyWeight)
	}
}
