package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/opensource-identity/shikra/internal/cache"
	"github.com/opensource-identity/shikra/internal/domain"
)

// scenarioDataset builds a national picture with organic peer districts and
// one fabricated district: flat total-enrolment counts and adult-heavy
// enrolments with almost no biometric update activity.
func scenarioDataset() []domain.TransactionRecord {
	var records []domain.TransactionRecord

	for p := 0; p < 6; p++ {
		base := int64(8000 + p*1100)
		for i, district := range []string{"North", "South", "East", "West", "Central", "Lakeside"} {
			total := base * 135 / 100
			for j := 0; j < p; j++ {
				total = total * 13 / 10
			}
			total += int64(i * 137)
			records = append(records, domain.TransactionRecord{
				State:          "Alpha",
				District:       district,
				Period:         fmt.Sprintf("2025-%02d", 4+p),
				TotalEnrolment: total,
				EnrolAge0To5:   total / 2,
				EnrolAge5To17:  total / 3,
				EnrolAge18Plus: total / 12,
				BioAge17Plus:   total / 4,
				DemoAge17Plus:  total / 5,
			})
		}
		records = append(records, domain.TransactionRecord{
			State:          "Alpha",
			District:       "Fabricated",
			Period:         fmt.Sprintf("2025-%02d", 4+p),
			TotalEnrolment: 50000 + int64(p),
			EnrolAge0To5:   500,
			EnrolAge5To17:  500,
			EnrolAge18Plus: 49000 + int64(p),
			BioAge17Plus:   2,
			DemoAge17Plus:  2,
		})
	}
	return records
}

func TestRunEndToEnd(t *testing.T) {
	eng := New(domain.DefaultEngineConfig(), nil, nil, nil, nil)

	result, err := eng.Run(context.Background(), scenarioDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RunID == "" || result.Fingerprint == "" {
		t.Fatalf("missing run identity: %+v", result)
	}
	if result.Summary.Districts != 7 {
		t.Fatalf("districts = %d, want 7", result.Summary.Districts)
	}
	if result.Summary.Records != len(scenarioDataset()) {
		t.Fatalf("records = %d, want %d", result.Summary.Records, len(scenarioDataset()))
	}
	if result.Summary.BenfordEligible != 7 {
		t.Fatalf("benford eligible = %d, want 7", result.Summary.BenfordEligible)
	}

	if len(result.Suspects) == 0 {
		t.Fatal("no suspects produced")
	}
	top := result.Suspects[0]
	if top.District != "Fabricated" {
		t.Fatalf("top suspect = %q, want Fabricated", top.District)
	}
	if top.RiskLevel != domain.RiskHigh {
		t.Fatalf("top suspect risk level = %q, want %q", top.RiskLevel, domain.RiskHigh)
	}
	if !top.IsAnomaly || !top.DualDetection {
		t.Fatalf("top suspect not dual-detected: %+v", top)
	}

	if result.Summary.DualDetections != 1 {
		t.Fatalf("dual detections = %d, want 1", result.Summary.DualDetections)
	}
	for _, s := range result.Suspects[1:] {
		if s.DualDetection {
			t.Fatalf("organic district %q dual-detected", s.District)
		}
	}
	for i := 1; i < len(result.Suspects); i++ {
		if result.Suspects[i].RiskScore > result.Suspects[i-1].RiskScore {
			t.Fatalf("suspects not ranked descending at %d", i)
		}
	}
	if result.Summary.CacheHit {
		t.Fatal("first run marked as cache hit")
	}
}

func TestRunDeterminism(t *testing.T) {
	cfg := domain.DefaultEngineConfig()

	first, err := New(cfg, nil, nil, nil, nil).Run(context.Background(), scenarioDataset())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := New(cfg, nil, nil, nil, nil).Run(context.Background(), scenarioDataset())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("fingerprints differ: %q vs %q", first.Fingerprint, second.Fingerprint)
	}
	if len(first.Suspects) != len(second.Suspects) {
		t.Fatalf("suspect counts differ: %d vs %d", len(first.Suspects), len(second.Suspects))
	}
	for i := range first.Suspects {
		a, b := first.Suspects[i], second.Suspects[i]
		if a.District != b.District || a.RiskScore != b.RiskScore || a.DualDetection != b.DualDetection {
			t.Fatalf("suspect %d differs:\n%+v\n%+v", i, a, b)
		}
	}
}

func TestRunMemoization(t *testing.T) {
	cfg := domain.DefaultEngineConfig()
	eng := New(cfg, cache.NewLRUCache(16), nil, nil, nil)

	first, err := eng.Run(context.Background(), scenarioDataset())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Summary.CacheHit {
		t.Fatal("first run marked as cache hit")
	}

	second, err := eng.Run(context.Background(), scenarioDataset())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Summary.CacheHit {
		t.Fatal("second run missed the memoized result")
	}
	if second.RunID != first.RunID {
		t.Fatalf("memoized run id = %q, want %q", second.RunID, first.RunID)
	}

	// A different dataset must not hit the memo.
	changed := scenarioDataset()
	changed[0].TotalEnrolment++
	third, err := eng.Run(context.Background(), changed)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.Summary.CacheHit {
		t.Fatal("changed dataset served from cache")
	}
	if third.Fingerprint == first.Fingerprint {
		t.Fatal("changed dataset kept the same fingerprint")
	}
}

func TestRunEmptyDataset(t *testing.T) {
	eng := New(domain.DefaultEngineConfig(), nil, nil, nil, nil)

	result, err := eng.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Districts != 0 || result.Summary.Records != 0 {
		t.Fatalf("empty dataset produced non-empty summary: %+v", result.Summary)
	}
	if len(result.Benford) != 0 || len(result.Anomalies) != 0 || len(result.Suspects) != 0 {
		t.Fatal("empty dataset produced assessments")
	}
}
