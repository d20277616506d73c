package domain

import "testing"

func TestTopSuspects(t *testing.T) {
	result := &RunResult{
		Suspects: []CombinedRiskRecord{
			{District: "A", RiskScore: 3.0},
			{District: "B", RiskScore: 2.0},
			{District: "C", RiskScore: 1.0},
		},
	}

	if got := result.TopSuspects(2); len(got) != 2 || got[0].District != "A" || got[1].District != "B" {
		t.Fatalf("TopSuspects(2) = %+v", got)
	}
	if got := result.TopSuspects(10); len(got) != 3 {
		t.Fatalf("TopSuspects beyond length returned %d", len(got))
	}
	if got := result.TopSuspects(0); len(got) != 3 {
		t.Fatalf("TopSuspects(0) returned %d, want all", len(got))
	}
	if got := result.TopSuspects(-1); len(got) != 3 {
		t.Fatalf("TopSuspects(-1) returned %d, want all", len(got))
	}
}

func TestDefaultAlertRulesCompileTargets(t *testing.T) {
	rules := DefaultAlertRules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 default rules, got %d", len(rules))
	}
	for _, r := range rules {
		if !r.Enabled {
			t.Fatalf("default rule %q disabled", r.ID)
		}
		if r.Severity != SeverityCritical && r.Severity != SeverityWarning {
			t.Fatalf("default rule %q has severity %q", r.ID, r.Severity)
		}
	}
}
