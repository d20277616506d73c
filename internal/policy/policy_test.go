package policy

import (
	"testing"

	"github.com/opensource-identity/shikra/internal/domain"
)

func rule(id, expression string) *domain.AlertRule {
	return &domain.AlertRule{
		ID:         id,
		Name:       id,
		Expression: expression,
		Severity:   domain.SeverityWarning,
		Enabled:    true,
	}
}

func suspect(district string, score float64, dual bool) domain.CombinedRiskRecord {
	riskLevel := domain.RiskCompliant
	if dual {
		riskLevel = domain.RiskHigh
	}
	return domain.CombinedRiskRecord{
		State:           "Alpha",
		District:        district,
		ChiSquareStat:   180,
		DeviationFactor: 1.6,
		RiskLevel:       riskLevel,
		SampleSize:      12,
		AnomalyScore:    -0.6,
		IsAnomaly:       dual,
		RiskScore:       score,
		DualDetection:   dual,
	}
}

func TestLoadRuleRejectsBadExpressions(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	tests := []struct {
		name string
		expr string
	}{
		{name: "SyntaxError", expr: "risk_score >"},
		{name: "UnknownVariable", expr: "tenant_id == \"x\""},
		{name: "NonBoolOutput", expr: "risk_score + 1.0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := e.LoadRule(rule("bad", tc.expr)); err == nil {
				t.Fatal("expected compile error")
			}
		})
	}
	if e.RuleCount() != 0 {
		t.Fatalf("rejected rules were loaded: count=%d", e.RuleCount())
	}
}

func TestEvaluateMatchesRecords(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.LoadRules(domain.DefaultAlertRules()); err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	records := []domain.CombinedRiskRecord{
		suspect("Fabricated", 2.4, true),
		suspect("Ordinary", 0.7, false),
	}
	alerts := e.Evaluate("run-1", records)

	// The fabricated district trips both default rules, the ordinary one
	// trips neither.
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(alerts), alerts)
	}
	for _, a := range alerts {
		if a.RunID != "run-1" {
			t.Fatalf("alert run id = %q, want run-1", a.RunID)
		}
		if a.Record.District != "Fabricated" {
			t.Fatalf("alert raised for %q", a.Record.District)
		}
	}
}

func TestEvaluateVariableBindings(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	expressions := []string{
		`state == "Alpha" && district == "Fabricated"`,
		`risk_score > 2.0`,
		`risk_level == "HIGH RISK"`,
		`deviation_factor > 1.5`,
		`chi_square_stat > 150.0`,
		`anomaly_score < -0.5`,
		`is_anomaly`,
		`dual_detection`,
		`sample_size >= 12`,
	}
	for i, expr := range expressions {
		if err := e.LoadRule(rule(string(rune('a'+i)), expr)); err != nil {
			t.Fatalf("rule %q: %v", expr, err)
		}
	}

	alerts := e.Evaluate("run-1", []domain.CombinedRiskRecord{suspect("Fabricated", 2.4, true)})
	if len(alerts) != len(expressions) {
		t.Fatalf("expected every binding to match, got %d of %d alerts", len(alerts), len(expressions))
	}
}

func TestLoadRulesSkipsDisabled(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	disabled := rule("off", "dual_detection")
	disabled.Enabled = false
	if err := e.LoadRules([]*domain.AlertRule{disabled, rule("on", "is_anomaly")}); err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if e.RuleCount() != 1 {
		t.Fatalf("rule count = %d, want 1", e.RuleCount())
	}
	if got := e.GetLoadedRules(); len(got) != 1 || got[0].ID != "on" {
		t.Fatalf("loaded rules = %+v", got)
	}
}

func TestReloadRulesReplacesSet(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.LoadRule(rule("old", "dual_detection")); err != nil {
		t.Fatalf("LoadRule: %v", err)
	}

	if err := e.ReloadRules([]*domain.AlertRule{rule("new", "risk_score > 1.0")}); err != nil {
		t.Fatalf("ReloadRules: %v", err)
	}
	rules := e.GetLoadedRules()
	if len(rules) != 1 || rules[0].ID != "new" {
		t.Fatalf("reload kept wrong set: %+v", rules)
	}

	// A reload that fails to compile must leave the loaded set untouched.
	if err := e.ReloadRules([]*domain.AlertRule{rule("broken", "risk_score >")}); err == nil {
		t.Fatal("expected reload error")
	}
	if got := e.GetLoadedRules(); len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("failed reload mutated rules: %+v", got)
	}
}

func TestEvaluateNoRulesNoRecords(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if alerts := e.Evaluate("run-1", []domain.CombinedRiskRecord{suspect("D", 2.0, true)}); len(alerts) != 0 {
		t.Fatalf("no rules loaded but got %d alerts", len(alerts))
	}

	if err := e.LoadRule(rule("r", "dual_detection")); err != nil {
		t.Fatalf("LoadRule: %v", err)
	}
	if alerts := e.Evaluate("run-1", nil); len(alerts) != 0 {
		t.Fatalf("no records but got %d alerts", len(alerts))
	}
}
