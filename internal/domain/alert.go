package domain

import "time"

// AlertRule is a CEL expression evaluated against each fused risk record.
// Expressions must return bool; a true result raises an alert.
type AlertRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Severity    string    `json:"severity"` // "critical" or "warning"
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Alert is the event published when a fused record matches an alert rule.
type Alert struct {
	RunID    string             `json:"runId"`
	RuleID   string             `json:"ruleId"`
	RuleName string             `json:"ruleName"`
	Severity string             `json:"severity"`
	Record   CombinedRiskRecord `json:"record"`
}

// DefaultAlertRules returns the built-in policy set. Dual detection is the
// highest-confidence signal surfaced to end users as critical.
func DefaultAlertRules() []*AlertRule {
	return []*AlertRule{
		{
			ID:          "dual-detection",
			Name:        "Dual Detection",
			Description: "Both the digit-conformance and outlier signals flag the district",
			Expression:  "dual_detection",
			Severity:    SeverityCritical,
			Enabled:     true,
		},
		{
			ID:          "high-risk-digits",
			Name:        "High Benford Deviation",
			Description: "Leading-digit distribution deviates far beyond the critical value",
			Expression:  `risk_level == "HIGH RISK"`,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
	}
}
