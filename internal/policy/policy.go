// Package policy provides the CEL-based alert-rule engine evaluated over
// fused risk records.
package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-identity/shikra/internal/domain"
)

// Engine compiles alert rules once and evaluates them against every fused
// record of a run.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledRule
}

type compiledRule struct {
	rule    *domain.AlertRule
	program cel.Program
}

// NewEngine creates an alert-rule engine with the fused-record variables
// bound into the CEL environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("state", cel.StringType),
		cel.Variable("district", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("deviation_factor", cel.DoubleType),
		cel.Variable("chi_square_stat", cel.DoubleType),
		cel.Variable("anomaly_score", cel.DoubleType),
		cel.Variable("is_anomaly", cel.BoolType),
		cel.Variable("dual_detection", cel.BoolType),
		cel.Variable("sample_size", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*compiledRule),
	}, nil
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}
	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(rules []*domain.AlertRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces the loaded rule set atomically. Enables hot reload
// from the repository without restart.
func (e *Engine) ReloadRules(rules []*domain.AlertRule) error {
	newRules := make(map[string]*compiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compile(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.mu.Lock()
	e.compiledRules = newRules
	e.mu.Unlock()
	return nil
}

// Evaluate runs every loaded rule against every record and returns the
// raised alerts.
func (e *Engine) Evaluate(runID string, records []domain.CombinedRiskRecord) []domain.Alert {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	var alerts []domain.Alert
	for _, rec := range records {
		activation := map[string]any{
			"state":            rec.State,
			"district":         rec.District,
			"risk_score":       rec.RiskScore,
			"risk_level":       rec.RiskLevel,
			"deviation_factor": rec.DeviationFactor,
			"chi_square_stat":  rec.ChiSquareStat,
			"anomaly_score":    rec.AnomalyScore,
			"is_anomaly":       rec.IsAnomaly,
			"dual_detection":   rec.DualDetection,
			"sample_size":      int64(rec.SampleSize),
		}

		for _, rule := range rules {
			out, _, err := rule.program.Eval(activation)
			if err != nil {
				// A rule that errors on one record must not suppress the
				// others; skip it for this record.
				continue
			}
			if matched, ok := out.(types.Bool); ok && bool(matched) {
				alerts = append(alerts, domain.Alert{
					RunID:    runID,
					RuleID:   rule.rule.ID,
					RuleName: rule.rule.Name,
					Severity: rule.rule.Severity,
					Record:   rec,
				})
			}
		}
	}
	return alerts
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule definitions.
func (e *Engine) GetLoadedRules() []*domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AlertRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.rule)
	}
	return rules
}

func (e *Engine) compile(rule *domain.AlertRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile alert rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("alert rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for alert rule %s: %w", rule.ID, err)
	}

	return &compiledRule{rule: rule, program: program}, nil
}
