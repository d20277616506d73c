// Package engine orchestrates a full fraud-signal analysis run.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/opensource-identity/shikra/internal/benford"
	"github.com/opensource-identity/shikra/internal/dataset"
	"github.com/opensource-identity/shikra/internal/domain"
	"github.com/opensource-identity/shikra/internal/fusion"
	"github.com/opensource-identity/shikra/internal/isoforest"
	"github.com/opensource-identity/shikra/internal/policy"
)

var tracer = otel.Tracer("shikra-engine")

// Engine runs the full pipeline: aggregation, both detectors, fusion, and
// alert evaluation. The two detectors have no data dependency on each other
// and run concurrently; fusion waits on both.
type Engine struct {
	cfg      domain.EngineConfig
	analyzer *benford.Analyzer
	detector *isoforest.Detector
	fuser    *fusion.Fuser

	// Collaborators; each may be nil when the deployment does not use it.
	policies *policy.Engine
	cache    domain.Cache
	repo     domain.Repository
	bus      domain.EventBus
}

// New creates an engine. cache, repo, bus, and policies may be nil.
func New(cfg domain.EngineConfig, cache domain.Cache, repo domain.Repository, bus domain.EventBus, policies *policy.Engine) *Engine {
	return &Engine{
		cfg:      cfg,
		analyzer: benford.NewAnalyzer(cfg),
		detector: isoforest.NewDetector(cfg),
		fuser:    fusion.NewFuser(cfg),
		policies: policies,
		cache:    cache,
		repo:     repo,
		bus:      bus,
	}
}

// Run executes one analysis over the given records. Results are pure
// functions of the input, so a memoized result for the same dataset
// fingerprint is returned without recomputation. Empty input produces an
// empty, correctly-shaped result, not an error.
func (e *Engine) Run(ctx context.Context, records []domain.TransactionRecord) (*domain.RunResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "engine.Run")
	defer span.End()

	fingerprint := dataset.Fingerprint(records)
	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.String("fingerprint", fingerprint),
	)

	if e.cache != nil {
		cached, err := e.cache.GetRunResult(ctx, fingerprint)
		if err != nil {
			slog.Warn("result cache lookup failed", "error", err)
		} else if cached != nil {
			cached.Summary.CacheHit = true
			slog.Info("analysis served from cache",
				"fingerprint", fingerprint,
				"run_id", cached.RunID,
			)
			return cached, nil
		}
	}

	aggregates := dataset.Aggregate(records)

	var (
		benfordResults []domain.BenfordAssessment
		anomalyResults []domain.AnomalyAssessment
		benfordMs      int64
		outlierMs      int64
	)

	// Join barrier: fusion must not start until both signals are in.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		_, benfordSpan := tracer.Start(gctx, "engine.benford")
		defer benfordSpan.End()
		benfordResults = e.analyzer.Assess(gctx, aggregates)
		benfordMs = time.Since(t).Milliseconds()
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		_, outlierSpan := tracer.Start(gctx, "engine.outliers")
		defer outlierSpan.End()
		anomalyResults = e.detector.Assess(aggregates)
		outlierMs = time.Since(t).Milliseconds()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fusionStart := time.Now()
	suspects := e.fuser.Fuse(benfordResults, anomalyResults)
	fusionMs := time.Since(fusionStart).Milliseconds()

	result := &domain.RunResult{
		RunID:       uuid.New().String(),
		Fingerprint: fingerprint,
		StartedAt:   start.UTC(),
		Benford:     benfordResults,
		Anomalies:   anomalyResults,
		Suspects:    suspects,
		Summary: domain.RunSummary{
			Records:   len(records),
			Districts: len(aggregates),
			BenfordMs: benfordMs,
			OutlierMs: outlierMs,
			FusionMs:  fusionMs,
		},
	}
	summarize(result)
	result.Summary.TotalMs = time.Since(start).Milliseconds()

	e.finishRun(ctx, result)

	slog.Info("analysis complete",
		"run_id", result.RunID,
		"districts", result.Summary.Districts,
		"benford_eligible", result.Summary.BenfordEligible,
		"anomalies", result.Summary.AnomaliesFlagged,
		"dual_detections", result.Summary.DualDetections,
		"duration_ms", result.Summary.TotalMs,
	)
	return result, nil
}

// finishRun handles the side effects of a completed run: memoization,
// persistence, and event publication. Failures here degrade the deployment
// but never fail the computation itself.
func (e *Engine) finishRun(ctx context.Context, result *domain.RunResult) {
	if e.cache != nil {
		if err := e.cache.SetRunResult(ctx, result.Fingerprint, result, e.cfg.ResultTTL); err != nil {
			slog.Warn("failed to memoize run result", "error", err)
		}
	}

	if e.repo != nil {
		if err := e.repo.SaveRun(ctx, result); err != nil {
			slog.Error("failed to persist run", "run_id", result.RunID, "error", err)
		}
	}

	if e.bus == nil {
		return
	}

	completed := struct {
		RunID       string            `json:"runId"`
		Fingerprint string            `json:"fingerprint"`
		Summary     domain.RunSummary `json:"summary"`
	}{result.RunID, result.Fingerprint, result.Summary}
	if data, err := json.Marshal(completed); err == nil {
		if err := e.bus.Publish(ctx, domain.TopicRunCompleted, data); err != nil {
			slog.Error("failed to publish run completion", "run_id", result.RunID, "error", err)
		}
	}

	if e.policies == nil {
		return
	}
	for _, alert := range e.policies.Evaluate(result.RunID, result.Suspects) {
		data, err := json.Marshal(alert)
		if err != nil {
			continue
		}
		if err := e.bus.Publish(ctx, domain.TopicAlert, data); err != nil {
			slog.Error("failed to publish alert",
				"run_id", result.RunID,
				"rule_id", alert.RuleID,
				"error", err,
			)
		}
	}
}

func summarize(result *domain.RunResult) {
	s := &result.Summary
	s.BenfordEligible = len(result.Benford)
	for _, b := range result.Benford {
		switch b.RiskLevel {
		case domain.RiskHigh:
			s.HighRisk++
		case domain.RiskModerate:
			s.ModerateRisk++
		}
	}
	for _, a := range result.Anomalies {
		if a.IsAnomaly {
			s.AnomaliesFlagged++
		}
	}
	for _, c := range result.Suspects {
		if c.DualDetection {
			s.DualDetections++
		}
	}
}
