// Package worker runs analysis asynchronously off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-identity/shikra/internal/domain"
	"github.com/opensource-identity/shikra/internal/engine"
)

// Worker listens for dataset-ingested events and triggers a full analysis
// run over the stored dataset. It serializes runs: a second event arriving
// while a run is in flight waits for the first to finish.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *engine.Engine

	runMu         sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the dataset-ingested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicDatasetIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("analysis worker started", "topic", domain.TopicDatasetIngested)
	return nil
}

// IngestedMessage is the payload published with each dataset-ingested event.
type IngestedMessage struct {
	Records int `json:"records"`
}

// handleMessage loads the stored dataset and runs the analysis pipeline.
// The engine memoizes by dataset fingerprint, so redundant events after an
// unchanged upload cost one cache lookup.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var ingested IngestedMessage
	if err := json.Unmarshal(msg.Payload, &ingested); err != nil {
		slog.Error("failed to parse dataset event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing dataset event",
		"message_id", msg.ID,
		"records", ingested.Records,
	)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	records, err := w.repo.ListRecords(ctx)
	if err != nil {
		slog.Error("failed to load records for analysis",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if len(records) == 0 {
		slog.Warn("dataset event with no stored records", "message_id", msg.ID)
		return nil
	}

	result, err := w.engine.Run(ctx, records)
	if err != nil {
		slog.Error("analysis run failed",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Info("dataset analyzed",
		"run_id", result.RunID,
		"records", result.Summary.Records,
		"districts", result.Summary.Districts,
		"dual_detections", result.Summary.DualDetections,
		"cache_hit", result.Summary.CacheHit,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("analysis worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
