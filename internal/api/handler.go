package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-identity/shikra/internal/dataset"
	"github.com/opensource-identity/shikra/internal/domain"
	"github.com/opensource-identity/shikra/internal/engine"
	"github.com/opensource-identity/shikra/internal/fusion"
	"github.com/opensource-identity/shikra/internal/policy"
	"github.com/opensource-identity/shikra/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	policies *policy.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, policies *policy.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   eng,
		policies: policies,
		version:  version,
	}
}

// IngestResponse is the response for POST /records.
type IngestResponse struct {
	Records  int    `json:"records"`
	Message  string `json:"message"`
	IngestMs int64  `json:"ingestMs"`
}

// IngestRecords handles POST /records. Accepts either a JSON array of
// records or a CSV document (Content-Type: text/csv) in the upstream
// column layout.
func (h *Handler) IngestRecords(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var records []domain.TransactionRecord

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/csv") {
		parsed, err := dataset.ParseCSV(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CSV: " + err.Error(),
			})
			return
		}
		records = parsed
	} else {
		if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	if len(records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "dataset is empty",
		})
		return
	}

	for _, rec := range records {
		if rec.State == "" || rec.District == "" || rec.Period == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "state, district, and period are required on every record",
			})
			return
		}
	}

	if err := h.repo.SaveRecords(ctx, records); err != nil {
		slog.Error("failed to save records", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save records",
		})
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]int{"records": len(records)})
		if err := h.bus.Publish(ctx, domain.TopicDatasetIngested, payload); err != nil {
			slog.Warn("failed to publish dataset event", "error", err)
		}
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		Records:  len(records),
		Message:  "dataset ingested",
		IngestMs: time.Since(start).Milliseconds(),
	})
}

// ListRecords handles GET /records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.ListRecords(r.Context())
	if err != nil {
		slog.Error("failed to list records", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list records",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// DeleteRecords handles DELETE /records.
func (h *Handler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteRecords(r.Context()); err != nil {
		slog.Error("failed to delete records", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete records",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "dataset deleted",
	})
}

// StartRun handles POST /runs: loads the stored dataset and runs the full
// analysis pipeline synchronously.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.repo.ListRecords(ctx)
	if err != nil {
		slog.Error("failed to load records", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load records",
		})
		return
	}

	if len(records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no dataset ingested",
		})
		return
	}

	result, err := h.engine.Run(ctx, records)
	if err != nil {
		slog.Error("analysis run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis run failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRunBenford handles GET /runs/{id}/benford.
func (h *Handler) GetRunBenford(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":   result.RunID,
		"benford": result.Benford,
		"count":   len(result.Benford),
	})
}

// GetRunAnomalies handles GET /runs/{id}/anomalies.
func (h *Handler) GetRunAnomalies(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":     result.RunID,
		"anomalies": result.Anomalies,
		"count":     len(result.Anomalies),
	})
}

// GetRunSuspects handles GET /runs/{id}/suspects. The limit query parameter
// trims the ranked list; it defaults to the standard top-20 report.
func (h *Handler) GetRunSuspects(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", fusion.DefaultTopN)
	suspects := result.TopSuspects(limit)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":    result.RunID,
		"suspects": suspects,
		"count":    len(suspects),
	})
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*domain.RunResult, bool) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return nil, false
	}

	result, err := h.repo.GetRun(r.Context(), runID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return nil, false
	}
	if err != nil {
		slog.Error("failed to get run", "id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get run",
		})
		return nil, false
	}

	return result, true
}

// ListAlertRules returns the rules currently loaded in the policy engine.
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	rules := h.policies.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateAlertRuleRequest is the request body for creating an alert rule.
type CreateAlertRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
}

// CreateAlertRule creates a new alert rule and saves it to the database.
// After saving, call POST /alerts/reload to apply changes.
func (h *Handler) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateAlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityWarning
	}
	if severity != domain.SeverityCritical && severity != domain.SeverityWarning {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "severity must be critical or warning",
		})
		return
	}

	rule := &domain.AlertRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    severity,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.policies.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveAlertRule(ctx, rule); err != nil {
		slog.Error("failed to save alert rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save alert rule",
		})
		return
	}

	slog.Info("alert rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Alert rule created. Call POST /alerts/reload to apply changes.",
	})
}

// DeleteAlertRule deletes an alert rule and auto-reloads the policy engine.
func (h *Handler) DeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if err := h.repo.DeleteAlertRule(ctx, ruleID); err != nil {
		slog.Error("failed to delete alert rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert rule not found",
		})
		return
	}

	// Auto-reload the policy engine after delete
	rules, err := h.repo.ListAlertRules(ctx)
	if err != nil {
		slog.Error("failed to reload alert rules after delete", "error", err)
	} else if err := h.policies.ReloadRules(rules); err != nil {
		slog.Error("failed to reload policy engine after delete", "error", err)
	}

	slog.Info("alert rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Alert rule deleted and policy engine reloaded.",
	})
}

// ReloadAlertRules reloads all alert rules from the database into the
// policy engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadAlertRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rules, err := h.repo.ListAlertRules(ctx)
	if err != nil {
		slog.Error("failed to list alert rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load alert rules from database",
		})
		return
	}

	if err := h.policies.ReloadRules(rules); err != nil {
		slog.Error("failed to reload alert rules into policy engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload alert rules: " + err.Error(),
		})
		return
	}

	slog.Info("alert rules reloaded from database", "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "alert rules reloaded successfully",
		"count":   len(rules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
