// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-identity/shikra/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite", "":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRecords stores dataset rows, replacing any existing row for the same
// (state, district, period). The upload is transactional: either every row
// lands or none does.
func (r *SQLRepository) SaveRecords(ctx context.Context, records []domain.TransactionRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: no records to save", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO records (
			state, district, period, total_enrolment,
			enrol_age_0_5, enrol_age_5_17, enrol_age_18_plus,
			bio_age_5_17, bio_age_17_plus,
			demo_age_5_17, demo_age_17_plus
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(state, district, period) DO UPDATE SET
			total_enrolment = excluded.total_enrolment,
			enrol_age_0_5 = excluded.enrol_age_0_5,
			enrol_age_5_17 = excluded.enrol_age_5_17,
			enrol_age_18_plus = excluded.enrol_age_18_plus,
			bio_age_5_17 = excluded.bio_age_5_17,
			bio_age_17_plus = excluded.bio_age_17_plus,
			demo_age_5_17 = excluded.demo_age_5_17,
			demo_age_17_plus = excluded.demo_age_17_plus
	`

	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.State, rec.District, rec.Period, rec.TotalEnrolment,
			rec.EnrolAge0To5, rec.EnrolAge5To17, rec.EnrolAge18Plus,
			rec.BioAge5To17, rec.BioAge17Plus,
			rec.DemoAge5To17, rec.DemoAge17Plus,
		); err != nil {
			return fmt.Errorf("failed to save record %s/%s/%s: %w", rec.State, rec.District, rec.Period, err)
		}
	}

	return tx.Commit()
}

// ListRecords retrieves the full dataset in deterministic order.
func (r *SQLRepository) ListRecords(ctx context.Context) ([]domain.TransactionRecord, error) {
	query := `
		SELECT state, district, period, total_enrolment,
			   enrol_age_0_5, enrol_age_5_17, enrol_age_18_plus,
			   bio_age_5_17, bio_age_17_plus,
			   demo_age_5_17, demo_age_17_plus
		FROM records
		ORDER BY state, district, period
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(
			&rec.State, &rec.District, &rec.Period, &rec.TotalEnrolment,
			&rec.EnrolAge0To5, &rec.EnrolAge5To17, &rec.EnrolAge18Plus,
			&rec.BioAge5To17, &rec.BioAge17Plus,
			&rec.DemoAge5To17, &rec.DemoAge17Plus,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteRecords removes the entire dataset.
func (r *SQLRepository) DeleteRecords(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records`)
	return err
}

// SaveRun stores a completed analysis run. Result sets are serialized as
// JSON documents; runs are read back whole, never queried by column.
func (r *SQLRepository) SaveRun(ctx context.Context, result *domain.RunResult) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("%w: run result with ID is required", ErrInvalidInput)
	}

	summary, _ := json.Marshal(result.Summary)
	benford, _ := json.Marshal(result.Benford)
	anomalies, _ := json.Marshal(result.Anomalies)
	suspects, _ := json.Marshal(result.Suspects)

	query := `
		INSERT INTO runs (
			id, fingerprint, started_at, summary, benford, anomalies, suspects
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.RunID, result.Fingerprint, result.StartedAt,
		string(summary), string(benford), string(anomalies), string(suspects),
	)
	return err
}

// GetRun retrieves a run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.RunResult, error) {
	query := `
		SELECT id, fingerprint, started_at, summary, benford, anomalies, suspects
		FROM runs
		WHERE id = ?
	`

	var result domain.RunResult
	var summary, benford, anomalies, suspects string

	err := r.db.QueryRowContext(ctx, r.rebind(query), runID).Scan(
		&result.RunID, &result.Fingerprint, &result.StartedAt,
		&summary, &benford, &anomalies, &suspects,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(summary), &result.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse run summary: %w", err)
	}
	if err := json.Unmarshal([]byte(benford), &result.Benford); err != nil {
		return nil, fmt.Errorf("failed to parse benford assessments: %w", err)
	}
	if err := json.Unmarshal([]byte(anomalies), &result.Anomalies); err != nil {
		return nil, fmt.Errorf("failed to parse anomaly assessments: %w", err)
	}
	if err := json.Unmarshal([]byte(suspects), &result.Suspects); err != nil {
		return nil, fmt.Errorf("failed to parse suspects: %w", err)
	}

	return &result, nil
}

// ListRuns retrieves run summaries, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummaryRow, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, fingerprint, started_at, summary
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunSummaryRow
	for rows.Next() {
		var row domain.RunSummaryRow
		var summary string
		if err := rows.Scan(&row.RunID, &row.Fingerprint, &row.StartedAt, &summary); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(summary), &row.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse run summary for %s: %w", row.RunID, err)
		}
		runs = append(runs, row)
	}

	return runs, rows.Err()
}

// SaveAlertRule stores or updates an alert rule.
func (r *SQLRepository) SaveAlertRule(ctx context.Context, rule *domain.AlertRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: alert rule with ID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO alert_rules (
			id, name, description, expression, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Expression, rule.Severity, enabled,
		now, now,
	)
	return err
}

// ListAlertRules retrieves all enabled alert rules.
func (r *SQLRepository) ListAlertRules(ctx context.Context) ([]*domain.AlertRule, error) {
	query := `
		SELECT id, name, description, expression, severity, enabled, created_at, updated_at
		FROM alert_rules
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.AlertRule
	for rows.Next() {
		var rule domain.AlertRule
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description,
			&rule.Expression, &rule.Severity, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteAlertRule soft-deletes an alert rule by setting enabled = 0.
func (r *SQLRepository) DeleteAlertRule(ctx context.Context, ruleID string) error {
	query := `
		UPDATE alert_rules
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
