package domain

import (
	"context"
	"time"
)

// Repository persists input records, analysis runs, and alert rules.
type Repository interface {
	// Record operations
	SaveRecords(ctx context.Context, records []TransactionRecord) error
	ListRecords(ctx context.Context) ([]TransactionRecord, error)
	DeleteRecords(ctx context.Context) error

	// Run results
	SaveRun(ctx context.Context, result *RunResult) error
	GetRun(ctx context.Context, runID string) (*RunResult, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummaryRow, error)

	// Alert rule operations
	SaveAlertRule(ctx context.Context, rule *AlertRule) error
	ListAlertRules(ctx context.Context) ([]*AlertRule, error)
	DeleteAlertRule(ctx context.Context, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RunSummaryRow is the run-listing projection.
type RunSummaryRow struct {
	RunID       string     `json:"runId"`
	Fingerprint string     `json:"fingerprint"`
	StartedAt   time.Time  `json:"startedAt"`
	Summary     RunSummary `json:"summary"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver" env:"SHIKRA_DB_DRIVER"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath" env:"SHIKRA_SQLITE_PATH"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost" env:"SHIKRA_PG_HOST"`
	PostgresPort     int    `yaml:"postgresPort" env:"SHIKRA_PG_PORT"`
	PostgresUser     string `yaml:"postgresUser" env:"SHIKRA_PG_USER"`
	PostgresPassword string `yaml:"postgresPassword" env:"SHIKRA_PG_PASSWORD"`
	PostgresDB       string `yaml:"postgresDB" env:"SHIKRA_PG_DB"`
	PostgresSSLMode  string `yaml:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
