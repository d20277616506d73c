package repository

// Schema definitions for the Shikra database.
// Compatible with both SQLite and PostgreSQL.

const schemaRecords = `
CREATE TABLE IF NOT EXISTS records (
    state TEXT NOT NULL,
    district TEXT NOT NULL,
    period TEXT NOT NULL,
    total_enrolment BIGINT NOT NULL,
    enrol_age_0_5 BIGINT NOT NULL,
    enrol_age_5_17 BIGINT NOT NULL,
    enrol_age_18_plus BIGINT NOT NULL,
    bio_age_5_17 BIGINT NOT NULL,
    bio_age_17_plus BIGINT NOT NULL,
    demo_age_5_17 BIGINT NOT NULL,
    demo_age_17_plus BIGINT NOT NULL,
    PRIMARY KEY (state, district, period)
);

CREATE INDEX IF NOT EXISTS idx_records_district ON records(state, district);
`

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    summary TEXT NOT NULL,
    benford TEXT NOT NULL,
    anomalies TEXT NOT NULL,
    suspects TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

const schemaAlertRules = `
CREATE TABLE IF NOT EXISTS alert_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_rules_enabled ON alert_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRecords,
		schemaRuns,
		schemaAlertRules,
	}
}
