// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The same statements run on PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range Statements() {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Statements returns the schema split into single statements
func Statements() []string {
	var out []string
	for _, part := range strings.Split(schema, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Timestamps are stored as unix microseconds.
const schema = `
-- Users (trust owner)
CREATE TABLE IF NOT EXISTS app_user (
    id TEXT PRIMARY KEY,
    trust_score DOUBLE PRECISION NOT NULL CHECK (trust_score >= 0 AND trust_score <= 100),
    total_reports INTEGER NOT NULL DEFAULT 0,
    accurate_reports INTEGER NOT NULL DEFAULT 0,
    disputed_reports INTEGER NOT NULL DEFAULT 0,
    helpful_interactions INTEGER NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    last_active BIGINT NOT NULL
);

-- Trust history (append-only)
CREATE TABLE IF NOT EXISTS trust_score_history (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES app_user(id),
    seq BIGINT NOT NULL,
    previous_score DOUBLE PRECISION NOT NULL,
    new_score DOUBLE PRECISION NOT NULL CHECK (new_score >= 0 AND new_score <= 100),
    change DOUBLE PRECISION NOT NULL,
    reason TEXT NOT NULL,
    related_report_id TEXT,
    created_at BIGINT NOT NULL,
    UNIQUE (user_id, seq)
);

-- One settlement entry per (user, reason, report)
CREATE UNIQUE INDEX IF NOT EXISTS idx_trust_history_once ON trust_score_history(user_id, reason, related_report_id)
    WHERE related_report_id IS NOT NULL;

-- Status reports (never deleted)
CREATE TABLE IF NOT EXISTS status_report (
    id TEXT PRIMARY KEY,
    station_id TEXT NOT NULL,
    reporter_id TEXT NOT NULL,
    report_type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'CONFIRMED', 'DISPUTED', 'EXPIRED')),
    station_status TEXT NOT NULL DEFAULT '',
    available_fuels TEXT NOT NULL DEFAULT 'null',
    queue_length INTEGER,
    estimated_wait_minutes INTEGER,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    accuracy DOUBLE PRECISION,
    photo_urls TEXT NOT NULL DEFAULT 'null',
    reported_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL,
    confirmations INTEGER NOT NULL DEFAULT 0,
    disputes INTEGER NOT NULL DEFAULT 0,
    weighted_confirmations DOUBLE PRECISION NOT NULL DEFAULT 0,
    weighted_disputes DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence_score DOUBLE PRECISION NOT NULL CHECK (confidence_score >= 0 AND confidence_score <= 100),
    reporter_trust_score DOUBLE PRECISION NOT NULL,
    resolved_status TEXT NOT NULL DEFAULT '',
    resolved_at BIGINT,
    resolution_scale DOUBLE PRECISION NOT NULL DEFAULT 0,
    settled_at BIGINT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    version BIGINT NOT NULL DEFAULT 0,
    CHECK (expires_at > reported_at)
);

CREATE INDEX IF NOT EXISTS idx_report_station ON status_report(station_id, reported_at);
CREATE INDEX IF NOT EXISTS idx_report_reporter ON status_report(reporter_id, station_id, reported_at);
CREATE INDEX IF NOT EXISTS idx_report_expiry ON status_report(status, expires_at);

-- Interactions (one live row per report and user)
CREATE TABLE IF NOT EXISTS report_interaction (
    id TEXT PRIMARY KEY,
    report_id TEXT NOT NULL REFERENCES status_report(id),
    user_id TEXT NOT NULL,
    interaction_type TEXT NOT NULL CHECK (interaction_type IN ('CONFIRM', 'DISPUTE', 'FLAG')),
    user_trust_score DOUBLE PRECISION NOT NULL,
    weight DOUBLE PRECISION NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    UNIQUE (report_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_interaction_report ON report_interaction(report_id)
`
