// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Usage

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

CreateSchema is idempotent and runs the same statements on PostgreSQL
(lib/pq) and SQLite (modernc.org/sqlite).

# Tables

  - app_user: trust score, activity counters, optimistic version
  - trust_score_history: append-only trust changes, ordered by seq
  - status_report: reports, never deleted (audit trail)
  - report_interaction: one row per (report_id, user_id), overwritten in place

# Conventions

Timestamps are BIGINT unix microseconds so range filters compare
identically on both engines. List-valued columns (available_fuels,
photo_urls) hold JSON text.
*/
package db
