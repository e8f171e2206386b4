// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the fuelwatch API server.

fuelwatch collects crowdsourced reports about fuel stations (open, closed,
queue length, fuels on hand), weighs them by each reporter's trust score
and serves a consensus status per station. Other users confirm or dispute
reports, and the outcome feeds back into the reporter's trust.

# Starting the Server

With no configuration the server runs on an in-memory store:

	go run .

SQLite or PostgreSQL:

	go run . -t sqlite -d ./fuelwatch.db
	DATABASE_TYPE=postgres DATABASE_URL=postgres://... go run .

A .env file in the working directory is loaded first.

# Configuration

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): memory, sqlite or postgres (default: memory)
  - DATABASE_URL (-d): Connection string, required unless memory
  - REDIS_URL (-redis): Shared rate limiting and status snapshots
  - KAFKA_BROKERS (-kafka): Comma-separated brokers for domain events
  - KAFKA_TOPIC_MODERATION, KAFKA_TOPIC_STATUS: Topic overrides
  - JWT_SECRET (-jwt-secret): Require HS256 bearer tokens instead of X-User-ID
  - CORS_ORIGINS (-cors): Comma-separated allowed origins
  - TUNING_FILE (-tuning): YAML overrides for trust, ingest, consensus,
    interaction and engine settings
  - LOG_LEVEL, LOG_FORMAT: slog level and json or text output

# Architecture

  - engine: Composes the packages below behind one API
  - ingest: Report validation and rate limiting
  - consensus: Time-decayed, trust-weighted station status
  - interaction: Confirm, dispute and flag; report settlement
  - trust: Trust score ledger and policy
  - sweeper: Expiry, stale disagreement and settlement repair
  - store: Memory and SQL persistence
  - cache: Redis rate limiter and snapshot cache
  - events: Kafka and log publishers
  - handlers, router, middleware: HTTP surface
  - cliparse, logging, db, auth, keylock, models: Supporting code

See package documentation for each component.
*/
package main
