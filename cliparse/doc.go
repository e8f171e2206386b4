// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

	cfg, err := cliparse.ParseFlags(os.Args[1:])
	settings, err := cliparse.LoadTuning(cfg.TuningFile, engine.DefaultSettings())

# CLI Flags and Environment Variables

	-p           PORT            Server port (default 3318)
	-d           DATABASE_URL    Database URL or sqlite path
	-t           DATABASE_TYPE   memory (default), sqlite or postgres
	--redis      REDIS_URL       Shared rate limits and status snapshots
	--kafka      KAFKA_BROKERS   Comma-separated brokers for events
	--jwt-secret JWT_SECRET      Enables bearer-token identity
	--tuning     TUNING_FILE     YAML engine tunables
	--cors       CORS_ORIGINS    Comma-separated allowed origins

Environment only:

	KAFKA_TOPIC_MODERATION  topic for report.flagged (default report.flagged)
	KAFKA_TOPIC_STATUS      topic for station.status_changed (default station.status_changed)
	LOG_LEVEL               debug, info, warn or error
	LOG_FORMAT              json (default) or text

CLI flags take precedence over environment variables. Values in a .env
file are loaded into the environment first without replacing variables
that are already set.

# Validation

A database URL is required unless the database type is memory. The tuning
file may set any subset of engine.Settings; unknown keys and out-of-range
values are rejected.
*/
package cliparse
