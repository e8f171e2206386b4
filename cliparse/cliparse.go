// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/fuelwatch/engine"
)

const (
	DatabaseMemory   = "memory"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	RedisURL             string
	KafkaBrokers         []string
	KafkaTopicModeration string
	KafkaTopicStatus     string

	JWTSecret   string
	TuningFile  string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
}

// ParseFlags builds the Config. Flags override environment variables, which
// override defaults. A .env file in the working directory is loaded first
// and never overrides variables already set.
func ParseFlags(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	var brokers, origins string

	fs := flag.NewFlagSet("fuelwatch", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (memory, sqlite or postgres)")

	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for shared rate limits and status snapshots")
	fs.StringVar(&brokers, "kafka", "", "Comma-separated Kafka brokers")
	fs.StringVar(&origins, "cors", "", "Comma-separated allowed CORS origins")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "HS256 secret for bearer tokens (prefer env)")
	fs.StringVar(&cfg.TuningFile, "tuning", "", "YAML file with engine tunables")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}

	cfg.DatabaseType = firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), DatabaseMemory)
	switch cfg.DatabaseType {
	case DatabaseMemory, DatabaseSQLite, DatabasePostgres:
	default:
		return Config{}, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}
	cfg.DatabaseURL = firstNonEmpty(cfg.DatabaseURL, os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" && cfg.DatabaseType != DatabaseMemory {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	cfg.RedisURL = firstNonEmpty(cfg.RedisURL, os.Getenv("REDIS_URL"))
	cfg.KafkaBrokers = splitList(firstNonEmpty(brokers, os.Getenv("KAFKA_BROKERS")))
	cfg.KafkaTopicModeration = firstNonEmpty(os.Getenv("KAFKA_TOPIC_MODERATION"), "report.flagged")
	cfg.KafkaTopicStatus = firstNonEmpty(os.Getenv("KAFKA_TOPIC_STATUS"), "station.status_changed")

	cfg.JWTSecret = firstNonEmpty(cfg.JWTSecret, os.Getenv("JWT_SECRET"))
	cfg.TuningFile = firstNonEmpty(cfg.TuningFile, os.Getenv("TUNING_FILE"))
	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")
	cfg.LogFormat = firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")
	cfg.CORSOrigins = splitList(firstNonEmpty(origins, os.Getenv("CORS_ORIGINS")))

	return cfg, nil
}

// LoadTuning overlays the YAML file at path onto base. Keys absent from the
// file keep their base value; unknown keys are an error.
func LoadTuning(path string, base engine.Settings) (engine.Settings, error) {
	if path == "" {
		return base, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return engine.Settings{}, fmt.Errorf("open tuning file: %w", err)
	}
	defer f.Close()

	settings := base
	settings.Ingest.TTL = maps.Clone(base.Ingest.TTL)
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return engine.Settings{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return engine.Settings{}, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return settings, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
