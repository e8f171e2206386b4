package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/fuelwatch/cache"
	"github.com/danielhkuo/fuelwatch/cliparse"
	"github.com/danielhkuo/fuelwatch/db"
	"github.com/danielhkuo/fuelwatch/engine"
	"github.com/danielhkuo/fuelwatch/events"
	"github.com/danielhkuo/fuelwatch/logging"
	"github.com/danielhkuo/fuelwatch/router"
	"github.com/danielhkuo/fuelwatch/store"
)

func main() {
	logging.Init("info", "json")

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	settings, err := cliparse.LoadTuning(cfg.TuningFile, engine.DefaultSettings())
	if err != nil {
		slog.Error("Error loading tuning", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, settings); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliparse.Config, settings engine.Settings) error {
	s, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := engine.Deps{Store: s}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Limiter = cache.NewRedisRateLimiter(client, settings.Ingest.RateLimit)
		deps.Snapshots = cache.NewRedisSnapshots(client, cache.DefaultSnapshotTTL)
		slog.Info("Redis enabled", "url", cfg.RedisURL)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			events.EventReportFlagged:        cfg.KafkaTopicModeration,
			events.EventStationStatusChanged: cfg.KafkaTopicStatus,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()
		deps.Publisher = publisher
		slog.Info("Kafka enabled", "brokers", cfg.KafkaBrokers)
	}

	eng := engine.New(settings, deps)

	server := http.Server{
		Handler:           router.NewRouter(eng, cfg),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	background := make(chan error, 1)
	go func() {
		background <- eng.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Listening", "port", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	var serveFailure error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			serveFailure = err
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	// Run flushes pending recomputes before returning
	cancel()
	if err := <-background; err != nil {
		slog.Error("Background work failed", "error", err)
	}
	slog.Info("Server closed")
	return serveFailure
}

// openStore connects the configured backend and creates its schema
func openStore(cfg cliparse.Config) (store.Store, func(), error) {
	if cfg.DatabaseType == cliparse.DatabaseMemory {
		slog.Info("Using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	driver, dialect := "postgres", store.DialectPostgres
	if cfg.DatabaseType == cliparse.DatabaseSQLite {
		driver, dialect = "sqlite", store.DialectSQLite
	}

	conn, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if dialect == store.DialectSQLite {
		conn.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	// Create schema (tables)
	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("schema creation failed: %w", err)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	return store.NewSQLStore(conn, dialect), func() { conn.Close() }, nil
}
