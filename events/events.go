// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/fuelwatch/models"
)

// Event types. Each maps to a Kafka topic in KafkaPublisher.
const (
	EventReportFlagged        = "report.flagged"
	EventStationStatusChanged = "station.status_changed"
)

// PublishTimeout bounds a single publish made on behalf of a request or
// recompute
const PublishTimeout = 2 * time.Second

// Publisher delivers an encoded event. partitionKey keeps events for one
// report or station in order.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// ReportFlagged is the moderation signal raised by a FLAG interaction
type ReportFlagged struct {
	ReportID   string    `json:"report_id"`
	StationID  string    `json:"station_id"`
	ReporterID string    `json:"reporter_id"`
	FlaggedBy  string    `json:"flagged_by"`
	FlaggedAt  time.Time `json:"flagged_at"`
}

type StationStatusChanged struct {
	StationID       string               `json:"station_id"`
	PreviousStatus  models.StationStatus `json:"previous_status"`
	Status          models.StationStatus `json:"status"`
	ConfidenceScore float64              `json:"confidence_score"`
	ReportCount     int                  `json:"report_count"`
	ComputedAt      time.Time            `json:"computed_at"`
}

// PublishJSON encodes v and publishes it
func PublishJSON(ctx context.Context, p Publisher, eventType, partitionKey string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return p.Publish(ctx, eventType, payload, partitionKey)
}

// LoggingPublisher writes events to the log. Used when no broker is configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "published event", "event_type", eventType, "key", partitionKey, "payload", string(payload))
	return nil
}
