// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"time"

	"github.com/danielhkuo/fuelwatch/models"
)

// UserStore owns user rows and the trust history.
type UserStore interface {
	// EnsureUser creates the user with initialScore if absent and returns the stored row.
	EnsureUser(ctx context.Context, userID string, initialScore float64, now time.Time) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	// ApplyTrustChange sets the user's score to entry.NewScore and appends entry,
	// provided the stored version still equals user.Version. Returns ErrConflict otherwise.
	ApplyTrustChange(ctx context.Context, user models.User, entry models.TrustScoreHistory) error
	HasTrustEntry(ctx context.Context, userID, reason, reportID string) (bool, error)
	ListTrustHistory(ctx context.Context, userID string) ([]models.TrustScoreHistory, error)
	BumpUserCounters(ctx context.Context, userID string, delta models.UserCounters, now time.Time) error
}

// ReportStore persists reports. Updates are guarded by Report.Version.
type ReportStore interface {
	CreateReport(ctx context.Context, r models.Report) error
	GetReport(ctx context.Context, id string) (models.Report, error)
	// UpdateReport writes the mutable fields of r if the stored version equals
	// r.Version, then increments r.Version. Returns ErrConflict otherwise.
	UpdateReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context, q models.ReportQuery) ([]models.Report, int, error)
	// ListStationReports returns every report of the station reported at or after since.
	ListStationReports(ctx context.Context, stationID string, since time.Time) ([]models.Report, error)
	ListDueForExpiry(ctx context.Context, now time.Time) ([]models.Report, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Report, error)
	// ListUnsettled returns resolved reports whose trust settlement has not completed.
	ListUnsettled(ctx context.Context) ([]models.Report, error)
	ListActiveStations(ctx context.Context, since time.Time) ([]string, error)
	CountReportsSince(ctx context.Context, userID, stationID string, since time.Time) (int, error)
}

type InteractionStore interface {
	GetInteraction(ctx context.Context, reportID, userID string) (models.ReportInteraction, error)
	ListInteractions(ctx context.Context, reportID string) ([]models.ReportInteraction, error)
	// SaveInteraction atomically updates the report (version checked like
	// UpdateReport) and upserts the interaction for (ReportID, UserID).
	SaveInteraction(ctx context.Context, r *models.Report, in models.ReportInteraction) error
}

// Store defines the persistence interface for the engine.
type Store interface {
	UserStore
	ReportStore
	InteractionStore
}

// Pinger is implemented by stores that support health checks (e.g., SQLStore).
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NormalizeQuery applies listing defaults and bounds
func NormalizeQuery(q models.ReportQuery) models.ReportQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
