// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"github.com/danielhkuo/fuelwatch/auth"
	"github.com/danielhkuo/fuelwatch/keylock"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
	"github.com/danielhkuo/fuelwatch/trust"
)

// Validator turns raw submissions into PENDING reports
type Validator struct {
	settings Settings
	store    store.Store
	ledger   *trust.Ledger
	limiter  RateLimiter
	stations *keylock.Striped
	now      func() time.Time
}

func NewValidator(s store.Store, ledger *trust.Ledger, limiter RateLimiter, stations *keylock.Striped, settings Settings, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	if limiter == nil {
		limiter = NewStoreRateLimiter(s, settings.RateLimit)
	}
	return &Validator{
		settings: settings,
		store:    s,
		ledger:   ledger,
		limiter:  limiter,
		stations: stations,
		now:      now,
	}
}

// Submit validates req and stores it as a new report by userID.
// Nothing is written unless every check passes.
func (v *Validator) Submit(ctx context.Context, userID string, req models.CreateReportRequest) (models.Report, error) {
	if userID == "" {
		return models.Report{}, models.Invalid("user_id", "is required")
	}
	req, err := v.Validate(req)
	if err != nil {
		return models.Report{}, err
	}

	unlock := v.stations.Lock(req.StationID)
	defer unlock()

	now := v.now()
	ok, err := v.limiter.Allow(ctx, userID, req.StationID, now)
	if err != nil {
		return models.Report{}, fmt.Errorf("rate limit check: %w", err)
	}
	if !ok {
		slog.Info("report rate limited", "user_id", userID, "station_id", req.StationID)
		return models.Report{}, fmt.Errorf("%d reports per %s for this station: %w",
			v.settings.RateLimit.MaxReports, v.settings.RateLimit.Window, models.ErrRateLimited)
	}
	written := false
	defer func() {
		if written {
			return
		}
		// Give the slot back when the report never landed
		if err := v.limiter.Release(context.WithoutCancel(ctx), userID, req.StationID, now); err != nil {
			slog.Error("failed to release rate limit slot", "error", err, "user_id", userID, "station_id", req.StationID)
		}
	}()

	snapshot, err := v.ledger.CurrentScore(ctx, userID)
	if err != nil {
		return models.Report{}, err
	}
	if _, err := v.store.EnsureUser(ctx, userID, v.ledger.Policy().Baseline, now); err != nil {
		return models.Report{}, err
	}

	report := models.Report{
		ID:                   auth.NewID(),
		StationID:            req.StationID,
		ReporterID:           userID,
		ReportType:           req.ReportType,
		Status:               models.ReportPending,
		StationStatus:        req.StationStatus,
		AvailableFuels:       req.AvailableFuels,
		QueueLength:          req.QueueLength,
		EstimatedWaitMinutes: req.EstimatedWaitMinutes,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		Accuracy:             req.Accuracy,
		PhotoURLs:            req.PhotoURLs,
		ReportedAt:           now,
		ExpiresAt:            now.Add(v.settings.TTLFor(req.ReportType)),
		ConfidenceScore:      snapshot,
		ReporterTrustScore:   snapshot,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := v.store.CreateReport(ctx, report); err != nil {
		return models.Report{}, err
	}
	written = true

	if err := v.store.BumpUserCounters(ctx, userID, models.UserCounters{TotalReports: 1}, now); err != nil {
		slog.Error("failed to bump report counter", "error", err, "user_id", userID)
	}

	slog.Info("report created",
		"report_id", report.ID,
		"station_id", report.StationID,
		"type", report.ReportType,
		"trust", snapshot,
	)
	return report, nil
}

// Validate checks req against the configured bounds and returns it normalized
func (v *Validator) Validate(req models.CreateReportRequest) (models.CreateReportRequest, error) {
	s := v.settings

	if req.StationID == "" {
		return req, models.Invalid("station_id", "is required")
	}
	if !auth.ValidUUID(req.StationID) {
		return req, models.Invalid("station_id", "must be a UUID")
	}
	if !req.ReportType.Valid() {
		return req, models.Invalid("report_type", "must be STATUS_UPDATE, FUEL_AVAILABILITY, QUEUE_LENGTH or PRICE_UPDATE")
	}

	if math.IsNaN(req.Latitude) || math.IsNaN(req.Longitude) || !s.Region.Contains(req.Latitude, req.Longitude) {
		return req, models.Invalid("location", "is outside the service region")
	}
	if req.Accuracy != nil && (math.IsNaN(*req.Accuracy) || *req.Accuracy < 0 || *req.Accuracy > s.MaxAccuracyMeters) {
		return req, models.Invalid("accuracy", fmt.Sprintf("must be between 0 and %g meters", s.MaxAccuracyMeters))
	}
	if req.QueueLength != nil && (*req.QueueLength < 0 || *req.QueueLength > s.MaxQueueLength) {
		return req, models.Invalid("queue_length", fmt.Sprintf("must be between 0 and %d", s.MaxQueueLength))
	}
	if req.EstimatedWaitMinutes != nil && (*req.EstimatedWaitMinutes < 0 || *req.EstimatedWaitMinutes > s.MaxWaitMinutes) {
		return req, models.Invalid("estimated_wait_minutes", fmt.Sprintf("must be between 0 and %d", s.MaxWaitMinutes))
	}

	if len(req.PhotoURLs) > s.MaxPhotos {
		return req, models.Invalid("photo_urls", fmt.Sprintf("at most %d photos allowed", s.MaxPhotos))
	}
	for _, raw := range req.PhotoURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return req, models.Invalid("photo_urls", "must be absolute http(s) URLs")
		}
	}

	if req.StationStatus != "" && (!req.StationStatus.Valid() || req.StationStatus == models.StationUnknown) {
		return req, models.Invalid("station_status", "must be OPEN, CLOSED, REFILLING, QUEUE or NO_FUEL")
	}
	for _, f := range req.AvailableFuels {
		if !f.Valid() {
			return req, models.Invalid("available_fuels", fmt.Sprintf("unknown fuel %q", f))
		}
	}
	if req.AvailableFuels != nil {
		req.AvailableFuels = models.NormalizeFuels(req.AvailableFuels)
	}

	switch req.ReportType {
	case models.ReportStatusUpdate:
		if req.StationStatus == "" {
			return req, models.Invalid("station_status", "is required for STATUS_UPDATE")
		}
	case models.ReportFuelAvailability:
		if req.AvailableFuels == nil {
			return req, models.Invalid("available_fuels", "is required for FUEL_AVAILABILITY")
		}
	case models.ReportQueueLength:
		if req.QueueLength == nil {
			return req, models.Invalid("queue_length", "is required for QUEUE_LENGTH")
		}
	}

	return req, nil
}
