// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/fuelwatch/consensus"
	"github.com/danielhkuo/fuelwatch/events"
	"github.com/danielhkuo/fuelwatch/ingest"
	"github.com/danielhkuo/fuelwatch/interaction"
	"github.com/danielhkuo/fuelwatch/keylock"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
	"github.com/danielhkuo/fuelwatch/sweeper"
	"github.com/danielhkuo/fuelwatch/trust"
)

// Deps are the adapters the engine runs on. Only Store is required.
type Deps struct {
	Store     store.Store
	Limiter   ingest.RateLimiter // defaults to counting reports in Store
	Snapshots SnapshotCache      // defaults to MemorySnapshots
	Publisher events.Publisher   // defaults to LoggingPublisher
	Now       func() time.Time
}

type Engine struct {
	settings   Settings
	store      store.Store
	ledger     *trust.Ledger
	validator  *ingest.Validator
	aggregator *consensus.Aggregator
	processor  *interaction.Processor
	sweeper    *sweeper.Sweeper
	scheduler  *Scheduler
	snapshots  SnapshotCache
	publisher  events.Publisher
	refreshing *keylock.Striped
	now        func() time.Time
}

func New(settings Settings, deps Deps) *Engine {
	clock := deps.Now
	if clock == nil {
		clock = time.Now
	}
	// Stores keep microseconds; truncating here keeps values round-trippable
	now := func() time.Time { return clock().UTC().Truncate(time.Microsecond) }

	snapshots := deps.Snapshots
	if snapshots == nil {
		snapshots = NewMemorySnapshots()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewLoggingPublisher(nil)
	}

	stations := keylock.New(0)
	e := &Engine{
		settings:   settings,
		store:      deps.Store,
		snapshots:  snapshots,
		publisher:  publisher,
		refreshing: keylock.New(0),
		now:        now,
	}
	e.ledger = trust.NewLedger(deps.Store, settings.Trust, now)
	e.validator = ingest.NewValidator(deps.Store, e.ledger, deps.Limiter, stations, settings.Ingest, now)
	e.aggregator = consensus.New(settings.Consensus)
	e.processor = interaction.NewProcessor(deps.Store, e.ledger, stations, publisher, settings.Interaction, now)
	e.scheduler = NewScheduler(settings.Engine.RecomputeDebounce, e.refresh)
	e.sweeper = sweeper.New(deps.Store, e.processor, e.aggregator, stations, e.scheduler, now)
	return e
}

func (e *Engine) Settings() Settings {
	return e.settings
}

func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// SubmitReport validates and stores a report, then schedules a recompute of
// its station.
func (e *Engine) SubmitReport(ctx context.Context, userID string, req models.CreateReportRequest) (models.Report, error) {
	r, err := e.validator.Submit(ctx, userID, req)
	if err != nil {
		return models.Report{}, classify(err)
	}
	e.scheduler.Request(r.StationID)
	return r, nil
}

// RecordInteraction applies a confirm, dispute or flag to a report
func (e *Engine) RecordInteraction(ctx context.Context, reportID, userID string, typ models.InteractionType) (models.InteractResult, error) {
	if reportID == "" {
		return models.InteractResult{}, models.Invalid("report_id", "is required")
	}
	r, in, err := e.processor.Record(ctx, reportID, userID, typ)
	if err != nil {
		return models.InteractResult{}, classify(err)
	}
	if typ != models.InteractionFlag {
		e.scheduler.Request(r.StationID)
	}
	return models.InteractResult{
		Report:      r,
		Interaction: in,
		Message:     interactionMessage(r, typ),
	}, nil
}

func interactionMessage(r models.Report, typ models.InteractionType) string {
	switch {
	case typ == models.InteractionFlag:
		return "Report flagged for review"
	case r.Status == models.ReportConfirmed:
		return "Interaction recorded; report confirmed"
	case r.Status == models.ReportDisputed:
		return "Interaction recorded; report disputed"
	default:
		return "Interaction recorded"
	}
}

// GetCurrentStatus computes the station's status from the store. Reports
// past their expiry are excluded whether or not the sweeper has run.
func (e *Engine) GetCurrentStatus(ctx context.Context, stationID string) (models.StationCurrentStatus, error) {
	if stationID == "" {
		return models.StationCurrentStatus{}, models.Invalid("station_id", "is required")
	}
	status, err := e.recompute(ctx, stationID)
	if err != nil {
		return models.StationCurrentStatus{}, classify(err)
	}
	return status, nil
}

// CachedStatus returns the last computed status without recomputing.
// The bool is false when the station has never been computed.
func (e *Engine) CachedStatus(ctx context.Context, stationID string) (models.StationCurrentStatus, bool, error) {
	status, ok, err := e.snapshots.Load(ctx, stationID)
	if err != nil {
		return models.StationCurrentStatus{}, false, classify(err)
	}
	return status, ok, nil
}

func (e *Engine) refresh(ctx context.Context, stationID string) error {
	_, err := e.recompute(ctx, stationID)
	return err
}

// recompute evaluates the station, stores the snapshot and publishes a
// change event when the winning status moved. Evaluation is serialized per
// station so the previous-snapshot comparison sees a consistent value; the
// event goes out after the station is released.
func (e *Engine) recompute(ctx context.Context, stationID string) (models.StationCurrentStatus, error) {
	status, change, err := e.evaluate(ctx, stationID)
	if err != nil {
		return models.StationCurrentStatus{}, err
	}
	if change != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), events.PublishTimeout)
		defer cancel()
		if err := events.PublishJSON(pubCtx, e.publisher, events.EventStationStatusChanged, stationID, change); err != nil {
			slog.Error("failed to publish status change", "error", err, "station_id", stationID)
		}
	}
	return status, nil
}

// evaluate computes and saves the snapshot under the station's refresh lock.
// The returned event is nil when the status did not move.
func (e *Engine) evaluate(ctx context.Context, stationID string) (models.StationCurrentStatus, *events.StationStatusChanged, error) {
	unlock := e.refreshing.Lock(stationID)
	defer unlock()

	now := e.now()
	reports, err := e.store.ListStationReports(ctx, stationID, now.Add(-e.settings.Consensus.Lookback))
	if err != nil {
		return models.StationCurrentStatus{}, nil, fmt.Errorf("list station reports: %w", err)
	}
	status := e.aggregator.Compute(stationID, reports, now)

	prev, had, err := e.snapshots.Load(ctx, stationID)
	if err != nil {
		slog.Warn("failed to load status snapshot", "error", err, "station_id", stationID)
	}
	if err := e.snapshots.Save(ctx, status); err != nil {
		slog.Warn("failed to save status snapshot", "error", err, "station_id", stationID)
		return status, nil, nil
	}

	if (had && prev.Status != status.Status) || (!had && status.Status != models.StationUnknown) {
		previous := models.StationUnknown
		if had {
			previous = prev.Status
		}
		return status, &events.StationStatusChanged{
			StationID:       stationID,
			PreviousStatus:  previous,
			Status:          status.Status,
			ConfidenceScore: status.ConfidenceScore,
			ReportCount:     status.ReportCount,
			ComputedAt:      status.ComputedAt,
		}, nil
	}
	return status, nil, nil
}

// GetTrustScore returns the user's score; unknown users have the baseline
func (e *Engine) GetTrustScore(ctx context.Context, userID string) (float64, error) {
	if userID == "" {
		return 0, models.Invalid("user_id", "is required")
	}
	score, err := e.ledger.CurrentScore(ctx, userID)
	if err != nil {
		return 0, classify(err)
	}
	return score, nil
}

func (e *Engine) TrustHistory(ctx context.Context, userID string) ([]models.TrustScoreHistory, error) {
	if userID == "" {
		return nil, models.Invalid("user_id", "is required")
	}
	history, err := e.ledger.History(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	if history == nil {
		history = []models.TrustScoreHistory{}
	}
	return history, nil
}

// GetUserStats summarizes a user's activity. The accuracy rate is the
// percentage of resolved reports that were confirmed.
func (e *Engine) GetUserStats(ctx context.Context, userID string) (models.UserStats, error) {
	if userID == "" {
		return models.UserStats{}, models.Invalid("user_id", "is required")
	}
	u, err := e.store.GetUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		u = models.User{ID: userID, TrustScore: e.settings.Trust.Baseline}
	} else if err != nil {
		return models.UserStats{}, classify(err)
	}
	history, err := e.ledger.History(ctx, userID)
	if err != nil {
		return models.UserStats{}, classify(err)
	}

	highest, lowest := u.TrustScore, u.TrustScore
	for _, h := range history {
		highest = math.Max(highest, math.Max(h.PreviousScore, h.NewScore))
		lowest = math.Min(lowest, math.Min(h.PreviousScore, h.NewScore))
	}

	stats := models.UserStats{
		UserID:              userID,
		TotalReports:        u.TotalReports,
		AccurateReports:     u.AccurateReports,
		DisputedReports:     u.DisputedReports,
		HelpfulInteractions: u.HelpfulInteractions,
		CurrentTrustScore:   u.TrustScore,
		HighestTrustScore:   highest,
		LowestTrustScore:    lowest,
	}
	if resolved := u.AccurateReports + u.DisputedReports; resolved > 0 {
		stats.AccuracyRate = math.Round(10000*float64(u.AccurateReports)/float64(resolved)) / 100
	}
	return stats, nil
}

func (e *Engine) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	if reportID == "" {
		return models.Report{}, models.Invalid("report_id", "is required")
	}
	r, err := e.store.GetReport(ctx, reportID)
	if err != nil {
		return models.Report{}, classify(err)
	}
	return r, nil
}

// ListReports pages through reports, newest first
func (e *Engine) ListReports(ctx context.Context, q models.ReportQuery) (models.ReportList, error) {
	if q.Status != "" && !q.Status.Valid() {
		return models.ReportList{}, models.Invalid("status", "unknown report status")
	}
	if q.ReportType != "" && !q.ReportType.Valid() {
		return models.ReportList{}, models.Invalid("report_type", "unknown report type")
	}
	if q.Limit < 0 || q.Limit > store.MaxListLimit {
		return models.ReportList{}, models.Invalid("limit", fmt.Sprintf("must be between 1 and %d", store.MaxListLimit))
	}
	if q.Offset < 0 {
		return models.ReportList{}, models.Invalid("offset", "must not be negative")
	}
	q = store.NormalizeQuery(q)

	reports, total, err := e.store.ListReports(ctx, q)
	if err != nil {
		return models.ReportList{}, classify(err)
	}
	return models.ReportList{Reports: reports, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// Sweep runs one maintenance pass immediately
func (e *Engine) Sweep(ctx context.Context) (sweeper.Result, error) {
	res, err := e.sweeper.Sweep(ctx)
	if err != nil {
		return sweeper.Result{}, classify(err)
	}
	return res, nil
}

// Ping checks the store when it supports health checks
func (e *Engine) Ping(ctx context.Context) error {
	if p, ok := e.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Run drives the sweeper and the safety-net recompute until ctx is
// cancelled, then drains pending recomputes.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.sweeper.Run(gctx, e.settings.Engine.SweepInterval)
	})
	g.Go(func() error {
		return e.scheduler.Run(gctx, e.settings.Engine.SafetyNetInterval, e.activeStations)
	})

	err := g.Wait()
	e.scheduler.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) activeStations(ctx context.Context) ([]string, error) {
	return e.store.ListActiveStations(ctx, e.now().Add(-e.settings.Consensus.Lookback))
}

var sentinels = []error{
	models.ErrValidation,
	models.ErrRateLimited,
	models.ErrNotFound,
	models.ErrConflict,
	models.ErrInternal,
}

// classify passes taxonomy errors through and turns anything else into
// ErrInternal, logging the cause.
func classify(err error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}
	slog.Error("internal error", "error", err)
	return fmt.Errorf("%w: %v", models.ErrInternal, err)
}
