// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/danielhkuo/fuelwatch/auth"
	"github.com/danielhkuo/fuelwatch/consensus"
	"github.com/danielhkuo/fuelwatch/events"
	"github.com/danielhkuo/fuelwatch/keylock"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
	"github.com/danielhkuo/fuelwatch/trust"
)

const maxAttempts = 3

type Settings struct {
	ConfirmThreshold          float64       `yaml:"confirm_threshold"`
	DisputeThreshold          float64       `yaml:"dispute_threshold"`
	MinWeight                 float64       `yaml:"min_weight"`
	DisagreementGrace         time.Duration `yaml:"disagreement_grace"`
	DisagreementMinConfidence float64       `yaml:"disagreement_min_confidence"`
}

func DefaultSettings() Settings {
	return Settings{
		ConfirmThreshold:          1.5,
		DisputeThreshold:          1.5,
		MinWeight:                 0.05,
		DisagreementGrace:         20 * time.Minute,
		DisagreementMinConfidence: 60,
	}
}

// Processor applies interactions to reports and drives their transitions
type Processor struct {
	store     store.Store
	ledger    *trust.Ledger
	stations  *keylock.Striped
	publisher events.Publisher
	settings  Settings
	now       func() time.Time
}

func NewProcessor(s store.Store, ledger *trust.Ledger, stations *keylock.Striped, publisher events.Publisher, settings Settings, now func() time.Time) *Processor {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.NewLoggingPublisher(nil)
	}
	return &Processor{
		store:     s,
		ledger:    ledger,
		stations:  stations,
		publisher: publisher,
		settings:  settings,
		now:       now,
	}
}

func (p *Processor) Settings() Settings {
	return p.settings
}

// Weight maps an interactor's trust score to a vote weight in [minWeight, 1]
func (p *Processor) Weight(trustScore float64) float64 {
	return math.Max(p.settings.MinWeight, math.Min(1, trustScore/100))
}

// Record applies userID's interaction to the report. A user has at most one
// live interaction per report: a new one replaces the previous one's effect.
func (p *Processor) Record(ctx context.Context, reportID, userID string, typ models.InteractionType) (models.Report, models.ReportInteraction, error) {
	if userID == "" {
		return models.Report{}, models.ReportInteraction{}, models.Invalid("user_id", "is required")
	}
	if !typ.Valid() {
		return models.Report{}, models.ReportInteraction{}, models.Invalid("interaction_type", "must be CONFIRM, DISPUTE or FLAG")
	}

	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return models.Report{}, models.ReportInteraction{}, err
	}

	report, in, err := p.record(ctx, r.StationID, reportID, userID, typ)
	if err != nil {
		return models.Report{}, models.ReportInteraction{}, err
	}
	// Published after the station lock is released
	if typ == models.InteractionFlag {
		p.flag(ctx, report, userID)
	}
	return report, in, nil
}

func (p *Processor) record(ctx context.Context, stationID, reportID, userID string, typ models.InteractionType) (models.Report, models.ReportInteraction, error) {
	unlock := p.stations.Lock(stationID)
	defer unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		report, in, transitioned, err := p.apply(ctx, reportID, userID, typ)
		if errors.Is(err, models.ErrConflict) {
			slog.Warn("interaction conflict, retrying", "report_id", reportID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return models.Report{}, models.ReportInteraction{}, err
		}

		if transitioned {
			slog.Info("report resolved",
				"report_id", report.ID,
				"status", report.Status,
				"weighted_confirmations", report.WeightedConfirmations,
				"weighted_disputes", report.WeightedDisputes,
			)
			if err := p.settle(ctx, &report); err != nil {
				// The transition is stored; the sweeper reconciles settlement
				slog.Error("settlement failed", "error", err, "report_id", report.ID)
			}
		}
		return report, in, nil
	}
	return models.Report{}, models.ReportInteraction{}, fmt.Errorf("report %s: %w", reportID, models.ErrConflict)
}

func (p *Processor) apply(ctx context.Context, reportID, userID string, typ models.InteractionType) (models.Report, models.ReportInteraction, bool, error) {
	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return models.Report{}, models.ReportInteraction{}, false, err
	}
	if r.ReporterID == userID {
		return models.Report{}, models.ReportInteraction{}, false, models.Invalid("interaction", "cannot interact with your own report")
	}

	now := p.now()
	if typ != models.InteractionFlag && (r.Status == models.ReportExpired || r.Expired(now)) {
		return models.Report{}, models.ReportInteraction{}, false, models.Invalid("report", "has expired")
	}

	prev, err := p.store.GetInteraction(ctx, reportID, userID)
	hasPrev := err == nil
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.Report{}, models.ReportInteraction{}, false, err
	}
	if hasPrev && prev.InteractionType == typ {
		return r, prev, false, nil
	}

	score, err := p.ledger.CurrentScore(ctx, userID)
	if err != nil {
		return models.Report{}, models.ReportInteraction{}, false, err
	}
	weight := p.Weight(score)

	if hasPrev {
		retract(&r, prev)
	}
	in := models.ReportInteraction{
		ID:              auth.NewID(),
		ReportID:        reportID,
		UserID:          userID,
		InteractionType: typ,
		UserTrustScore:  score,
		Weight:          weight,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if hasPrev {
		in.ID = prev.ID
		in.CreatedAt = prev.CreatedAt
	}
	contribute(&r, in)
	r.ConfidenceScore = Confidence(r)
	r.UpdatedAt = now

	transitioned := p.transition(&r, now)

	if err := p.store.SaveInteraction(ctx, &r, in); err != nil {
		return models.Report{}, models.ReportInteraction{}, false, err
	}
	return r, in, transitioned, nil
}

func retract(r *models.Report, in models.ReportInteraction) {
	switch in.InteractionType {
	case models.InteractionConfirm:
		r.Confirmations = max(0, r.Confirmations-1)
		r.WeightedConfirmations = tidy(r.WeightedConfirmations - in.Weight)
	case models.InteractionDispute:
		r.Disputes = max(0, r.Disputes-1)
		r.WeightedDisputes = tidy(r.WeightedDisputes - in.Weight)
	}
}

func contribute(r *models.Report, in models.ReportInteraction) {
	switch in.InteractionType {
	case models.InteractionConfirm:
		r.Confirmations++
		r.WeightedConfirmations = tidy(r.WeightedConfirmations + in.Weight)
	case models.InteractionDispute:
		r.Disputes++
		r.WeightedDisputes = tidy(r.WeightedDisputes + in.Weight)
	}
}

// tidy drops float residue from add/subtract cycles and never goes negative
func tidy(v float64) float64 {
	return math.Max(0, math.Round(v*1e9)/1e9)
}

// Confidence is the report's own confidence from its reporter snapshot and
// accrued interaction weight, in [0,100].
func Confidence(r models.Report) float64 {
	wc, wd := r.WeightedConfirmations, r.WeightedDisputes
	c := 100 * (r.ReporterTrustScore/100 + wc) / (1 + wc + wd)
	return math.Round(math.Max(0, math.Min(100, c))*100) / 100
}

// transition moves a PENDING report to CONFIRMED or DISPUTED once its
// weighted votes cross a threshold. Only PENDING reports move.
func (p *Processor) transition(r *models.Report, now time.Time) bool {
	if r.Status != models.ReportPending {
		return false
	}
	switch {
	case r.WeightedConfirmations >= p.settings.ConfirmThreshold:
		resolve(r, models.ReportConfirmed, r.ConfidenceScore/100, now)
	case r.WeightedDisputes >= p.settings.DisputeThreshold:
		resolve(r, models.ReportDisputed, r.WeightedDisputes/(r.WeightedConfirmations+r.WeightedDisputes), now)
	default:
		return false
	}
	return true
}

func resolve(r *models.Report, status models.ReportStatus, scale float64, now time.Time) {
	r.Status = status
	r.ResolvedStatus = status
	r.ResolvedAt = &now
	r.ResolutionScale = scale
	r.UpdatedAt = now
}

func (p *Processor) flag(ctx context.Context, r models.Report, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), events.PublishTimeout)
	defer cancel()

	err := events.PublishJSON(ctx, p.publisher, events.EventReportFlagged, r.ID, events.ReportFlagged{
		ReportID:   r.ID,
		StationID:  r.StationID,
		ReporterID: r.ReporterID,
		FlaggedBy:  userID,
		FlaggedAt:  p.now(),
	})
	if err != nil {
		slog.Error("failed to publish flag", "error", err, "report_id", r.ID)
	}
}

// DisputeStale disputes a PENDING report older than the grace period whose
// value still contradicts a confident consensus. Returns whether it moved.
func (p *Processor) DisputeStale(ctx context.Context, reportID string, res consensus.Result) (bool, error) {
	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return false, err
	}

	unlock := p.stations.Lock(r.StationID)
	defer unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		r, err := p.store.GetReport(ctx, reportID)
		if err != nil {
			return false, err
		}
		now := p.now()
		if r.Status != models.ReportPending || r.Expired(now) || now.Sub(r.ReportedAt) < p.settings.DisagreementGrace {
			return false, nil
		}
		disagrees, confidence := res.Disagrees(r)
		if !disagrees || confidence < p.settings.DisagreementMinConfidence {
			return false, nil
		}

		resolve(&r, models.ReportDisputed, confidence/100, now)
		if err := p.store.UpdateReport(ctx, &r); err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			return false, err
		}

		slog.Info("report disputed by consensus", "report_id", r.ID, "station_id", r.StationID, "confidence", confidence)
		if err := p.settle(ctx, &r); err != nil {
			slog.Error("settlement failed", "error", err, "report_id", r.ID)
		}
		return true, nil
	}
	return false, fmt.Errorf("report %s: %w", reportID, models.ErrConflict)
}

// Reconcile finishes settlement for a resolved report whose earlier
// settlement did not complete.
func (p *Processor) Reconcile(ctx context.Context, reportID string) error {
	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}

	unlock := p.stations.Lock(r.StationID)
	defer unlock()

	r, err = p.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	return p.settle(ctx, &r)
}
