// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/fuelwatch/models"
)

// settle applies the trust feedback of a resolved report: the reporter's
// reward or penalty, then a small reward for every interactor whose live
// vote matches the outcome. Each ledger entry is keyed by (user, reason,
// report) so a repeated settle writes nothing twice. SettledAt is set last.
func (p *Processor) settle(ctx context.Context, r *models.Report) error {
	if r.ResolvedStatus == "" || r.SettledAt != nil {
		return nil
	}
	policy := p.ledger.Policy()

	var (
		delta    float64
		reason   string
		counters models.UserCounters
		matching models.InteractionType
	)
	switch r.ResolvedStatus {
	case models.ReportConfirmed:
		delta = policy.ReportConfirmed(r.ResolutionScale)
		reason = models.ReasonAccurateReport
		counters.AccurateReports = 1
		matching = models.InteractionConfirm
	case models.ReportDisputed:
		delta = policy.ReportDisputed(r.ResolutionScale)
		reason = models.ReasonDisputedReport
		counters.DisputedReports = 1
		matching = models.InteractionDispute
	default:
		return fmt.Errorf("report %s resolved as %s", r.ID, r.ResolvedStatus)
	}

	score, applied, err := p.ledger.AdjustOnce(ctx, r.ReporterID, delta, reason, r.ID)
	if err != nil {
		return fmt.Errorf("adjust reporter trust: %w", err)
	}
	if applied {
		slog.Info("reporter trust adjusted", "user_id", r.ReporterID, "report_id", r.ID, "change", delta, "trust", score)
		if err := p.store.BumpUserCounters(ctx, r.ReporterID, counters, p.now()); err != nil {
			slog.Error("failed to bump reporter counters", "error", err, "user_id", r.ReporterID)
		}
	}

	interactions, err := p.store.ListInteractions(ctx, r.ID)
	if err != nil {
		return err
	}
	for _, in := range interactions {
		if in.InteractionType != matching || in.UserID == r.ReporterID {
			continue
		}
		_, applied, err := p.ledger.AdjustOnce(ctx, in.UserID, policy.InteractionMatched(), models.ReasonHelpfulInteraction, r.ID)
		if err != nil {
			return fmt.Errorf("reward interactor %s: %w", in.UserID, err)
		}
		if applied {
			if err := p.store.BumpUserCounters(ctx, in.UserID, models.UserCounters{HelpfulInteractions: 1}, p.now()); err != nil {
				slog.Error("failed to bump interactor counters", "error", err, "user_id", in.UserID)
			}
		}
	}

	return p.markSettled(ctx, r)
}

func (p *Processor) markSettled(ctx context.Context, r *models.Report) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		now := p.now()
		r.SettledAt = &now
		err := p.store.UpdateReport(ctx, r)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrConflict) {
			r.SettledAt = nil
			return err
		}
		fresh, err := p.store.GetReport(ctx, r.ID)
		if err != nil {
			return err
		}
		*r = fresh
		if r.SettledAt != nil {
			return nil
		}
	}
	return fmt.Errorf("mark report %s settled: %w", r.ID, models.ErrConflict)
}
