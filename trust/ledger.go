// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/danielhkuo/fuelwatch/auth"
	"github.com/danielhkuo/fuelwatch/keylock"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
)

const maxAttempts = 3

// Ledger is the only writer of user trust scores
type Ledger struct {
	store  store.UserStore
	policy Policy
	locks  *keylock.Striped
	now    func() time.Time
}

func NewLedger(s store.UserStore, policy Policy, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:  s,
		policy: policy,
		locks:  keylock.New(keylock.DefaultStripes),
		now:    now,
	}
}

func (l *Ledger) Policy() Policy {
	return l.policy
}

// CurrentScore returns the user's score, or the baseline for unknown users
func (l *Ledger) CurrentScore(ctx context.Context, userID string) (float64, error) {
	u, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return l.policy.Baseline, nil
	}
	if err != nil {
		return 0, err
	}
	return u.TrustScore, nil
}

func (l *Ledger) History(ctx context.Context, userID string) ([]models.TrustScoreHistory, error) {
	return l.store.ListTrustHistory(ctx, userID)
}

// Adjust applies delta to the user's score, clamped to [0,100], and appends
// a history entry. Adjustments for one user are serialized. A store holds at
// most one entry per (user, reason, related report).
func (l *Ledger) Adjust(ctx context.Context, userID string, delta float64, reason, relatedReportID string) (float64, error) {
	score, _, err := l.adjust(ctx, userID, delta, reason, relatedReportID, false)
	return score, err
}

// AdjustOnce is Adjust keyed by (user, reason, report): if an entry for the
// triple already exists nothing is written and applied is false.
func (l *Ledger) AdjustOnce(ctx context.Context, userID string, delta float64, reason, relatedReportID string) (score float64, applied bool, err error) {
	return l.adjust(ctx, userID, delta, reason, relatedReportID, true)
}

func (l *Ledger) adjust(ctx context.Context, userID string, delta float64, reason, reportID string, once bool) (float64, bool, error) {
	if userID == "" {
		return 0, false, models.Invalid("user_id", "is required")
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, false, models.Invalid("delta", "must be a finite number")
	}
	if reason == "" {
		return 0, false, models.Invalid("reason", "is required")
	}

	unlock := l.locks.Lock(userID)
	defer unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Another writer on the same store may have settled the triple
		// between attempts; the store also rejects a duplicate triple.
		if once && reportID != "" {
			done, err := l.store.HasTrustEntry(ctx, userID, reason, reportID)
			if err != nil {
				return 0, false, err
			}
			if done {
				score, err := l.CurrentScore(ctx, userID)
				return score, false, err
			}
		}

		now := l.now()
		u, err := l.store.EnsureUser(ctx, userID, l.policy.Baseline, now)
		if err != nil {
			return 0, false, err
		}

		next := Clamp(u.TrustScore + delta)
		entry := models.TrustScoreHistory{
			ID:              auth.NewID(),
			UserID:          userID,
			PreviousScore:   u.TrustScore,
			NewScore:        next,
			Change:          round2(next - u.TrustScore),
			Reason:          reason,
			RelatedReportID: reportID,
			CreatedAt:       now,
		}

		err = l.store.ApplyTrustChange(ctx, u, entry)
		if errors.Is(err, models.ErrConflict) {
			slog.Warn("trust adjustment conflict, retrying", "user_id", userID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return 0, false, err
		}
		return next, true, nil
	}
	return 0, false, fmt.Errorf("adjust trust for %s: %w", userID, models.ErrConflict)
}
