// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package trust

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newLedger() (*Ledger, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return NewLedger(s, DefaultPolicy(), fixedNow), s
}

func TestCurrentScoreDefaultsToBaseline(t *testing.T) {
	l, _ := newLedger()
	score, err := l.CurrentScore(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("CurrentScore() error = %v", err)
	}
	if score != 50 {
		t.Errorf("Expected baseline 50, got %v", score)
	}
}

func TestAdjustAppendsHistory(t *testing.T) {
	l, s := newLedger()
	ctx := context.Background()

	score, err := l.Adjust(ctx, "u1", 2.5, models.ReasonAccurateReport, "r1")
	if err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}
	if score != 52.5 {
		t.Errorf("Expected 52.5, got %v", score)
	}

	score, _ = l.Adjust(ctx, "u1", -3, models.ReasonDisputedReport, "r2")
	if score != 49.5 {
		t.Errorf("Expected 49.5, got %v", score)
	}

	history, _ := l.History(ctx, "u1")
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].PreviousScore != 50 || history[0].NewScore != 52.5 || history[0].Change != 2.5 {
		t.Errorf("Unexpected first entry: %+v", history[0])
	}
	if history[1].PreviousScore != 52.5 || history[1].RelatedReportID != "r2" {
		t.Errorf("Unexpected second entry: %+v", history[1])
	}

	u, _ := s.GetUser(ctx, "u1")
	if u.TrustScore != history[len(history)-1].NewScore {
		t.Errorf("Score %v does not match latest history entry %v", u.TrustScore, history[1].NewScore)
	}
}

func TestAdjustClampsRandomSequences(t *testing.T) {
	l, s := newLedger()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		delta := (rng.Float64() - 0.5) * 60
		score, err := l.Adjust(ctx, "u1", delta, models.ReasonAccurateReport, "")
		if err != nil {
			t.Fatalf("Adjust() error = %v", err)
		}
		if score < MinScore || score > MaxScore {
			t.Fatalf("Score %v escaped [0,100] at step %d", score, i)
		}
	}

	history, _ := s.ListTrustHistory(ctx, "u1")
	for i, e := range history {
		if e.NewScore < MinScore || e.NewScore > MaxScore {
			t.Errorf("History entry %d out of range: %+v", i, e)
		}
		if i > 0 && e.PreviousScore != history[i-1].NewScore {
			t.Errorf("History chain broken at %d", i)
		}
	}
}

func TestAdjustClampRecordsActualChange(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	l.Adjust(ctx, "u1", 45, models.ReasonAccurateReport, "")
	score, _ := l.Adjust(ctx, "u1", 20, models.ReasonAccurateReport, "")
	if score != 100 {
		t.Errorf("Expected clamp at 100, got %v", score)
	}
	history, _ := l.History(ctx, "u1")
	if last := history[len(history)-1]; last.Change != 5 {
		t.Errorf("Expected recorded change 5, got %v", last.Change)
	}
}

func TestAdjustRejectsBadInput(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	if _, err := l.Adjust(ctx, "", 1, models.ReasonAccurateReport, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for empty user, got %v", err)
	}
	if _, err := l.Adjust(ctx, "u1", 1, "", ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for empty reason, got %v", err)
	}
}

func TestAdjustOnceIsIdempotent(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	score, applied, err := l.AdjustOnce(ctx, "u1", 2, models.ReasonAccurateReport, "r1")
	if err != nil || !applied || score != 52 {
		t.Fatalf("First AdjustOnce = %v, %v, %v", score, applied, err)
	}
	score, applied, err = l.AdjustOnce(ctx, "u1", 2, models.ReasonAccurateReport, "r1")
	if err != nil || applied || score != 52 {
		t.Errorf("Second AdjustOnce = %v, %v, %v; want 52, false, nil", score, applied, err)
	}

	history, _ := l.History(ctx, "u1")
	if len(history) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(history))
	}
}

// racingStore settles the same report through a second ledger just before
// the first write lands
type racingStore struct {
	*store.MemoryStore
	once sync.Once
	err  error
}

func (r *racingStore) ApplyTrustChange(ctx context.Context, user models.User, entry models.TrustScoreHistory) error {
	r.once.Do(func() {
		other := NewLedger(r.MemoryStore, DefaultPolicy(), fixedNow)
		_, _, r.err = other.AdjustOnce(ctx, entry.UserID, entry.Change, entry.Reason, entry.RelatedReportID)
	})
	return r.MemoryStore.ApplyTrustChange(ctx, user, entry)
}

func TestAdjustOnceAcrossLedgersSharingStore(t *testing.T) {
	s := &racingStore{MemoryStore: store.NewMemoryStore()}
	l := NewLedger(s, DefaultPolicy(), fixedNow)
	ctx := context.Background()

	score, applied, err := l.AdjustOnce(ctx, "u1", 2, models.ReasonAccurateReport, "r1")
	if err != nil {
		t.Fatalf("AdjustOnce() error = %v", err)
	}
	if s.err != nil {
		t.Fatalf("Competing AdjustOnce() error = %v", s.err)
	}
	if applied {
		t.Error("Expected the competing ledger to win the settlement")
	}
	if score != 52 {
		t.Errorf("Expected score 52, got %v", score)
	}

	history, _ := l.History(ctx, "u1")
	if len(history) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(history))
	}
}

// TestConcurrentAdjustments verifies no update is lost when many goroutines
// adjust the same user at once
func TestConcurrentAdjustments(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Adjust(ctx, "u1", 0.25, models.ReasonHelpfulInteraction, ""); err != nil {
				t.Errorf("Adjust() error = %v", err)
			}
		}()
	}
	// A second user adjusts in parallel
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Adjust(ctx, "u2", -1, models.ReasonDisputedReport, "")
		}()
	}
	wg.Wait()

	score, _ := l.CurrentScore(ctx, "u1")
	if score != 75 {
		t.Errorf("Expected 75 after 100 x 0.25, got %v", score)
	}
	history, _ := l.History(ctx, "u1")
	if len(history) != 100 {
		t.Errorf("Expected 100 history entries, got %d", len(history))
	}
	if other, _ := l.CurrentScore(ctx, "u2"); other != 30 {
		t.Errorf("Expected 30 for u2, got %v", other)
	}
}

func TestPolicyDeltas(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"confirmed full", p.ReportConfirmed(1), 2},
		{"confirmed scaled", p.ReportConfirmed(0.75), 1.5},
		{"confirmed over", p.ReportConfirmed(3), 2},
		{"disputed full", p.ReportDisputed(1), -3},
		{"disputed half", p.ReportDisputed(0.5), -1.5},
		{"disputed negative scale", p.ReportDisputed(-1), 0},
		{"interactor", p.InteractionMatched(), 0.5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
