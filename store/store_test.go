// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/fuelwatch/db"
	"github.com/danielhkuo/fuelwatch/models"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()

	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return NewSQLStore(conn, DialectSQLite)
}

// eachStore runs fn against every Store implementation
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func sampleReport(id, station, reporter string, at time.Time) models.Report {
	queue := 12
	return models.Report{
		ID:                 id,
		StationID:          station,
		ReporterID:         reporter,
		ReportType:         models.ReportStatusUpdate,
		Status:             models.ReportPending,
		StationStatus:      models.StationOpen,
		AvailableFuels:     []models.FuelType{models.FuelGasoil, models.FuelGasoline},
		QueueLength:        &queue,
		Latitude:           10.5,
		Longitude:          -66.9,
		PhotoURLs:          []string{"https://img.example/1.jpg"},
		ReportedAt:         at,
		ExpiresAt:          at.Add(2 * time.Hour),
		ConfidenceScore:    50,
		ReporterTrustScore: 50,
		CreatedAt:          at,
		UpdatedAt:          at,
	}
}

func TestReportRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := sampleReport("r1", "st1", "u1", base)
		if err := s.CreateReport(ctx, r); err != nil {
			t.Fatalf("CreateReport failed: %v", err)
		}

		got, err := s.GetReport(ctx, "r1")
		if err != nil {
			t.Fatalf("GetReport failed: %v", err)
		}
		if !got.ReportedAt.Equal(base) || !got.ExpiresAt.Equal(base.Add(2*time.Hour)) {
			t.Errorf("Times not preserved: %v %v", got.ReportedAt, got.ExpiresAt)
		}
		if got.QueueLength == nil || *got.QueueLength != 12 {
			t.Errorf("Queue length not preserved: %v", got.QueueLength)
		}
		if len(got.AvailableFuels) != 2 || got.AvailableFuels[0] != models.FuelGasoil {
			t.Errorf("Fuels not preserved: %v", got.AvailableFuels)
		}
		if got.Accuracy != nil || got.ResolvedAt != nil || got.SettledAt != nil {
			t.Errorf("Expected nil optional fields, got %+v", got)
		}

		if _, err := s.GetReport(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateReportVersionCheck(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.CreateReport(ctx, sampleReport("r1", "st1", "u1", base)); err != nil {
			t.Fatal(err)
		}

		first, _ := s.GetReport(ctx, "r1")
		stale, _ := s.GetReport(ctx, "r1")

		first.Status = models.ReportConfirmed
		resolvedAt := base.Add(time.Minute)
		first.ResolvedStatus = models.ReportConfirmed
		first.ResolvedAt = &resolvedAt
		if err := s.UpdateReport(ctx, &first); err != nil {
			t.Fatalf("UpdateReport failed: %v", err)
		}
		if first.Version != 1 {
			t.Errorf("Expected version 1, got %d", first.Version)
		}

		stale.Status = models.ReportDisputed
		if err := s.UpdateReport(ctx, &stale); !errors.Is(err, models.ErrConflict) {
			t.Errorf("Expected ErrConflict for stale write, got %v", err)
		}

		got, _ := s.GetReport(ctx, "r1")
		if got.Status != models.ReportConfirmed || got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) {
			t.Errorf("Unexpected stored report: %+v", got)
		}
	})
}

func TestTrustChangeRejectsDuplicateReportEntry(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u, err := s.EnsureUser(ctx, "u1", 50, base)
		if err != nil {
			t.Fatalf("EnsureUser failed: %v", err)
		}
		entry := models.TrustScoreHistory{
			ID: "h1", UserID: "u1", PreviousScore: 50, NewScore: 52, Change: 2,
			Reason: models.ReasonAccurateReport, RelatedReportID: "r1", CreatedAt: base,
		}
		if err := s.ApplyTrustChange(ctx, u, entry); err != nil {
			t.Fatalf("ApplyTrustChange failed: %v", err)
		}

		// Fresh version, same (user, reason, report)
		fresh, _ := s.GetUser(ctx, "u1")
		dup := entry
		dup.ID, dup.PreviousScore, dup.NewScore = "h2", 52, 54
		if err := s.ApplyTrustChange(ctx, fresh, dup); !errors.Is(err, models.ErrConflict) {
			t.Fatalf("Expected ErrConflict on duplicate entry, got %v", err)
		}

		got, _ := s.GetUser(ctx, "u1")
		if got.TrustScore != 52 || got.Version != 1 {
			t.Errorf("Duplicate entry must not change the user: %+v", got)
		}

		// Other reasons and unrelated entries are unaffected
		other := entry
		other.ID, other.Reason, other.PreviousScore, other.NewScore = "h3", models.ReasonDisputedReport, 52, 49
		other.Change = -3
		if err := s.ApplyTrustChange(ctx, got, other); err != nil {
			t.Errorf("Expected different reason to apply, got %v", err)
		}
		history, _ := s.ListTrustHistory(ctx, "u1")
		if len(history) != 2 {
			t.Errorf("Expected 2 history entries, got %d", len(history))
		}
	})
}

func TestTrustChangeAndHistory(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u, err := s.EnsureUser(ctx, "u1", 50, base)
		if err != nil {
			t.Fatalf("EnsureUser failed: %v", err)
		}
		again, _ := s.EnsureUser(ctx, "u1", 99, base)
		if again.TrustScore != 50 {
			t.Errorf("EnsureUser must not overwrite, got %v", again.TrustScore)
		}

		entry := models.TrustScoreHistory{
			ID: "h1", UserID: "u1", PreviousScore: 50, NewScore: 52, Change: 2,
			Reason: models.ReasonAccurateReport, RelatedReportID: "r1", CreatedAt: base,
		}
		if err := s.ApplyTrustChange(ctx, u, entry); err != nil {
			t.Fatalf("ApplyTrustChange failed: %v", err)
		}
		if err := s.ApplyTrustChange(ctx, u, entry); !errors.Is(err, models.ErrConflict) {
			t.Errorf("Expected ErrConflict on stale user, got %v", err)
		}

		got, _ := s.GetUser(ctx, "u1")
		if got.TrustScore != 52 || got.Version != 1 {
			t.Errorf("Unexpected user: %+v", got)
		}

		ok, _ := s.HasTrustEntry(ctx, "u1", models.ReasonAccurateReport, "r1")
		if !ok {
			t.Error("Expected trust entry to exist")
		}
		ok, _ = s.HasTrustEntry(ctx, "u1", models.ReasonDisputedReport, "r1")
		if ok {
			t.Error("Did not expect disputed entry")
		}

		history, _ := s.ListTrustHistory(ctx, "u1")
		if len(history) != 1 || history[0].NewScore != 52 {
			t.Errorf("Unexpected history: %+v", history)
		}
	})
}

func TestBumpUserCounters(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.BumpUserCounters(ctx, "nobody", models.UserCounters{TotalReports: 1}, base); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}

		s.EnsureUser(ctx, "u1", 50, base)
		s.BumpUserCounters(ctx, "u1", models.UserCounters{TotalReports: 1}, base)
		s.BumpUserCounters(ctx, "u1", models.UserCounters{TotalReports: 1, AccurateReports: 1, HelpfulInteractions: 2}, base)

		u, _ := s.GetUser(ctx, "u1")
		if u.TotalReports != 2 || u.AccurateReports != 1 || u.HelpfulInteractions != 2 || u.DisputedReports != 0 {
			t.Errorf("Unexpected counters: %+v", u)
		}
	})
}

func TestReportQueries(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.CreateReport(ctx, sampleReport("a", "st1", "u1", base))
		s.CreateReport(ctx, sampleReport("b", "st1", "u2", base.Add(10*time.Minute)))
		s.CreateReport(ctx, sampleReport("c", "st2", "u1", base.Add(20*time.Minute)))

		reports, total, err := s.ListReports(ctx, models.ReportQuery{StationID: "st1"})
		if err != nil {
			t.Fatalf("ListReports failed: %v", err)
		}
		if total != 2 || len(reports) != 2 || reports[0].ID != "b" {
			t.Errorf("Expected newest first for st1, got total=%d %v", total, ids(reports))
		}

		reports, total, _ = s.ListReports(ctx, models.ReportQuery{ReporterID: "u1", Limit: 1, Offset: 1})
		if total != 2 || len(reports) != 1 || reports[0].ID != "a" {
			t.Errorf("Unexpected paged result: total=%d %v", total, ids(reports))
		}

		station, _ := s.ListStationReports(ctx, "st1", base.Add(5*time.Minute))
		if len(station) != 1 || station[0].ID != "b" {
			t.Errorf("Unexpected station reports: %v", ids(station))
		}

		active, _ := s.ListActiveStations(ctx, base)
		if len(active) != 2 || active[0] != "st1" || active[1] != "st2" {
			t.Errorf("Unexpected active stations: %v", active)
		}

		n, _ := s.CountReportsSince(ctx, "u1", "st1", base)
		if n != 1 {
			t.Errorf("Expected 1 recent report, got %d", n)
		}

		due, _ := s.ListDueForExpiry(ctx, base.Add(2*time.Hour+10*time.Minute))
		if len(due) != 2 || due[0].ID != "a" || due[1].ID != "b" {
			t.Errorf("Unexpected due reports: %v", ids(due))
		}

		pending, _ := s.ListPendingBefore(ctx, base.Add(15*time.Minute))
		if len(pending) != 2 {
			t.Errorf("Expected 2 pending reports before cutoff, got %v", ids(pending))
		}
	})
}

func TestListUnsettled(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.CreateReport(ctx, sampleReport("a", "st1", "u1", base))
		s.CreateReport(ctx, sampleReport("b", "st1", "u2", base))

		r, _ := s.GetReport(ctx, "a")
		r.Status = models.ReportConfirmed
		r.ResolvedStatus = models.ReportConfirmed
		s.UpdateReport(ctx, &r)

		unsettled, _ := s.ListUnsettled(ctx)
		if len(unsettled) != 1 || unsettled[0].ID != "a" {
			t.Fatalf("Expected report a unsettled, got %v", ids(unsettled))
		}

		settled := base.Add(time.Minute)
		r.SettledAt = &settled
		s.UpdateReport(ctx, &r)

		unsettled, _ = s.ListUnsettled(ctx)
		if len(unsettled) != 0 {
			t.Errorf("Expected no unsettled reports, got %v", ids(unsettled))
		}
	})
}

func TestSaveInteractionOverwrites(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.CreateReport(ctx, sampleReport("r1", "st1", "u1", base))
		r, _ := s.GetReport(ctx, "r1")

		r.Confirmations = 1
		r.WeightedConfirmations = 0.6
		first := models.ReportInteraction{
			ID: "i1", ReportID: "r1", UserID: "u2", InteractionType: models.InteractionConfirm,
			UserTrustScore: 60, Weight: 0.6, CreatedAt: base, UpdatedAt: base,
		}
		if err := s.SaveInteraction(ctx, &r, first); err != nil {
			t.Fatalf("SaveInteraction failed: %v", err)
		}

		r.Confirmations = 0
		r.WeightedConfirmations = 0
		r.Disputes = 1
		r.WeightedDisputes = 0.6
		later := base.Add(time.Minute)
		second := models.ReportInteraction{
			ID: "i2", ReportID: "r1", UserID: "u2", InteractionType: models.InteractionDispute,
			UserTrustScore: 60, Weight: 0.6, CreatedAt: later, UpdatedAt: later,
		}
		if err := s.SaveInteraction(ctx, &r, second); err != nil {
			t.Fatalf("Second SaveInteraction failed: %v", err)
		}

		list, _ := s.ListInteractions(ctx, "r1")
		if len(list) != 1 {
			t.Fatalf("Expected one live interaction, got %d", len(list))
		}
		if list[0].ID != "i1" || list[0].InteractionType != models.InteractionDispute || !list[0].CreatedAt.Equal(base) {
			t.Errorf("Expected overwrite keeping id and created_at, got %+v", list[0])
		}

		stored, _ := s.GetReport(ctx, "r1")
		if stored.Disputes != 1 || stored.Confirmations != 0 || stored.Version != 2 {
			t.Errorf("Unexpected report counters: %+v", stored)
		}

		stale := stored
		stale.Version = 0
		if err := s.SaveInteraction(ctx, &stale, second); !errors.Is(err, models.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}

		if _, err := s.GetInteraction(ctx, "r1", "u9"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in            models.ReportQuery
		limit, offset int
	}{
		{models.ReportQuery{}, DefaultListLimit, 0},
		{models.ReportQuery{Limit: 500, Offset: -3}, MaxListLimit, 0},
		{models.ReportQuery{Limit: 5, Offset: 10}, 5, 10},
	}
	for _, tt := range tests {
		got := NormalizeQuery(tt.in)
		if got.Limit != tt.limit || got.Offset != tt.offset {
			t.Errorf("NormalizeQuery(%+v) = %d/%d, want %d/%d", tt.in, got.Limit, got.Offset, tt.limit, tt.offset)
		}
	}
}

func TestRebind(t *testing.T) {
	s := NewSQLStore(nil, DialectSQLite)
	if got := s.q("SELECT 1 WHERE a = $1 AND b = $12"); got != "SELECT 1 WHERE a = ? AND b = ?" {
		t.Errorf("Unexpected rebind: %s", got)
	}
	pg := NewSQLStore(nil, DialectPostgres)
	if got := pg.q("a = $1"); got != "a = $1" {
		t.Errorf("Postgres query must not change: %s", got)
	}
}

func ids(reports []models.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}
