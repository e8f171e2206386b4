// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
	"github.com/danielhkuo/fuelwatch/testutil"
)

func interact(typ models.InteractionType) models.InteractRequest {
	return models.InteractRequest{InteractionType: typ}
}

func TestRecordInteractionConfirms(t *testing.T) {
	f := setup(t, testutil.SetupTestStore(t))
	testutil.CreateTestUser(t, f.store, "c1", 80, f.clock)
	testutil.CreateTestUser(t, f.store, "c2", 80, f.clock)
	r := f.submit(t, "reporter", testutil.StatusReport(testutil.StationA, models.StationOpen))
	path := "/reports/" + r.ID + "/interactions"

	w := f.do("POST", path, interact(models.InteractionConfirm), "c1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var first models.InteractResult
	testutil.AssertJSON(t, w, &first)
	if first.Report.Status != models.ReportPending || first.Report.Confirmations != 1 {
		t.Errorf("Expected one confirmation on a PENDING report, got %+v", first.Report)
	}
	if first.Interaction.Weight != 0.8 {
		t.Errorf("Expected weight 0.8, got %v", first.Interaction.Weight)
	}
	if first.Message != "Interaction recorded" {
		t.Errorf("Unexpected message %q", first.Message)
	}

	w = f.do("POST", path, interact(models.InteractionConfirm), "c2")
	testutil.AssertStatus(t, w, http.StatusOK)
	var second models.InteractResult
	testutil.AssertJSON(t, w, &second)
	if second.Report.Status != models.ReportConfirmed {
		t.Fatalf("Expected CONFIRMED, got %s", second.Report.Status)
	}
	if second.Message != "Interaction recorded; report confirmed" {
		t.Errorf("Unexpected message %q", second.Message)
	}

	w = f.do("GET", "/users/reporter/trust", nil, "")
	var trust models.TrustScoreResponse
	testutil.AssertJSON(t, w, &trust)
	if trust.TrustScore <= 50 {
		t.Errorf("Expected reporter rewarded above 50, got %v", trust.TrustScore)
	}
}

func TestRecordInteractionRepeatIsNoOp(t *testing.T) {
	f := setup(t, store.NewMemoryStore())
	r := f.submit(t, "reporter", testutil.StatusReport(testutil.StationA, models.StationOpen))
	path := "/reports/" + r.ID + "/interactions"

	for i := 0; i < 3; i++ {
		w := f.do("POST", path, interact(models.InteractionDispute), "d1")
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	got, err := f.engine.GetReport(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Disputes != 1 {
		t.Errorf("Expected one dispute counted, got %d", got.Disputes)
	}
}

func TestRecordInteractionFlag(t *testing.T) {
	f := setup(t, store.NewMemoryStore())
	r := f.submit(t, "reporter", testutil.StatusReport(testutil.StationA, models.StationOpen))

	w := f.do("POST", "/reports/"+r.ID+"/interactions", interact(models.InteractionFlag), "mod")
	testutil.AssertStatus(t, w, http.StatusOK)

	var res models.InteractResult
	testutil.AssertJSON(t, w, &res)
	if res.Message != "Report flagged for review" {
		t.Errorf("Unexpected message %q", res.Message)
	}
	if res.Report.Status != models.ReportPending {
		t.Errorf("Flag must not resolve the report, got %s", res.Report.Status)
	}
}

func TestRecordInteractionErrors(t *testing.T) {
	f := setup(t, store.NewMemoryStore())
	stale := f.submit(t, "reporter", testutil.StatusReport(testutil.StationB, models.StationOpen))
	f.clock.Advance(3 * time.Hour)
	fresh := f.submit(t, "reporter", testutil.StatusReport(testutil.StationA, models.StationClosed))

	tests := []struct {
		name   string
		report string
		user   string
		body   any
		code   int
	}{
		{"unknown report", "missing", "u1", interact(models.InteractionConfirm), http.StatusNotFound},
		{"own report", fresh.ID, "reporter", interact(models.InteractionConfirm), http.StatusBadRequest},
		{"bad type", fresh.ID, "u1", interact("LIKE"), http.StatusBadRequest},
		{"expired report", stale.ID, "u1", interact(models.InteractionConfirm), http.StatusBadRequest},
		{"anonymous", fresh.ID, "", interact(models.InteractionConfirm), http.StatusUnauthorized},
		{"bad body", fresh.ID, "u1", []int{1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do("POST", "/reports/"+tt.report+"/interactions", tt.body, tt.user)
			testutil.AssertStatus(t, w, tt.code)
		})
	}
}
