// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/fuelwatch/engine"
	"github.com/danielhkuo/fuelwatch/middleware"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
	"github.com/danielhkuo/fuelwatch/testutil"
)

type fixture struct {
	engine *engine.Engine
	store  store.Store
	clock  *testutil.Clock
	mux    http.Handler
}

// setup wires every handler onto a chi router backed by a real engine
func setup(t *testing.T, s store.Store) *fixture {
	t.Helper()
	clock := testutil.NewClock(testutil.Start)
	e := testutil.NewTestEngine(t, s, clock)
	return &fixture{engine: e, store: s, clock: clock, mux: newMux(e)}
}

func newMux(svc Service) http.Handler {
	reports := NewReportHandler(svc)
	interactions := NewInteractionHandler(svc)
	status := NewStatusHandler(svc)
	users := NewUserHandler(svc)
	health := NewHealthHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.Identity(""))
	r.Get("/health", health.Check)
	r.With(middleware.RequireUser).Post("/reports", reports.CreateReport)
	r.Get("/reports", reports.ListReports)
	r.Get("/reports/{id}", reports.GetReport)
	r.With(middleware.RequireUser).Post("/reports/{id}/interactions", interactions.RecordInteraction)
	r.Get("/stations/{id}/status", status.GetStatus)
	r.Get("/users/{id}/trust", users.GetTrust)
	r.Get("/users/{id}/trust/history", users.GetTrustHistory)
	r.Get("/users/{id}/stats", users.GetStats)
	return r
}

func (f *fixture) do(method, path string, body any, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, testutil.MakeRequest(method, path, body, userID))
	return w
}

// submit posts a report and returns it, failing the test on non-201
func (f *fixture) submit(t *testing.T, userID string, req models.CreateReportRequest) models.Report {
	t.Helper()
	w := f.do("POST", "/reports", req, userID)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 submitting report, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.CreateReportResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.Report
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

// stubService fails every call with err
type stubService struct {
	err error
}

func (s stubService) SubmitReport(context.Context, string, models.CreateReportRequest) (models.Report, error) {
	return models.Report{}, s.err
}

func (s stubService) RecordInteraction(context.Context, string, string, models.InteractionType) (models.InteractResult, error) {
	return models.InteractResult{}, s.err
}

func (s stubService) GetCurrentStatus(context.Context, string) (models.StationCurrentStatus, error) {
	return models.StationCurrentStatus{}, s.err
}

func (s stubService) CachedStatus(context.Context, string) (models.StationCurrentStatus, bool, error) {
	return models.StationCurrentStatus{}, false, s.err
}

func (s stubService) GetTrustScore(context.Context, string) (float64, error) {
	return 0, s.err
}

func (s stubService) TrustHistory(context.Context, string) ([]models.TrustScoreHistory, error) {
	return nil, s.err
}

func (s stubService) GetUserStats(context.Context, string) (models.UserStats, error) {
	return models.UserStats{}, s.err
}

func (s stubService) GetReport(context.Context, string) (models.Report, error) {
	return models.Report{}, s.err
}

func (s stubService) ListReports(context.Context, models.ReportQuery) (models.ReportList, error) {
	return models.ReportList{}, s.err
}

func (s stubService) Ping(context.Context) error {
	return s.err
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"validation field", models.Invalid("station_id", "must be a UUID"), http.StatusBadRequest, "station_id: must be a UUID"},
		{"wrapped validation", errors.Join(models.ErrValidation, errors.New("bad input")), http.StatusBadRequest, ""},
		{"rate limited", models.ErrRateLimited, http.StatusTooManyRequests, "rate limit exceeded"},
		{"not found", models.ErrNotFound, http.StatusNotFound, "Not found"},
		{"conflict", models.ErrConflict, http.StatusConflict, "Concurrent modification, please retry"},
		{"internal", models.ErrInternal, http.StatusInternalServerError, "Internal error"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest("GET", "/", nil), tt.err)

			testutil.AssertStatus(t, w, tt.code)
			resp := decodeError(t, w)
			if tt.message != "" && resp.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, resp.Message)
			}
			if resp.Error != http.StatusText(tt.code) {
				t.Errorf("Expected error %q, got %q", http.StatusText(tt.code), resp.Error)
			}
		})
	}
}

func TestServiceErrorsReachClient(t *testing.T) {
	mux := newMux(stubService{err: models.ErrNotFound})

	paths := []string{
		"/reports/abc",
		"/users/u1/trust",
		"/users/u1/trust/history",
		"/users/u1/stats",
		"/stations/" + testutil.StationA + "/status",
	}
	for _, path := range paths {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	}
}
