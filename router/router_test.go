// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/fuelwatch/auth"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
	"github.com/danielhkuo/fuelwatch/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	e := testutil.NewTestEngine(t, store.NewMemoryStore(), testutil.NewClock(testutil.Start))
	return NewRouter(e, testutil.GetTestConfig())
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var body struct {
		Status string `json:"status"`
	}
	testutil.AssertJSON(t, w, &body)
	if body.Status != "ok" {
		t.Errorf("Expected status 'ok', got %q", body.Status)
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	expected := "fuelwatch API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux := newTestRouter(t)

	// Every route must reach its handler: chi answers unknown paths with
	// 404 text/plain, handlers always answer JSON
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},

		// Reports
		{"POST", "/reports"},
		{"GET", "/reports"},
		{"GET", "/reports/missing"},
		{"POST", "/reports/missing/interactions"},

		// Stations
		{"GET", "/stations/" + testutil.StationA + "/status"},

		// Users
		{"GET", "/users/u1/trust"},
		{"GET", "/users/u1/trust/history"},
		{"GET", "/users/u1/stats"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := testutil.MakeRequest(tc.method, tc.path, map[string]string{}, "u1")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Route %s %s not handled (status %d, content type %q)", tc.method, tc.path, w.Code, ct)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"DELETE", "/reports"},
		{"PUT", "/reports/abc"},
		{"POST", "/stations/" + testutil.StationA + "/status"},
		{"POST", "/users/u1/trust"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			testutil.AssertStatus(t, w, http.StatusMethodNotAllowed)
		})
	}
}

func TestWritesRequireIdentity(t *testing.T) {
	mux := newTestRouter(t)

	for _, path := range []string{"/reports", "/reports/abc/interactions"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("POST", path, map[string]string{}, ""))
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	}
}

func TestJWTIdentity(t *testing.T) {
	e := testutil.NewTestEngine(t, store.NewMemoryStore(), testutil.NewClock(testutil.Start))
	cfg := testutil.GetTestConfig()
	cfg.JWTSecret = "test-secret"
	mux := NewRouter(e, cfg)

	token, err := auth.IssueUserToken("driver-1", cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueUserToken() error = %v", err)
	}

	req := testutil.MakeRequest("POST", "/reports", testutil.StatusReport(testutil.StationA, models.StationOpen), "")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.CreateReportResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Report.ReporterID != "driver-1" {
		t.Errorf("Expected reporter from token, got %q", resp.Report.ReporterID)
	}

	// The header is ignored once tokens are in use
	req = testutil.MakeRequest("POST", "/reports", testutil.StatusReport(testutil.StationA, models.StationOpen), "driver-2")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestCORSPreflight(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("OPTIONS", "/reports", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Errorf("Expected CORS headers on preflight, got none (status %d)", w.Code)
	}
}
