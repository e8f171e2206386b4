// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/fuelwatch/cliparse"
	"github.com/danielhkuo/fuelwatch/db"
	"github.com/danielhkuo/fuelwatch/engine"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
)

// Stations used across HTTP tests
const (
	StationA = "3f1c2b8e-3d4a-4c5b-9e7f-0a1b2c3d4e5f"
	StationB = "9b2e4d6f-1a3c-4e5b-8d7f-2c4e6a8b0d1f"
)

// Caracas, inside the default service region
const (
	TestLatitude  = 10.49
	TestLongitude = -66.88
)

var Start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SetupTestDB opens a fresh SQLite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "fuelwatch.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// SetupTestStore returns a SQLStore backed by SetupTestDB
func SetupTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	return store.NewSQLStore(SetupTestDB(t), store.DialectSQLite)
}

// NewTestEngine builds an engine on s driven by clock. Recompute timers
// are pushed out of the way; call Scheduler().Flush() to run them.
func NewTestEngine(t *testing.T, s store.Store, clock *Clock) *engine.Engine {
	t.Helper()

	settings := engine.DefaultSettings()
	settings.Engine.RecomputeDebounce = time.Hour
	e := engine.New(settings, engine.Deps{Store: s, Now: clock.Now})
	t.Cleanup(e.Scheduler().Stop)
	return e
}

// CreateTestUser stores a user with the given trust score
func CreateTestUser(t *testing.T, s store.Store, userID string, trustScore float64, clock *Clock) {
	t.Helper()
	if _, err := s.EnsureUser(context.Background(), userID, trustScore, clock.Now()); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
}

// StatusReport is a STATUS_UPDATE request inside the service region
func StatusReport(stationID string, status models.StationStatus) models.CreateReportRequest {
	return models.CreateReportRequest{
		StationID:     stationID,
		ReportType:    models.ReportStatusUpdate,
		StationStatus: status,
		Latitude:      TestLatitude,
		Longitude:     TestLongitude,
	}
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseType: cliparse.DatabaseMemory,
		LogLevel:     "info",
		LogFormat:    "json",
		CORSOrigins:  []string{"*"},
	}
}

// MakeRequest creates an HTTP test request. userID, when set, is sent as
// the X-User-ID header.
func MakeRequest(method, path string, body any, userID string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
