// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"context"
	"time"

	"github.com/danielhkuo/fuelwatch/store"
)

// RateLimiter decides whether a user may report on a station at now.
// Allow is called under the station lock, immediately before the report is
// written, so an allowed call may count itself. Release undoes an allowed
// call at the same now when the report was not written.
type RateLimiter interface {
	Allow(ctx context.Context, userID, stationID string, now time.Time) (bool, error)
	Release(ctx context.Context, userID, stationID string, now time.Time) error
}

// StoreRateLimiter counts the user's reports for the station inside the
// rolling window straight from the report store.
type StoreRateLimiter struct {
	reports store.ReportStore
	limit   RateLimit
}

func NewStoreRateLimiter(reports store.ReportStore, limit RateLimit) *StoreRateLimiter {
	return &StoreRateLimiter{reports: reports, limit: limit}
}

func (l *StoreRateLimiter) Allow(ctx context.Context, userID, stationID string, now time.Time) (bool, error) {
	if l.limit.MaxReports <= 0 || l.limit.Window <= 0 {
		return true, nil
	}
	n, err := l.reports.CountReportsSince(ctx, userID, stationID, now.Add(-l.limit.Window))
	if err != nil {
		return false, err
	}
	return n < l.limit.MaxReports, nil
}

// Release is a no-op: only written reports are counted.
func (l *StoreRateLimiter) Release(context.Context, string, string, time.Time) error {
	return nil
}
