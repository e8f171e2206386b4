// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/fuelwatch/consensus"
	"github.com/danielhkuo/fuelwatch/interaction"
	"github.com/danielhkuo/fuelwatch/keylock"
	"github.com/danielhkuo/fuelwatch/models"
	"github.com/danielhkuo/fuelwatch/store"
)

// Recomputer is told which stations a sweep touched
type Recomputer interface {
	Request(stationID string)
}

type Result struct {
	Expired  int
	Disputed int
	Settled  int
	Stations []string
}

// Sweeper retires expired reports, disputes stale disagreeing reports and
// finishes incomplete settlements. Overlapping sweeps share one run.
type Sweeper struct {
	store      store.Store
	processor  *interaction.Processor
	aggregator *consensus.Aggregator
	stations   *keylock.Striped
	recompute  Recomputer
	now        func() time.Time
	group      singleflight.Group
}

func New(s store.Store, processor *interaction.Processor, aggregator *consensus.Aggregator, stations *keylock.Striped, recompute Recomputer, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:      s,
		processor:  processor,
		aggregator: aggregator,
		stations:   stations,
		recompute:  recompute,
		now:        now,
	}
}

// Sweep runs one pass. A call made while a pass is running waits for it and
// receives the same result.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	v, err, _ := s.group.Do("sweep", func() (any, error) {
		return s.sweep(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Sweeper) sweep(ctx context.Context) (Result, error) {
	now := s.now()
	touched := make(map[string]bool)
	var res Result

	due, err := s.store.ListDueForExpiry(ctx, now)
	if err != nil {
		return Result{}, err
	}
	for _, r := range due {
		expired, err := s.expire(ctx, r.ID, r.StationID, now)
		if err != nil {
			slog.Error("failed to expire report", "error", err, "report_id", r.ID)
			continue
		}
		if expired {
			res.Expired++
			touched[r.StationID] = true
		}
	}

	disputed, err := s.disputeStale(ctx, now)
	if err != nil {
		return Result{}, err
	}
	for _, stationID := range disputed {
		res.Disputed++
		touched[stationID] = true
	}

	unsettled, err := s.store.ListUnsettled(ctx)
	if err != nil {
		return Result{}, err
	}
	for _, r := range unsettled {
		if err := s.processor.Reconcile(ctx, r.ID); err != nil {
			slog.Error("failed to reconcile settlement", "error", err, "report_id", r.ID)
			continue
		}
		res.Settled++
	}

	for stationID := range touched {
		res.Stations = append(res.Stations, stationID)
	}
	sort.Strings(res.Stations)
	for _, stationID := range res.Stations {
		if s.recompute != nil {
			s.recompute.Request(stationID)
		}
	}

	if res.Expired > 0 || res.Disputed > 0 || res.Settled > 0 {
		slog.Info("sweep completed",
			"expired", res.Expired,
			"disputed", res.Disputed,
			"settled", res.Settled,
			"stations", len(res.Stations),
		)
	}
	return res, nil
}

// expire moves one report to EXPIRED under its station lock. An already
// expired report, or one changed concurrently, is left for the next pass.
func (s *Sweeper) expire(ctx context.Context, reportID, stationID string, now time.Time) (bool, error) {
	unlock := s.stations.Lock(stationID)
	defer unlock()

	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return false, err
	}
	if r.Status == models.ReportExpired || !r.Expired(now) {
		return false, nil
	}

	r.Status = models.ReportExpired
	r.UpdatedAt = now
	if err := s.store.UpdateReport(ctx, &r); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// disputeStale evaluates consensus for every station holding a PENDING
// report older than the grace period and disputes the ones that disagree.
// Returns the station of each disputed report.
func (s *Sweeper) disputeStale(ctx context.Context, now time.Time) ([]string, error) {
	grace := s.processor.Settings().DisagreementGrace
	pending, err := s.store.ListPendingBefore(ctx, now.Add(-grace))
	if err != nil {
		return nil, err
	}

	byStation := make(map[string][]models.Report)
	var order []string
	for _, r := range pending {
		if r.Expired(now) {
			continue
		}
		if _, ok := byStation[r.StationID]; !ok {
			order = append(order, r.StationID)
		}
		byStation[r.StationID] = append(byStation[r.StationID], r)
	}

	var disputed []string
	lookback := s.aggregator.Settings().Lookback
	for _, stationID := range order {
		reports, err := s.store.ListStationReports(ctx, stationID, now.Add(-lookback))
		if err != nil {
			return nil, err
		}
		res := s.aggregator.Evaluate(stationID, reports, now)
		for _, r := range byStation[stationID] {
			moved, err := s.processor.DisputeStale(ctx, r.ID, res)
			if err != nil {
				slog.Error("failed to dispute stale report", "error", err, "report_id", r.ID)
				continue
			}
			if moved {
				disputed = append(disputed, stationID)
			}
		}
	}
	return disputed, nil
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("sweep failed", "error", err)
			}
		}
	}
}
