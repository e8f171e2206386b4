// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const refreshTimeout = 10 * time.Second

// Scheduler coalesces recompute requests per station. The first request
// arms a timer; requests arriving before it fires join that run.
type Scheduler struct {
	debounce time.Duration
	refresh  func(ctx context.Context, stationID string) error

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(debounce time.Duration, refresh func(ctx context.Context, stationID string) error) *Scheduler {
	return &Scheduler{
		debounce: debounce,
		refresh:  refresh,
		timers:   make(map[string]*time.Timer),
	}
}

// Request schedules a recompute of stationID and returns immediately
func (s *Scheduler) Request(stationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, ok := s.timers[stationID]; ok {
		return
	}
	s.wg.Add(1)
	s.timers[stationID] = time.AfterFunc(s.debounce, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, stationID)
		s.mu.Unlock()
		s.run(stationID)
	})
}

// Pending returns the stations waiting for their timer, sorted
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.timers))
	for id := range s.timers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Flush runs every pending recompute now
func (s *Scheduler) Flush() {
	s.mu.Lock()
	var due []string
	for id, t := range s.timers {
		if t.Stop() {
			due = append(due, id)
			delete(s.timers, id)
			s.wg.Done()
		}
	}
	s.mu.Unlock()

	sort.Strings(due)
	for _, id := range due {
		s.run(id)
	}
}

// Stop runs pending recomputes, refuses new ones and waits for timers
// already firing.
func (s *Scheduler) Stop() {
	s.Flush()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(stationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := s.refresh(ctx, stationID); err != nil {
		slog.Error("failed to recompute station status", "error", err, "station_id", stationID)
	}
}

// Run recomputes every station listed by active on each interval tick
// until ctx is cancelled. This catches requests lost to a crash or a
// failed refresh.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, active func(ctx context.Context) ([]string, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stations, err := active(ctx)
			if err != nil {
				slog.Error("failed to list active stations", "error", err)
				continue
			}
			for _, id := range stations {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.run(id)
			}
			slog.Debug("safety-net recompute completed", "stations", len(stations))
		}
	}
}
