// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/danielhkuo/fuelwatch/models"
)

type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]models.User
	history      map[string][]models.TrustScoreHistory
	reports      map[string]models.Report
	interactions map[string]map[string]models.ReportInteraction // report id -> user id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]models.User),
		history:      make(map[string][]models.TrustScoreHistory),
		reports:      make(map[string]models.Report),
		interactions: make(map[string]map[string]models.ReportInteraction),
	}
}

// ── Users ──

func (s *MemoryStore) EnsureUser(_ context.Context, userID string, initialScore float64, now time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	u := models.User{
		ID:         userID,
		TrustScore: initialScore,
		CreatedAt:  now,
		LastActive: now,
	}
	s.users[userID] = u
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) ApplyTrustChange(_ context.Context, user models.User, entry models.TrustScoreHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrNotFound)
	}
	if current.Version != user.Version {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrConflict)
	}
	if entry.RelatedReportID != "" {
		for _, e := range s.history[user.ID] {
			if e.Reason == entry.Reason && e.RelatedReportID == entry.RelatedReportID {
				return fmt.Errorf("trust entry %s/%s for %s exists: %w", entry.Reason, entry.RelatedReportID, user.ID, models.ErrConflict)
			}
		}
	}
	current.TrustScore = entry.NewScore
	current.Version++
	current.LastActive = entry.CreatedAt
	s.users[user.ID] = current
	s.history[user.ID] = append(s.history[user.ID], entry)
	return nil
}

func (s *MemoryStore) HasTrustEntry(_ context.Context, userID, reason, reportID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.history[userID] {
		if e.Reason == reason && e.RelatedReportID == reportID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListTrustHistory(_ context.Context, userID string) ([]models.TrustScoreHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[userID]), nil
}

func (s *MemoryStore) BumpUserCounters(_ context.Context, userID string, delta models.UserCounters, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	u.TotalReports += delta.TotalReports
	u.AccurateReports += delta.AccurateReports
	u.DisputedReports += delta.DisputedReports
	u.HelpfulInteractions += delta.HelpfulInteractions
	u.LastActive = now
	s.users[userID] = u
	return nil
}

// ── Reports ──

func (s *MemoryStore) CreateReport(_ context.Context, r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return fmt.Errorf("report %s: %w", r.ID, models.ErrConflict)
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return models.Report{}, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) UpdateReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateReportLocked(r)
}

func (s *MemoryStore) updateReportLocked(r *models.Report) error {
	current, ok := s.reports[r.ID]
	if !ok {
		return fmt.Errorf("report %s: %w", r.ID, models.ErrNotFound)
	}
	if current.Version != r.Version {
		return fmt.Errorf("report %s: %w", r.ID, models.ErrConflict)
	}
	r.Version++
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context, q models.ReportQuery) ([]models.Report, int, error) {
	q = NormalizeQuery(q)
	matched := s.filter(func(r models.Report) bool {
		return (q.StationID == "" || r.StationID == q.StationID) &&
			(q.ReporterID == "" || r.ReporterID == q.ReporterID) &&
			(q.Status == "" || r.Status == q.Status) &&
			(q.ReportType == "" || r.ReportType == q.ReportType)
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReportedAt.Equal(matched[j].ReportedAt) {
			return matched[i].ReportedAt.After(matched[j].ReportedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if q.Offset >= total {
		return []models.Report{}, total, nil
	}
	end := min(q.Offset+q.Limit, total)
	return matched[q.Offset:end], total, nil
}

func (s *MemoryStore) ListStationReports(_ context.Context, stationID string, since time.Time) ([]models.Report, error) {
	out := s.filter(func(r models.Report) bool {
		return r.StationID == stationID && !r.ReportedAt.Before(since)
	})
	sortByReportedAt(out)
	return out, nil
}

func (s *MemoryStore) ListDueForExpiry(_ context.Context, now time.Time) ([]models.Report, error) {
	out := s.filter(func(r models.Report) bool {
		return r.Status != models.ReportExpired && !r.ExpiresAt.After(now)
	})
	sortByReportedAt(out)
	return out, nil
}

func (s *MemoryStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]models.Report, error) {
	out := s.filter(func(r models.Report) bool {
		return r.Status == models.ReportPending && !r.ReportedAt.After(cutoff)
	})
	sortByReportedAt(out)
	return out, nil
}

func (s *MemoryStore) ListUnsettled(_ context.Context) ([]models.Report, error) {
	out := s.filter(func(r models.Report) bool {
		return r.ResolvedStatus != "" && r.SettledAt == nil
	})
	sortByReportedAt(out)
	return out, nil
}

func (s *MemoryStore) ListActiveStations(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var stations []string
	for _, r := range s.reports {
		if r.ReportedAt.Before(since) || seen[r.StationID] {
			continue
		}
		seen[r.StationID] = true
		stations = append(stations, r.StationID)
	}
	sort.Strings(stations)
	return stations, nil
}

func (s *MemoryStore) CountReportsSince(_ context.Context, userID, stationID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.reports {
		if r.ReporterID == userID && r.StationID == stationID && !r.ReportedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) filter(keep func(models.Report) bool) []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Report
	for _, r := range s.reports {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func sortByReportedAt(reports []models.Report) {
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].ReportedAt.Equal(reports[j].ReportedAt) {
			return reports[i].ReportedAt.Before(reports[j].ReportedAt)
		}
		return reports[i].ID < reports[j].ID
	})
}

// ── Interactions ──

func (s *MemoryStore) GetInteraction(_ context.Context, reportID, userID string) (models.ReportInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.interactions[reportID][userID]
	if !ok {
		return models.ReportInteraction{}, fmt.Errorf("interaction %s/%s: %w", reportID, userID, models.ErrNotFound)
	}
	return in, nil
}

func (s *MemoryStore) ListInteractions(_ context.Context, reportID string) ([]models.ReportInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ReportInteraction, 0, len(s.interactions[reportID]))
	for _, in := range s.interactions[reportID] {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *MemoryStore) SaveInteraction(_ context.Context, r *models.Report, in models.ReportInteraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateReportLocked(r); err != nil {
		return err
	}
	byUser, ok := s.interactions[in.ReportID]
	if !ok {
		byUser = make(map[string]models.ReportInteraction)
		s.interactions[in.ReportID] = byUser
	}
	if prev, exists := byUser[in.UserID]; exists {
		in.ID = prev.ID
		in.CreatedAt = prev.CreatedAt
	}
	byUser[in.UserID] = in
	return nil
}
