// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/danielhkuo/fuelwatch/models"
)

// SnapshotCache holds the last computed status of each station.
// cache.RedisSnapshots implements it for multi-instance deployments.
type SnapshotCache interface {
	Save(ctx context.Context, status models.StationCurrentStatus) error
	Load(ctx context.Context, stationID string) (models.StationCurrentStatus, bool, error)
}

type MemorySnapshots struct {
	mu       sync.RWMutex
	statuses map[string]models.StationCurrentStatus
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{statuses: make(map[string]models.StationCurrentStatus)}
}

func (m *MemorySnapshots) Save(_ context.Context, status models.StationCurrentStatus) error {
	status.AvailableFuels = slices.Clone(status.AvailableFuels)
	m.mu.Lock()
	m.statuses[status.StationID] = status
	m.mu.Unlock()
	return nil
}

func (m *MemorySnapshots) Load(_ context.Context, stationID string) (models.StationCurrentStatus, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[stationID]
	if !ok {
		return models.StationCurrentStatus{}, false, nil
	}
	status.AvailableFuels = slices.Clone(status.AvailableFuels)
	return status, true, nil
}
