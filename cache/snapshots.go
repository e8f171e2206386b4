// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/fuelwatch/models"
)

// DefaultSnapshotTTL bounds how long a station's last status survives
// without a recompute.
const DefaultSnapshotTTL = 24 * time.Hour

// RedisSnapshots keeps the last computed status of each station as JSON
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisSnapshots{client: client, ttl: ttl}
}

func (s *RedisSnapshots) Save(ctx context.Context, status models.StationCurrentStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, StatusKey(status.StationID), data, s.ttl).Err()
}

// Load returns false when no snapshot exists for the station
func (s *RedisSnapshots) Load(ctx context.Context, stationID string) (models.StationCurrentStatus, bool, error) {
	data, err := s.client.Get(ctx, StatusKey(stationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.StationCurrentStatus{}, false, nil
	}
	if err != nil {
		return models.StationCurrentStatus{}, false, err
	}

	var status models.StationCurrentStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return models.StationCurrentStatus{}, false, err
	}
	return status, true, nil
}
