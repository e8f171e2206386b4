// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/fuelwatch/ingest"
)

// RedisRateLimiter shares the per (user, station) report window across
// server instances. Each allowed report is a sorted-set member scored by its
// time in microseconds.
type RedisRateLimiter struct {
	client *redis.Client
	limit  ingest.RateLimit
}

func NewRedisRateLimiter(client *redis.Client, limit ingest.RateLimit) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit}
}

// Allow trims entries older than the window, adds this attempt and counts.
// An attempt over the limit is removed again, so concurrent callers can
// only be under-admitted, never over-admitted.
func (l *RedisRateLimiter) Allow(ctx context.Context, userID, stationID string, now time.Time) (bool, error) {
	if l.limit.MaxReports <= 0 || l.limit.Window <= 0 {
		return true, nil
	}
	key := RateLimitKey(userID, stationID)
	floor := now.Add(-l.limit.Window).UnixMicro()
	member := strconv.FormatInt(now.UnixMicro(), 10) + ":" + uuid.NewString()

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(floor, 10))
		p.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		card = p.ZCard(ctx, key)
		p.Expire(ctx, key, l.limit.Window+time.Minute)
		return nil
	})
	if err != nil {
		return false, err
	}

	if card.Val() > int64(l.limit.MaxReports) {
		if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Release drops the attempt Allow recorded at now. Submits for one user and
// station are serialized, so the member scored at now is that attempt.
func (l *RedisRateLimiter) Release(ctx context.Context, userID, stationID string, now time.Time) error {
	if l.limit.MaxReports <= 0 || l.limit.Window <= 0 {
		return nil
	}
	score := strconv.FormatInt(now.UnixMicro(), 10)
	return l.client.ZRemRangeByScore(ctx, RateLimitKey(userID, stationID), score, score).Err()
}
