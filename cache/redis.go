// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fuelwatch:"

// Connect creates a client from a redis:// URL or a host:port address and
// checks that the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	client, err := newClient(redisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func newClient(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	if redisURL == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func RateLimitKey(userID, stationID string) string {
	return keyPrefix + "ratelimit:" + userID + ":" + stationID
}

func StatusKey(stationID string) string {
	return keyPrefix + "status:" + stationID
}
