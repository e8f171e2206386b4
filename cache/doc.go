// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache holds the Redis adapters.

  - Connect builds a client from a redis:// URL or a bare host:port
  - RedisRateLimiter keeps a rolling per (user, station) window in a sorted set
  - RedisSnapshots stores the last computed status of each station

Redis is optional. Without it the server counts rate limits from the report
store and keeps snapshots in process memory.
*/
package cache
