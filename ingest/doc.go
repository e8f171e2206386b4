// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ingest validates report submissions and creates PENDING reports.

Submit runs every check before touching storage:

  - station id (UUID) and report type
  - location inside the service region
  - queue length, wait minutes and GPS accuracy ranges
  - photo count and absolute http(s) photo URLs
  - the value the report type carries (status, fuels or queue length)

It then takes the station lock, consults the RateLimiter (max reports per
user per station per rolling window), snapshots the reporter's trust from
the ledger and stores the report with expiresAt = reportedAt + TTL(type).
When the report is not written, the admitted slot is released again.

StoreRateLimiter counts reports in the store. cache.RedisRateLimiter keeps
the window in Redis for deployments running several instances.
*/
package ingest
