// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store persists users, trust history, reports and interactions.

Two implementations satisfy Store:

  - MemoryStore: maps behind a RWMutex, used by default and in tests
  - SQLStore: database/sql on PostgreSQL (lib/pq) or SQLite (modernc.org/sqlite)

Report and user rows carry a version. UpdateReport, SaveInteraction and
ApplyTrustChange only write when the caller's version still matches and
return models.ErrConflict otherwise; callers re-read and retry.

Reports are never deleted.
*/
package store
