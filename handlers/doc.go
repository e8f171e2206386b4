// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the fuelwatch API.

# Handler Types

Each handler is a struct holding the Service it calls:

  - ReportHandler: Report submission, lookup and listing
  - InteractionHandler: Confirm, dispute and flag
  - StatusHandler: Consensus status per station
  - UserHandler: Trust score, trust history and user stats
  - HealthHandler: Liveness and store reachability

Service is implemented by *engine.Engine:

	reportHandler := handlers.NewReportHandler(eng)

# Identity

Handlers read the caller from middleware.UserID. Routes that write
require it; see middleware.Identity and middleware.RequireUser.

# Errors

Service errors map onto status codes by sentinel:

	models.ErrValidation  → 400
	models.ErrNotFound    → 404
	models.ErrConflict    → 409
	models.ErrRateLimited → 429
	anything else         → 500 (logged)

Bodies are models.ErrorResponse. Validation messages name the offending
field, e.g. "station_id: must be a UUID".
*/
package handlers
