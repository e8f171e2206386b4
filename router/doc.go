// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the fuelwatch API.

	handler := router.NewRouter(eng, cfg)

# Endpoints

Health:

	GET /health

Reports (POST requires a caller identity):

	POST /reports                   - Submit a report (201)
	GET  /reports                   - List reports (station_id, reporter_id, status, report_type, limit, offset)
	GET  /reports/{id}              - Get one report
	POST /reports/{id}/interactions - Confirm, dispute or flag a report

Stations:

	GET /stations/{id}/status - Current consensus status (?cached=true for the last snapshot)

Users:

	GET /users/{id}/trust         - Trust score
	GET /users/{id}/trust/history - Trust score changes
	GET /users/{id}/stats         - Report counters and trust range

All API routes run behind request logging, identity resolution and CORS.
*/
package router
