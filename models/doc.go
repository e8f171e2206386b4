// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateReportRequest: station_id, report_type, reported value, location, photos
  - InteractRequest: interaction_type
  - ReportQuery: listing filters (station, reporter, status, type, limit, offset)

# Response Types

  - CreateReportResponse: report, message
  - InteractResult: report, interaction, message
  - ReportList: reports, total, limit, offset
  - TrustScoreResponse: user_id, trust_score
  - ErrorResponse: error, message

# Domain Types

  - Report: a single user observation of a station, with its consensus counters
  - ReportInteraction: a confirm, dispute or flag on a report, one per user and report
  - User: trust score and activity counters
  - TrustScoreHistory: immutable record of one trust score change
  - StationCurrentStatus: derived consensus for a station
  - UserStats: reporting and trust summary

# Report Lifecycle

	PENDING → CONFIRMED   (weighted confirmations cross the threshold)
	PENDING → DISPUTED    (weighted disputes cross the threshold, or
	                       disagreement with consensus outlives the grace period)
	any     → EXPIRED     (expiry sweeper only)

# Errors

Every failure returned by the engine matches one of:

	ErrValidation   bad input, nothing written (see ValidationError)
	ErrRateLimited  too many reports for a station in the window
	ErrNotFound     unknown report or user
	ErrConflict     concurrent modification, safe to retry
	ErrInternal     storage or unexpected failure
*/
package models
