// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package consensus derives a station's current status from its reports.

# Candidates

A report votes when its status is PENDING or CONFIRMED, its expiresAt is
after now, and it was reported within the lookback window. Expiry is
decided by the clock, not by whether the sweeper has run.

# Weight

	weight = max(trust, 1)/100 × 0.5^(age/halfLife) × (1 + k × (wc − wd)/(1 + wc + wd))

trust is the reporter's snapshot taken at submission, wc and wd are the
report's weighted confirmations and disputes, and k is the interaction
influence.

# Dimensions

Station status, fuel set and queue bucket are voted independently. In
each, the heaviest bucket wins; ties go to the most recent report, then to
the lexically smaller value. Confidence is the winner's weight share,
attenuated while fewer than minReportsForHighConfidence reports voted:

	confidence = 100 × share × min(1, votes/minReports)

The station's confidenceScore comes from the status dimension, falling back
to fuels and then queue when no report carried a status.

Evaluate is pure: candidates are sorted by (reportedAt, id) before any sum,
so the same reports always produce the same bits.
*/
package consensus
