// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package trust owns per-user trust scores and their append-only history.

Every change goes through Ledger.Adjust, which holds the user's key lock,
clamps the result to [0,100] and writes the new score and its history
entry in one store call. The latest history entry's NewScore always equals
the user's TrustScore.

Unknown users read as Policy.Baseline and are created on first adjustment.

	score, err := ledger.Adjust(ctx, userID, policy.ReportConfirmed(0.8), models.ReasonAccurateReport, reportID)

AdjustOnce makes report settlement idempotent: a second call for the same
user, reason and report writes nothing.
*/
package trust
