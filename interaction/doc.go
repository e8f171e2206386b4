// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package interaction applies confirm, dispute and flag actions to reports
and owns the report state machine.

	PENDING → CONFIRMED  weightedConfirmations ≥ confirmThreshold
	PENDING → DISPUTED   weightedDisputes ≥ disputeThreshold, or DisputeStale
	                     once disagreement with a confident consensus outlives
	                     the grace period

An interaction's weight is the interactor's trust / 100, bounded to
[minWeight, 1] and frozen at interaction time. Each user holds one live
interaction per report; a different type first retracts the old weight, so
CONFIRM then DISPUTE nets out exactly like a single DISPUTE. Repeating the
same type changes nothing.

FLAG carries no weight. It publishes a report.flagged event for moderation
and is accepted even on expired reports.

The first transition out of PENDING settles trust: the reporter gains
confirmReward × confidence or loses disputePenalty × disagreement share,
and every interactor whose live vote matches gains interactorReward.
Settlement entries are keyed by (user, reason, report) in the ledger, so
Reconcile can safely finish a settlement that failed halfway.

Writes for one station are serialized by the shared station lock and
version-checked in the store.
*/
package interaction
