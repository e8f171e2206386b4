// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine wires the validator, ledger, aggregator, processor and
sweeper into the operations the transport layer calls:

	SubmitReport       validate, rate limit and store a report
	RecordInteraction  confirm, dispute or flag a report
	GetCurrentStatus   compute a station's consensus status from the store
	GetTrustScore      read a user's trust score

plus listing, history, stats and the cached last-good status.

Mutations never wait for aggregation. They ask the Scheduler for a
recompute, which is debounced per station, and a safety-net tick
recomputes every active station on a fixed interval. Each recompute stores
the status in the SnapshotCache and publishes station.status_changed when
the winning status moves.

Errors returned by the engine always match one of the models sentinels;
anything unexpected is logged and reported as ErrInternal.
*/
package engine
