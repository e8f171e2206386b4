// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package events publishes domain events to external collaborators.

Two events leave the engine:

	report.flagged          a FLAG interaction, for the moderation workflow
	station.status_changed  a recompute changed a station's status value

KafkaPublisher writes them with the report or station id as message key.
LoggingPublisher is the fallback when no broker is configured. Publishing
is best effort: failures are logged and never undo the mutation that
raised the event.
*/
package events
