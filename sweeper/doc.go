// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sweeper runs the periodic maintenance pass.

Each Sweep:

 1. moves reports with expiresAt ≤ now to EXPIRED (re-sweeping is a no-op)
 2. disputes PENDING reports that still contradict a confident consensus
    after the grace period
 3. reconciles resolved reports whose trust settlement did not finish
 4. requests a recompute for every station it changed

Sweeps are single-flight: concurrent callers share the running pass.
Aggregation never depends on the sweep having run; it filters expired
reports by time on its own.
*/
package sweeper
