// Package engine replays the pending mutation queue against the server.
//
// A drain walks a snapshot of the queue oldest first and sends every
// mutation exactly once. Successes are removed from the queue together with
// the shadow record they were standing in for; failures bump the retry
// counter and are evicted once it passes common.MaxRetries. One failing
// mutation never stops the rest of the cycle.
//
// At most one drain runs at a time across the whole queue: a drain requested
// while another is in progress returns immediately with a skipped Report.
// Drains start when the network monitor reports the server reachable again
// and whenever TriggerDrain is called. The engine itself never waits between
// attempts; pacing belongs to the caller (see package scheduler).
package engine
