// Package stats accumulates per-outcome counters for a conversion run.
//
// Stats is a value type: every update returns a new Stats so a snapshot handed
// to a progress reporter or the status API can never change underneath it.
// Tracker wraps a Stats value behind a mutex for concurrent workers.
package stats
