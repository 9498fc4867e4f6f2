// Package pipeline drives the conversion run: it reads samples from the
// source in windows, acquires and converts each one, assembles records, and
// hands them to the shard batcher.
//
// Every sample ends in exactly one outcome. Acquisition and conversion may
// run on several workers within a window, but outcomes are counted and
// records appended by a single goroutine in input order, so shard contents
// do not depend on worker scheduling. The run workspace is purged after each
// window once every worker has finished, whatever the outcomes were.
//
// Only four conditions end a run early: a shard that cannot be persisted, a
// ledger write failure, a source read failure, and context cancellation.
// Everything else is a per-sample rejection.
package pipeline
