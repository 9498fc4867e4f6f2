// Package ledger records conversion runs, the shards they persisted, and how
// far into each source they got, so an interrupted run can resume without
// hand-tuned skip counts.
//
// The ledger is a single SQLite database opened with WAL journaling and a busy
// timeout. Writes retry briefly on SQLITE_BUSY. A schema version row guards
// against opening a database created by an incompatible build.
package ledger
