// Package shard persists batches of records as numbered parquet files.
//
// Shards are named by a zero-padded index (0000.parquet, 0001.parquet, ...)
// that only ever grows: a writer refuses to replace an existing file, and the
// Batcher continues from whatever starting index it is given so resumed runs
// append to the dataset instead of overwriting it. Files are written to a
// temporary name in the same directory and linked into place once complete,
// so readers never observe a partial shard.
package shard
