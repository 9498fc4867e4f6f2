// Package main hosts the scrapscii CLI.
//
// The Cobra command tree wires configuration, the resume ledger and the
// conversion pipeline together: convert streams image/caption samples into
// parquet shards of ASCII art, check runs the preflight checks, status and
// shards report on past runs, and cast converts JSON record dumps into shards.
// Heavy lifting lives in the internal packages; commands only assemble them.
package main
