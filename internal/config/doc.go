// Package config loads, normalizes, and validates scrapscii configuration data.
//
// It supplies repository defaults (the original dataset constants: widths
// 16..128, tables of 16 records, windows of 64 samples, runs of 256), expands
// user paths (including tilde shortcuts), reads TOML files, and honours the
// SCRAPSCII_SOURCE environment fallback.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
