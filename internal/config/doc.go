// Package config loads, normalizes, and validates cinecat configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CINECAT_SOURCE_URL. The Config type centralizes every knob the engine and
// CLI need: where shards are fetched from, how the catalog is persisted, how
// exports are partitioned, and how logs are written.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
