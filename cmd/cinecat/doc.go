// Package main hosts the cinecat CLI entrypoint and command graph.
//
// Every command resolves configuration once, opens the catalog store (which
// locks the data directory for the lifetime of the command), restores the
// last saved snapshot, and saves again after any mutation. The load command
// drives an ingestion session against the configured shard source and
// renders progress in place when stdout is a terminal.
package main
