// Package fetcher implements the background shard loader.
//
// A Fetcher is an actor: Run owns all of its state on a single goroutine,
// commands arrive on a buffered channel (Start, LoadNextChunk), and results
// leave as ordered Events. Shard 1 is loaded on Start; later shards are
// loaded one per LoadNextChunk until a shard is missing or the configured
// maximum is reached. When shard 1 is missing the legacy single-file catalog
// is tried, and when that is missing too the consumer is told to fall back
// to its last persisted snapshot.
//
// Retrieval goes through a Source. DirSource reads a local directory (for
// example an export directory); HTTPSource reads from a base URL.
package fetcher
