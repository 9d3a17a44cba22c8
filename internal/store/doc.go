// Package store persists catalog snapshots under a per-unit size ceiling and
// writes bulk shard exports.
//
// A snapshot small enough to fit in one unit is stored under the primary key.
// Larger snapshots are partitioned into numbered chunks plus a count key, all
// written in one atomic batch together with the deletion of any chunk keys
// left over from a previous, larger save. Two backends are provided: SQLite
// (the default) and bbolt.
//
// The exporter produces the database_chunks/app_databaseN.json layout that
// the fetcher reads back: an initial shard capped per category followed by
// size-bounded shards holding the remainder.
package store
