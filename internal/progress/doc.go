// Package progress turns fetch and merge activity into a single monotonic
// 0-100% status line.
//
// The first half of the range tracks shard retrieval as reported by the
// fetcher; the second half tracks records merged against records queued.
// Within a session the reported percentage never decreases.
package progress
