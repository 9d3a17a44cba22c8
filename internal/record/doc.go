// Package record defines the canonical catalog entry and the normalizer that
// maps heterogeneous shard record shapes onto it.
//
// Shards arrive in two layouts. The primary layout prefixes fields with
// "movies_" (or "series_"); the alternate layout uses bare names such as
// "name" and "href". Normalize consults a fixed, ordered rule table per
// schema and never fails: missing fields receive defaults.
package record
