// Package catalog owns the in-memory collection of canonical records and the
// catalog settings.
//
// Records keep insertion order for display while an id index and a link
// count enforce the two uniqueness rules: ids are unique everywhere, and links
// are unique unless a record lives in a duplicate-allowing category. Shard
// ingestion applies only the id rule; single adds and user imports apply both.
//
// A Catalog is safe for concurrent use. The ingestion consumer is the only
// writer during a session; CLI rendering reads through the query helpers.
package catalog
