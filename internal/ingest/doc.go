// Package ingest runs ingestion sessions: it drives a fetcher, serializes its
// events through a single-consumer queue, merges records into the catalog,
// persists after each completed step, and reports progress to an Observer.
//
// Only one fetcher is live at a time. Starting a new session tears the prior
// one down completely, so events from an abandoned fetcher never reach the
// catalog.
package ingest
