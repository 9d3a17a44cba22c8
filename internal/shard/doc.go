// Package shard holds the JSON document shape shared by fetched shards,
// persisted storage chunks, and export files, along with the resource names
// the loader and exporter agree on.
package shard
