package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Backend is a key/value store with atomic multi-key writes.
type Backend interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Keys lists every key beginning with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Write applies all puts and deletes in a single transaction.
	Write(ctx context.Context, puts map[string][]byte, deletes []string) error
	Close() error
}

const (
	// PrimaryKey holds a single-unit snapshot or chunk 1 of a partitioned one.
	PrimaryKey = "app_database"
	// ChunkKeyPrefix prefixes chunk keys 2..N.
	ChunkKeyPrefix = "app_database_chunk"
	// CountKey holds the decimal chunk count of a partitioned snapshot.
	CountKey = "app_database_chunks_count"
)

// ChunkKey returns the key of chunk n (1-based).
func ChunkKey(n int) string {
	if n <= 1 {
		return PrimaryKey
	}
	return fmt.Sprintf("%s%d", ChunkKeyPrefix, n)
}

// chunkIndex parses a chunk key produced by ChunkKey for n >= 2.
func chunkIndex(key string) (int, bool) {
	suffix, ok := strings.CutPrefix(key, ChunkKeyPrefix)
	if !ok || suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 2 {
		return 0, false
	}
	return n, true
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
