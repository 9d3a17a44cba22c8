package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"cinecat/internal/catalog"
	"cinecat/internal/config"
	"cinecat/internal/failure"
	"cinecat/internal/logging"
	"cinecat/internal/record"
	"cinecat/internal/shard"
)

// ErrLocked indicates another process holds the data directory.
var ErrLocked = errors.New("data directory locked")

// Options tunes a Store.
type Options struct {
	CeilingBytes  int
	ReservedBytes int
	// Defaults are the settings a loaded snapshot starts from before any
	// persisted settings are applied.
	Defaults   record.Settings
	Normalizer *record.Normalizer
	Now        func() time.Time
	Logger     *slog.Logger
}

// SaveResult describes a completed save.
type SaveResult struct {
	Records int
	Chunks  int
	Bytes   int
}

// Store persists catalog snapshots on a Backend.
type Store struct {
	backend    Backend
	part       Partitioner
	defaults   record.Settings
	normalizer *record.Normalizer
	now        func() time.Time
	logger     *slog.Logger
	lock       *flock.Flock
}

// New wraps backend. The store owns backend and closes it on Close.
func New(backend Backend, opts Options) *Store {
	if opts.Normalizer == nil {
		opts.Normalizer = record.NewNormalizer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Store{
		backend:    backend,
		part:       Partitioner{Ceiling: opts.CeilingBytes, Reserved: opts.ReservedBytes},
		defaults:   opts.Defaults,
		normalizer: opts.Normalizer,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

// Open locks the data directory and opens the configured backend.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another cinecat process is using %s", ErrLocked, cfg.Paths.DataDir)
	}

	var backend Backend
	switch cfg.Storage.Backend {
	case config.BackendBolt:
		backend, err = OpenBolt(cfg.StoragePath())
	default:
		backend, err = OpenSQLite(cfg.StoragePath())
	}
	if err != nil {
		_ = lock.Unlock()
		return nil, failure.Wrap(failure.ErrStorage, "store", "open", cfg.Storage.Backend, err)
	}

	st := New(backend, Options{
		CeilingBytes:  cfg.Storage.CeilingBytes,
		ReservedBytes: cfg.Storage.ReservedBytes,
		Defaults:      cfg.CatalogSettings(),
		Logger:        logging.NewComponentLogger(logger, "store"),
	})
	st.lock = lock
	st.logger.Debug("store opened",
		logging.String("backend", cfg.Storage.Backend),
		logging.String("path", cfg.StoragePath()),
	)
	return st, nil
}

// Close closes the backend and releases the data directory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.backend != nil {
		err = s.backend.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("release lock: %w", unlockErr)
		}
	}
	return err
}

// Save writes snap. A snapshot whose encoding is below the ceiling is stored
// as one unit; otherwise it is partitioned into chunks. Keys left over from a
// previous save are removed in the same write.
func (s *Store) Save(ctx context.Context, snap catalog.Snapshot) (SaveResult, error) {
	ctx = ensureContext(ctx)
	settings := snap.Settings
	lastSaved := shard.Timestamp(s.now())
	wires := record.ToWireAll(snap.Records)

	existing, err := s.chunkKeys(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	whole, err := shard.Encode(shard.Chunk{MoviesInfo: wires, Settings: &settings, LastSaved: lastSaved})
	if err != nil {
		return SaveResult{}, err
	}
	if len(whole) < s.part.Ceiling {
		deletes := []string{CountKey}
		for _, key := range existing {
			deletes = append(deletes, key)
		}
		if err := s.write(ctx, map[string][]byte{PrimaryKey: whole}, deletes); err != nil {
			return SaveResult{}, err
		}
		result := SaveResult{Records: len(wires), Chunks: 1, Bytes: len(whole)}
		s.logSaved(result)
		return result, nil
	}

	// Chunk numbers never exceed the record count, so measuring with that
	// bound over-estimates every chunk header.
	bound := len(wires)
	encode := func(group []record.Wire, first bool, number, total int) ([]byte, error) {
		c := shard.Chunk{MoviesInfo: group, LastSaved: lastSaved, ChunkNumber: number, TotalChunks: total}
		if first {
			c.Settings = &settings
		}
		return shard.Encode(c)
	}
	empty, err := encode(nil, true, bound, bound)
	if err != nil {
		return SaveResult{}, err
	}
	groups, err := s.part.Split(wires, len(empty), func(group []record.Wire, first bool) (int, error) {
		data, err := encode(group, first, bound, bound)
		return len(data), err
	})
	if err != nil {
		return SaveResult{}, err
	}

	total := len(groups)
	puts := make(map[string][]byte, total+1)
	result := SaveResult{Records: len(wires), Chunks: total}
	for i, group := range groups {
		data, err := encode(group, i == 0, i+1, total)
		if err != nil {
			return SaveResult{}, err
		}
		puts[ChunkKey(i+1)] = data
		result.Bytes += len(data)
	}
	puts[CountKey] = []byte(strconv.Itoa(total))

	var deletes []string
	for n, key := range existing {
		if n > total {
			deletes = append(deletes, key)
		}
	}
	if err := s.write(ctx, puts, deletes); err != nil {
		return SaveResult{}, err
	}
	s.logSaved(result)
	return result, nil
}

// Load reads the last saved snapshot. ok is false when nothing was saved.
func (s *Store) Load(ctx context.Context) (catalog.Snapshot, bool, error) {
	ctx = ensureContext(ctx)
	countRaw, partitioned, err := s.backend.Get(ctx, CountKey)
	if err != nil {
		return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load", "read chunk count", err)
	}

	if !partitioned {
		data, ok, err := s.backend.Get(ctx, PrimaryKey)
		if err != nil {
			return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load", "read snapshot", err)
		}
		if !ok {
			return catalog.Snapshot{}, false, nil
		}
		doc, err := shard.Decode(data)
		if err != nil {
			return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load", PrimaryKey, err)
		}
		return s.snapshot([]shard.Document{doc}), true, nil
	}

	total, err := strconv.Atoi(strings.TrimSpace(string(countRaw)))
	if err != nil || total < 1 {
		return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load",
			fmt.Sprintf("invalid chunk count %q", countRaw), err)
	}
	docs := make([]shard.Document, 0, total)
	for n := 1; n <= total; n++ {
		key := ChunkKey(n)
		data, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load", key, err)
		}
		if !ok {
			return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load",
				fmt.Sprintf("chunk %d of %d missing", n, total), nil)
		}
		doc, err := shard.Decode(data)
		if err != nil {
			return catalog.Snapshot{}, false, failure.Wrap(failure.ErrStorage, "store", "load", key, err)
		}
		docs = append(docs, doc)
	}
	return s.snapshot(docs), true, nil
}

// Clear removes every persisted unit.
func (s *Store) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)
	existing, err := s.chunkKeys(ctx)
	if err != nil {
		return err
	}
	deletes := []string{PrimaryKey, CountKey}
	for _, key := range existing {
		deletes = append(deletes, key)
	}
	return s.write(ctx, nil, deletes)
}

func (s *Store) snapshot(docs []shard.Document) catalog.Snapshot {
	snap := catalog.Snapshot{Settings: s.defaults}
	settled := false
	for _, doc := range docs {
		if !settled && doc.HasSettings() {
			snap.Settings = snap.Settings.Apply(*doc.Settings)
			settled = true
		}
		schema := doc.Schema()
		for _, raw := range doc.Records() {
			snap.Records = append(snap.Records, s.normalizer.Normalize(raw, schema))
		}
	}
	return snap
}

// chunkKeys maps chunk numbers >= 2 to their stored keys.
func (s *Store) chunkKeys(ctx context.Context) (map[int]string, error) {
	keys, err := s.backend.Keys(ctx, ChunkKeyPrefix)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStorage, "store", "list chunks", "", err)
	}
	out := make(map[int]string, len(keys))
	for _, key := range keys {
		if n, ok := chunkIndex(key); ok {
			out[n] = key
		}
	}
	return out, nil
}

func (s *Store) write(ctx context.Context, puts map[string][]byte, deletes []string) error {
	if err := s.backend.Write(ctx, puts, deletes); err != nil {
		return failure.Wrap(failure.ErrStorage, "store", "write", "", err)
	}
	return nil
}

func (s *Store) logSaved(result SaveResult) {
	s.logger.Debug("catalog saved",
		logging.Int("records", result.Records),
		logging.Int("chunks", result.Chunks),
		logging.Int("bytes", result.Bytes),
	)
}
