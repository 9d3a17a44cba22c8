package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cinecat/internal/catalog"
	"cinecat/internal/config"
	"cinecat/internal/fetcher"
	"cinecat/internal/logging"
	"cinecat/internal/progress"
	"cinecat/internal/store"
)

var (
	// ErrNoSession is returned by LoadMore when no fetcher is live.
	ErrNoSession = errors.New("no ingestion session running")
	// ErrLoadInFlight is returned by LoadMore while an earlier request is unanswered.
	ErrLoadInFlight = errors.New("load already in progress")
	// ErrExhausted is returned by LoadMore after every chunk has been loaded.
	ErrExhausted = errors.New("all chunks loaded")
)

// Persister saves and restores catalog snapshots.
type Persister interface {
	Save(ctx context.Context, snap catalog.Snapshot) (store.SaveResult, error)
	Load(ctx context.Context) (catalog.Snapshot, bool, error)
}

// Options tunes an Engine.
type Options struct {
	Fetch fetcher.Options
	// Yield is the pause between queue items.
	Yield time.Duration
}

// OptionsFromConfig maps configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Fetch: fetcher.Options{
			ChunkDir:        cfg.Source.ChunkDir,
			LegacyName:      cfg.Source.LegacyName,
			MaxShards:       cfg.Source.MaxShards,
			RequestTimeout:  cfg.RequestTimeout(),
			ShardPause:      cfg.ShardPause(),
			LegacyPause:     cfg.ShardPause(),
			LegacyBatchSize: cfg.Source.LegacyBatchSize,
			EventBuffer:     cfg.Ingest.EventBuffer,
		},
		Yield: cfg.IngestYield(),
	}
}

// Engine owns the catalog side of ingestion.
type Engine struct {
	catalog  *catalog.Catalog
	persist  Persister
	source   fetcher.Source
	opts     Options
	observer Observer
	base     *slog.Logger
	logger   *slog.Logger
	reporter *progress.Reporter

	progressMu sync.Mutex
	sampler    *logging.ProgressSampler

	mu      sync.Mutex
	session *session
}

type session struct {
	id      string
	logger  *slog.Logger
	fetcher *fetcher.Fetcher
	queue   *Queue
	cancel  context.CancelFunc
	group   *errgroup.Group

	// guarded by Engine.mu
	loading   bool
	exhausted bool
	ended     bool
}

// NewEngine wires an engine. A nil observer discards notifications.
func NewEngine(cat *catalog.Catalog, persist Persister, source fetcher.Source, opts Options, observer Observer, logger *slog.Logger) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Engine{
		catalog:  cat,
		persist:  persist,
		source:   source,
		opts:     opts,
		observer: observer,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		reporter: progress.NewReporter(),
		sampler:  logging.NewProgressSampler(10),
	}
}

// Catalog returns the catalog the engine merges into.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Start tears down any running session and begins a new one from shard 1.
// It returns the session identifier.
func (e *Engine) Start(ctx context.Context) (string, error) {
	e.mu.Lock()
	prior := e.session
	e.session = nil
	e.mu.Unlock()
	if prior != nil {
		prior.stop()
		prior.logger.Info("ingestion session replaced")
	}

	e.reporter.Reset()
	e.progressMu.Lock()
	e.sampler.Reset()
	e.progressMu.Unlock()

	id := uuid.NewString()
	sctx, cancel := context.WithCancel(logging.WithSessionID(ctx, id))
	logger := logging.WithContext(sctx, e.logger)
	s := &session{
		id:      id,
		logger:  logger,
		fetcher: fetcher.New(e.source, e.opts.Fetch, logging.WithContext(sctx, e.base)),
		queue:   NewQueue(),
		cancel:  cancel,
		// the initial shard counts as the first load; its done opens the gate
		loading: true,
	}

	group, gctx := errgroup.WithContext(sctx)
	group.Go(func() error {
		return s.fetcher.Run(gctx)
	})
	group.Go(func() error {
		e.dispatch(s)
		return nil
	})
	group.Go(func() error {
		s.queue.Run(gctx, e.opts.Yield, func(ctx context.Context, item Item) {
			e.handle(ctx, s, item)
		})
		return nil
	})
	s.group = group

	e.mu.Lock()
	e.session = s
	e.mu.Unlock()

	if err := s.fetcher.Start(); err != nil {
		e.endSession(s)
		s.stop()
		return "", fmt.Errorf("start fetcher: %w", err)
	}
	logger.Info("ingestion session started")
	return id, nil
}

// LoadMore asks the live fetcher for its next chunk. At most one request is
// in flight, the initial shard included; the gate clears when the chunk, a
// done, or an error is handled.
func (e *Engine) LoadMore() error {
	e.mu.Lock()
	s := e.session
	switch {
	case s == nil || s.ended:
		e.mu.Unlock()
		return ErrNoSession
	case s.exhausted:
		e.mu.Unlock()
		return ErrExhausted
	case s.loading:
		e.mu.Unlock()
		return ErrLoadInFlight
	}
	s.loading = true
	e.mu.Unlock()

	if err := s.fetcher.LoadNextChunk(); err != nil {
		e.mu.Lock()
		s.loading = false
		e.mu.Unlock()
		if errors.Is(err, fetcher.ErrTerminated) {
			return ErrNoSession
		}
		return err
	}
	return nil
}

// Wait blocks until the current session has fully wound down (all chunks
// loaded, fallback, or error) or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save persists the catalog now. Failures are also reported to the observer.
func (e *Engine) Save(ctx context.Context) (store.SaveResult, error) {
	return e.save(ctx, e.logger)
}

// Close stops the running session, if any.
func (e *Engine) Close() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()
	if s != nil {
		s.stop()
		s.logger.Debug("ingestion session closed")
	}
}

func (s *session) stop() {
	s.fetcher.Terminate()
	s.cancel()
	_ = s.group.Wait()
}

// dispatch forwards fetcher events to the queue in arrival order. Progress
// is reported immediately since it does not touch the catalog.
func (e *Engine) dispatch(s *session) {
	defer s.queue.Close()
	for ev := range s.fetcher.Events() {
		switch ev.Type {
		case fetcher.EventProgress:
			e.report(s, func() progress.Update { return e.reporter.Fetched(ev.Percent, ev.Text) })
		case fetcher.EventData:
			e.reporter.Queued(len(ev.Records))
			s.queue.Push(Item{Kind: ItemData, Records: ev.Records, Schema: ev.Schema, FirstBatch: ev.FirstBatch})
		case fetcher.EventSettings:
			s.queue.Push(Item{Kind: ItemSettings, Settings: ev.Settings})
		case fetcher.EventChunkLoaded:
			s.queue.Push(Item{Kind: ItemChunkLoaded, ChunkNumber: ev.ChunkNumber})
		case fetcher.EventDone:
			s.queue.Push(Item{Kind: ItemDone, AllChunksLoaded: ev.AllChunksLoaded})
		case fetcher.EventFallback:
			s.queue.Push(Item{Kind: ItemFallback})
		case fetcher.EventError:
			s.queue.Push(Item{Kind: ItemError, Err: ev.Err})
		}
	}
}

func (e *Engine) handle(ctx context.Context, s *session, item Item) {
	switch item.Kind {
	case ItemData:
		result := e.catalog.Ingest(item.Records, item.Schema)
		s.logger.Debug("batch merged",
			logging.Int("added", result.Added),
			logging.Int("duplicate", result.Duplicate),
			logging.Bool("first_batch", item.FirstBatch),
			logging.Int("pending", s.queue.Len()),
			logging.String("schema", item.Schema.String()),
		)
		e.observer.Batch(item.FirstBatch, result)
		e.report(s, func() progress.Update { return e.reporter.Merged(len(item.Records)) })

	case ItemSettings:
		e.catalog.MergeSettings(item.Settings)

	case ItemChunkLoaded:
		e.clearLoading(s, false)
		_, _ = e.save(ctx, s.logger)
		s.logger.Info("chunk loaded", logging.Int(logging.FieldShard, item.ChunkNumber), logging.Int("records", e.catalog.Len()))
		e.observer.ChunkLoaded(item.ChunkNumber)

	case ItemDone:
		e.clearLoading(s, item.AllChunksLoaded)
		_, _ = e.save(ctx, s.logger)
		text := "Initial data loaded"
		if item.AllChunksLoaded {
			text = "All data loaded"
		}
		e.report(s, func() progress.Update { return e.reporter.Complete(text) })
		s.logger.Info("ingestion step finished",
			logging.Bool("all_chunks_loaded", item.AllChunksLoaded),
			logging.Int("records", e.catalog.Len()),
		)
		e.observer.Done(item.AllChunksLoaded)
		if item.AllChunksLoaded {
			e.finish(s)
		}

	case ItemFallback:
		restored := e.restore(ctx, s)
		e.clearLoading(s, true)
		e.report(s, func() progress.Update { return e.reporter.Complete("Loaded local snapshot") })
		e.observer.Fallback(restored)
		e.observer.Done(true)
		e.finish(s)

	case ItemError:
		e.clearLoading(s, false)
		logging.ErrorWithContext(s.logger, "ingestion session failed", "fetch_failed",
			logging.Error(item.Err),
			logging.String(logging.FieldErrorHint, "check the source data, then start a new load"),
		)
		e.endSession(s)
		e.observer.Failed(item.Err)
		e.finish(s)
	}
}

// restore replaces the catalog with the persisted snapshot, if any.
func (e *Engine) restore(ctx context.Context, s *session) int {
	snap, ok, err := e.persist.Load(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "local snapshot unreadable", "fallback_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalog keeps its in-memory contents"),
			logging.String(logging.FieldErrorHint, "run 'cinecat clear' to discard the stored snapshot"),
		)
		e.observer.Failed(err)
		return 0
	}
	if !ok {
		s.logger.Info("no remote data and no local snapshot")
		return 0
	}
	e.catalog.Replace(snap)
	s.logger.Info("local snapshot restored", logging.Int("records", len(snap.Records)))
	return len(snap.Records)
}

func (e *Engine) save(ctx context.Context, logger *slog.Logger) (store.SaveResult, error) {
	result, err := e.persist.Save(ctx, e.catalog.Snapshot())
	if err != nil {
		logging.WarnWithContext(logger, "catalog save failed", "save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "changes are kept in memory only"),
			logging.String(logging.FieldErrorHint, "run 'cinecat save' to retry"),
		)
		e.observer.SaveFailed(err)
		return store.SaveResult{}, err
	}
	return result, nil
}

// report computes and delivers an update under one lock so observers see
// percentages in the order they were produced.
func (e *Engine) report(s *session, next func() progress.Update) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	update := next()
	if e.sampler.ShouldLog(update.Percent, string(update.Phase)) {
		s.logger.Debug("progress",
			logging.Float64("percent", update.Percent),
			logging.String("phase", string(update.Phase)),
			logging.String("text", update.Text),
		)
	}
	e.observer.Progress(update)
}

func (e *Engine) clearLoading(s *session, exhausted bool) {
	e.mu.Lock()
	s.loading = false
	if exhausted {
		s.exhausted = true
	}
	e.mu.Unlock()
}

func (e *Engine) endSession(s *session) {
	e.mu.Lock()
	s.ended = true
	s.loading = false
	e.mu.Unlock()
}

// finish terminates the fetcher once the session has nothing left to load.
// The queue drains whatever was already emitted and then the session winds
// down on its own.
func (e *Engine) finish(s *session) {
	s.fetcher.Terminate()
}
