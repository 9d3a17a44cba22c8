package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cinecat/internal/failure"
	"cinecat/internal/logging"
	"cinecat/internal/shard"
)

// fetchCeiling is the top of the progress range owned by retrieval; merging
// owns the rest.
const fetchCeiling = 50.0

// ErrTerminated is returned when a command is sent to a fetcher that has
// been torn down.
var ErrTerminated = errors.New("fetcher terminated")

// Options tunes retrieval. Zero values take the defaults noted per field.
type Options struct {
	ChunkDir        string        // "database_chunks"
	LegacyName      string        // "app_database.json"
	MaxShards       int           // 20
	RequestTimeout  time.Duration // 5s
	ShardPause      time.Duration // none
	LegacyPause     time.Duration // none
	LegacyBatchSize int           // 500
	EventBuffer     int           // 64
}

func (o Options) withDefaults() Options {
	if o.ChunkDir == "" {
		o.ChunkDir = "database_chunks"
	}
	if o.LegacyName == "" {
		o.LegacyName = shard.LegacyName
	}
	if o.MaxShards <= 0 {
		o.MaxShards = 20
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.LegacyBatchSize <= 0 {
		o.LegacyBatchSize = 500
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	return o
}

type command int

const (
	cmdStart command = iota
	cmdLoadNext
)

func (c command) String() string {
	if c == cmdStart {
		return "start"
	}
	return "loadNextChunk"
}

// Fetcher is the background shard loader. Create one with New, run it with
// Run on its own goroutine, and stop it with Terminate.
type Fetcher struct {
	source Source
	opts   Options
	logger *slog.Logger

	commands chan command
	events   chan Event
	stop     chan struct{}
	exited   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool

	// owned by the Run goroutine
	cursor    int
	terminal  bool
	exhausted bool
}

// New constructs an idle fetcher.
func New(source Source, opts Options, logger *slog.Logger) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		source:   source,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "fetcher"),
		commands: make(chan command, 8),
		events:   make(chan Event, opts.EventBuffer),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
		cursor:   2,
	}
}

// Events returns the ordered event stream. It is closed when Run returns.
func (f *Fetcher) Events() <-chan Event {
	return f.events
}

// Start asks the fetcher to begin a session from shard 1.
func (f *Fetcher) Start() error {
	return f.send(cmdStart)
}

// LoadNextChunk asks the fetcher for the shard at its cursor.
func (f *Fetcher) LoadNextChunk() error {
	return f.send(cmdLoadNext)
}

func (f *Fetcher) send(cmd command) error {
	select {
	case <-f.stop:
		return ErrTerminated
	default:
	}
	select {
	case f.commands <- cmd:
		return nil
	case <-f.stop:
		return ErrTerminated
	case <-f.exited:
		return ErrTerminated
	}
}

// Run processes commands until ctx is cancelled or Terminate is called.
func (f *Fetcher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.stopped || f.started {
		f.mu.Unlock()
		return ErrTerminated
	}
	f.started = true
	f.mu.Unlock()
	defer close(f.exited)
	defer close(f.events)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-f.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			return nil
		case cmd := <-f.commands:
			f.logger.Debug("command received", logging.String("command", cmd.String()))
			switch cmd {
			case cmdStart:
				f.handleStart(runCtx)
			case cmdLoadNext:
				f.handleLoadNext(runCtx)
			}
		}
	}
}

// Terminate stops the fetcher and waits for Run to return. Results of a
// retrieval still in flight are discarded. Terminate is idempotent.
func (f *Fetcher) Terminate() {
	f.mu.Lock()
	if !f.stopped {
		f.stopped = true
		close(f.stop)
		if !f.started {
			close(f.events)
		}
	}
	started := f.started
	f.mu.Unlock()
	if started {
		<-f.exited
	}
}

func (f *Fetcher) handleStart(ctx context.Context) {
	f.cursor = 2
	f.terminal = false
	f.exhausted = false

	f.progress(ctx, f.fetchShare(f.cursor-1), "Looking for initial data")
	doc, err := f.retrieve(ctx, shard.ChunkPath(f.opts.ChunkDir, 1))
	if ctx.Err() != nil {
		return
	}
	switch {
	case err == nil:
		f.emitInitial(ctx, doc)
	case errors.Is(err, failure.ErrMalformed):
		f.fail(ctx, err)
	default:
		f.logger.Info("initial shard unavailable, trying legacy catalog", logging.Error(err))
		f.loadLegacy(ctx)
	}
}

func (f *Fetcher) emitInitial(ctx context.Context, doc shard.Document) {
	records := doc.Records()
	f.logger.Info("initial shard retrieved", logging.Int(logging.FieldShard, 1), logging.Int("records", len(records)))
	if !f.emit(ctx, Event{Type: EventData, Records: records, Schema: doc.Schema(), FirstBatch: true}) {
		return
	}
	if doc.HasSettings() && !f.emit(ctx, Event{Type: EventSettings, Settings: *doc.Settings}) {
		return
	}
	if !f.progress(ctx, fetchCeiling, "Initial data loaded") {
		return
	}
	f.emit(ctx, Event{Type: EventDone, AllChunksLoaded: false})
}

func (f *Fetcher) loadLegacy(ctx context.Context) {
	// the legacy catalog is one more retrieval after the shard at the cursor
	if !f.progress(ctx, f.fetchShare(f.cursor-1), "No sharded data found, trying single catalog file") {
		return
	}
	if !f.pause(ctx, f.opts.LegacyPause) {
		return
	}
	base := f.fetchShare(f.cursor)
	if !f.progress(ctx, base, "Connecting to catalog file") {
		return
	}
	doc, err := f.retrieve(ctx, f.opts.LegacyName)
	if ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, failure.ErrMalformed):
		f.fail(ctx, err)
		return
	case err != nil:
		logging.WarnWithContext(f.logger, "no remote catalog available", "fetch_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalog restored from last local save"),
			logging.String(logging.FieldErrorHint, "check source.base_url or source.dir"))
		f.emit(ctx, Event{Type: EventFallback})
		return
	}

	records := doc.Records()
	schema := doc.Schema()
	size := f.opts.LegacyBatchSize
	batches := (len(records) + size - 1) / size
	f.logger.Info("legacy catalog retrieved", logging.Int("records", len(records)), logging.Int("batches", batches))
	if !f.progress(ctx, base, "Catalog received, sending records") {
		return
	}
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if !f.emit(ctx, Event{Type: EventData, Records: records[start:end], Schema: schema, FirstBatch: start == 0}) {
			return
		}
		sent := start/size + 1
		if !f.progress(ctx, base+(fetchCeiling-base)*float64(sent)/float64(batches), fmt.Sprintf("Sent batch %d of %d", sent, batches)) {
			return
		}
	}
	if doc.HasSettings() && !f.emit(ctx, Event{Type: EventSettings, Settings: *doc.Settings}) {
		return
	}
	f.emit(ctx, Event{Type: EventDone, AllChunksLoaded: true})
}

func (f *Fetcher) handleLoadNext(ctx context.Context) {
	if f.terminal {
		f.logger.Debug("ignoring loadNextChunk after error; start required")
		return
	}
	if f.exhausted || f.cursor > f.opts.MaxShards {
		f.exhausted = true
		f.emit(ctx, Event{Type: EventDone, AllChunksLoaded: true})
		return
	}
	if !f.pause(ctx, f.opts.ShardPause) {
		return
	}

	n := f.cursor
	doc, err := f.retrieve(ctx, shard.ChunkPath(f.opts.ChunkDir, n))
	if ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, failure.ErrMalformed):
		f.fail(ctx, fmt.Errorf("shard %d: %w", n, err))
		return
	case err != nil:
		f.logger.Info("no further shards", logging.Int(logging.FieldShard, n), logging.Error(err))
		f.exhausted = true
		f.emit(ctx, Event{Type: EventDone, AllChunksLoaded: true})
		return
	}

	records := doc.Records()
	f.logger.Info("shard retrieved", logging.Int(logging.FieldShard, n), logging.Int("records", len(records)))
	if !f.emit(ctx, Event{Type: EventData, Records: records, Schema: doc.Schema(), FirstBatch: false}) {
		return
	}
	f.cursor++
	f.emit(ctx, Event{Type: EventChunkLoaded, ChunkNumber: n})
}

func (f *Fetcher) retrieve(ctx context.Context, name string) (shard.Document, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.opts.RequestTimeout)
	defer cancel()

	data, err := f.source.Get(reqCtx, name)
	if err != nil {
		if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, failure.ErrTimeout) {
			err = failure.Wrap(failure.ErrTimeout, "fetcher", "get", name, err)
		}
		return shard.Document{}, err
	}
	doc, err := shard.Decode(data)
	if err != nil {
		return shard.Document{}, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

func (f *Fetcher) fail(ctx context.Context, err error) {
	f.terminal = true
	logging.ErrorWithContext(f.logger, "shard load failed", "fetch_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the shard file and start a new session"))
	f.emit(ctx, Event{Type: EventError, Err: err})
}

// fetchShare maps attempted retrievals onto the fetch half of the progress
// range, expecting at most MaxShards of them.
func (f *Fetcher) fetchShare(attempted int) float64 {
	return min(fetchCeiling*float64(attempted)/float64(f.opts.MaxShards), fetchCeiling)
}

func (f *Fetcher) progress(ctx context.Context, percent float64, text string) bool {
	return f.emit(ctx, Event{Type: EventProgress, Percent: percent, Text: text})
}

// emit delivers ev unless the fetcher is being torn down.
func (f *Fetcher) emit(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case f.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Fetcher) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
