package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cinecat/internal/catalog"
	"cinecat/internal/config"
	"cinecat/internal/failure"
	"cinecat/internal/fetcher"
	"cinecat/internal/ingest"
	"cinecat/internal/progress"
	"cinecat/internal/record"
	"cinecat/internal/shard"
	"cinecat/internal/store"
	"cinecat/internal/testsupport"
)

const waitTimeout = 5 * time.Second

type recorder struct {
	mu       sync.Mutex
	percents []float64
	batches  []bool
	restored []int
	failed   []error
	saveErrs []error

	done   chan bool
	chunks chan int
}

func newRecorder() *recorder {
	return &recorder{done: make(chan bool, 16), chunks: make(chan int, 16)}
}

func (r *recorder) Progress(u progress.Update) {
	r.mu.Lock()
	r.percents = append(r.percents, u.Percent)
	r.mu.Unlock()
}

func (r *recorder) Batch(first bool, _ catalog.IngestResult) {
	r.mu.Lock()
	r.batches = append(r.batches, first)
	r.mu.Unlock()
}

func (r *recorder) ChunkLoaded(n int) { r.chunks <- n }

func (r *recorder) Done(all bool) { r.done <- all }

func (r *recorder) Fallback(n int) {
	r.mu.Lock()
	r.restored = append(r.restored, n)
	r.mu.Unlock()
}

func (r *recorder) Failed(err error) {
	r.mu.Lock()
	r.failed = append(r.failed, err)
	r.mu.Unlock()
	r.done <- false
}

func (r *recorder) SaveFailed(err error) {
	r.mu.Lock()
	r.saveErrs = append(r.saveErrs, err)
	r.mu.Unlock()
}

func (r *recorder) waitDone(t *testing.T) bool {
	t.Helper()
	select {
	case all := <-r.done:
		return all
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for done")
		return false
	}
}

func (r *recorder) waitChunk(t *testing.T) int {
	t.Helper()
	select {
	case n := <-r.chunks:
		return n
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for chunk")
		return 0
	}
}

func (r *recorder) snapshot() ([]float64, []bool, []int, []error, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.percents...), append([]bool(nil), r.batches...),
		append([]int(nil), r.restored...), append([]error(nil), r.failed...), append([]error(nil), r.saveErrs...)
}

func newEngine(t *testing.T, cfg *config.Config, persist ingest.Persister, source fetcher.Source, obs ingest.Observer) *ingest.Engine {
	t.Helper()
	if source == nil {
		source = fetcher.DirSource{Root: cfg.Source.Dir}
	}
	cat := catalog.New(cfg.CatalogSettings(), nil)
	engine := ingest.NewEngine(cat, persist, source, ingest.OptionsFromConfig(cfg), obs, nil)
	t.Cleanup(engine.Close)
	return engine
}

func TestSessionLoadsShardsOnDemand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteShard(t, cfg, 1, map[string]any{
		"movies_info": testsupport.Records("one", 3, "main"),
		"settings":    map[string]any{"loginPageEnabled": false},
	})
	testsupport.WriteShard(t, cfg, 2, map[string]any{"movies_info": testsupport.Records("two", 2, "r1")})

	rec := newRecorder()
	engine := newEngine(t, cfg, st, nil, rec)
	ctx := context.Background()

	if err := engine.LoadMore(); !errors.Is(err, ingest.ErrNoSession) {
		t.Fatalf("expected ErrNoSession before start, got %v", err)
	}
	if _, err := engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if all := rec.waitDone(t); all {
		t.Fatal("initial load should leave more chunks available")
	}
	if engine.Catalog().Len() != 3 {
		t.Fatalf("expected 3 records after shard 1, got %d", engine.Catalog().Len())
	}
	if engine.Catalog().Settings().LoginRequired {
		t.Fatal("shard settings should have been merged")
	}
	saved, ok, err := st.Load(ctx)
	if err != nil || !ok || len(saved.Records) != 3 {
		t.Fatalf("expected persisted snapshot of 3 records, ok=%v err=%v", ok, err)
	}

	if err := engine.LoadMore(); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if n := rec.waitChunk(t); n != 2 {
		t.Fatalf("expected chunk 2, got %d", n)
	}
	if engine.Catalog().Len() != 5 {
		t.Fatalf("expected 5 records after shard 2, got %d", engine.Catalog().Len())
	}

	if err := engine.LoadMore(); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if all := rec.waitDone(t); !all {
		t.Fatal("expected all chunks loaded")
	}
	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	if err := engine.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := engine.LoadMore(); !errors.Is(err, ingest.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	percents, batches, _, failed, saveErrs := rec.snapshot()
	if len(failed) != 0 || len(saveErrs) != 0 {
		t.Fatalf("unexpected failures: %v %v", failed, saveErrs)
	}
	if len(batches) != 2 || !batches[0] || batches[1] {
		t.Fatalf("unexpected batch flags: %v", batches)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress decreased: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Fatalf("expected progress to end at 100, got %v", percents)
	}
}

func TestLegacyLoadIsBatched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteLegacy(t, cfg, map[string]any{"movies_info": testsupport.Records("legacy", 1200, "main")})

	rec := newRecorder()
	engine := newEngine(t, cfg, st, nil, rec)
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if all := rec.waitDone(t); !all {
		t.Fatal("legacy load should finish the session")
	}
	if engine.Catalog().Len() != 1200 {
		t.Fatalf("expected 1200 records, got %d", engine.Catalog().Len())
	}
	_, batches, _, _, _ := rec.snapshot()
	want := []bool{true, false, false}
	if len(batches) != len(want) {
		t.Fatalf("expected %d batches, got %v", len(want), batches)
	}
	for i := range want {
		if batches[i] != want[i] {
			t.Fatalf("unexpected batch flags: %v", batches)
		}
	}
}

func TestFallbackRestoresPersistedSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stored := catalog.Snapshot{
		Records: []record.Record{
			{ID: "kept-1", Title: "Kept", Link: "https://kept.example.com/1", Category: "main", Site: "kept.example.com", DateAdded: time.Now().UTC()},
			{ID: "kept-2", Title: "Kept", Link: "https://kept.example.com/2", Category: "main", Site: "kept.example.com", DateAdded: time.Now().UTC()},
		},
		Settings: record.Settings{FullPasscode: "stored"},
	}
	if _, err := st.Save(ctx, stored); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := newRecorder()
	engine := newEngine(t, cfg, st, nil, rec)
	if _, err := engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if all := rec.waitDone(t); !all {
		t.Fatal("fallback should finish the session")
	}
	_, _, restored, failed, _ := rec.snapshot()
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if len(restored) != 1 || restored[0] != 2 {
		t.Fatalf("expected two restored records, got %v", restored)
	}
	if _, ok := engine.Catalog().Get("kept-2"); !ok {
		t.Fatal("restored record missing from catalog")
	}
	if engine.Catalog().Settings().FullPasscode != "stored" {
		t.Fatalf("restored settings not applied: %+v", engine.Catalog().Settings())
	}
}

func TestMalformedShardEndsSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, cfg.Source.ChunkDir, shard.ChunkName(1)), []byte("<html>oops</html>"))

	rec := newRecorder()
	engine := newEngine(t, cfg, st, nil, rec)
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.waitDone(t)
	_, _, _, failed, _ := rec.snapshot()
	if len(failed) != 1 || !errors.Is(failed[0], failure.ErrMalformed) {
		t.Fatalf("expected one malformed failure, got %v", failed)
	}
	if err := engine.LoadMore(); !errors.Is(err, ingest.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after failure, got %v", err)
	}
}

// gatedSource blocks retrieval of one resource until released.
type gatedSource struct {
	inner fetcher.Source
	name  string
	gate  chan struct{}
}

func (g gatedSource) Get(ctx context.Context, name string) ([]byte, error) {
	if name == g.name {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Get(ctx, name)
}

func TestLoadMoreIsGated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteShard(t, cfg, 1, map[string]any{"movies_info": testsupport.Records("one", 1, "main")})
	testsupport.WriteShard(t, cfg, 2, map[string]any{"movies_info": testsupport.Records("two", 1, "main")})

	source := gatedSource{
		inner: fetcher.DirSource{Root: cfg.Source.Dir},
		name:  shard.ChunkPath(cfg.Source.ChunkDir, 2),
		gate:  make(chan struct{}),
	}
	rec := newRecorder()
	engine := newEngine(t, cfg, st, source, rec)
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.waitDone(t)

	if err := engine.LoadMore(); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if err := engine.LoadMore(); !errors.Is(err, ingest.ErrLoadInFlight) {
		t.Fatalf("expected ErrLoadInFlight, got %v", err)
	}
	close(source.gate)
	if n := rec.waitChunk(t); n != 2 {
		t.Fatalf("expected chunk 2, got %d", n)
	}
	if engine.Catalog().Len() != 2 {
		t.Fatalf("expected 2 records, got %d", engine.Catalog().Len())
	}
	// shard 3 is missing, so the gate reopening is observed as a done(true)
	if err := engine.LoadMore(); err != nil {
		t.Fatalf("gate should clear after chunkLoaded: %v", err)
	}
	if all := rec.waitDone(t); !all {
		t.Fatal("expected all chunks loaded after the missing shard")
	}
}

func TestLoadMoreWaitsForInitialShard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteShard(t, cfg, 1, map[string]any{"movies_info": testsupport.Records("one", 1, "main")})
	testsupport.WriteShard(t, cfg, 2, map[string]any{"movies_info": testsupport.Records("two", 1, "main")})

	source := gatedSource{
		inner: fetcher.DirSource{Root: cfg.Source.Dir},
		name:  shard.ChunkPath(cfg.Source.ChunkDir, 1),
		gate:  make(chan struct{}),
	}
	rec := newRecorder()
	engine := newEngine(t, cfg, st, source, rec)
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := engine.LoadMore(); !errors.Is(err, ingest.ErrLoadInFlight) {
		t.Fatalf("LoadMore before the initial done: expected ErrLoadInFlight, got %v", err)
	}
	close(source.gate)
	if all := rec.waitDone(t); all {
		t.Fatal("initial done should not report all chunks loaded")
	}
	if err := engine.LoadMore(); err != nil {
		t.Fatalf("LoadMore after the initial done: %v", err)
	}
	if n := rec.waitChunk(t); n != 2 {
		t.Fatalf("expected chunk 2, got %d", n)
	}
	if engine.Catalog().Len() != 2 {
		t.Fatalf("expected 2 records, got %d", engine.Catalog().Len())
	}
}

func TestStringTypedSettingsDoNotEndSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteShard(t, cfg, 1, map[string]any{
		"movies_info": testsupport.Records("one", 2, "main"),
		"settings":    map[string]any{"loginPageEnabled": "false"},
	})

	rec := newRecorder()
	engine := newEngine(t, cfg, st, nil, rec)
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if all := rec.waitDone(t); all {
		t.Fatal("initial load should leave more chunks available")
	}
	if _, _, _, failed, _ := rec.snapshot(); len(failed) != 0 {
		t.Fatalf("session should not fail, got %v", failed)
	}
	if engine.Catalog().Len() != 2 || engine.Catalog().Settings().LoginRequired {
		t.Fatalf("expected 2 records and login disabled, got %d records settings=%+v",
			engine.Catalog().Len(), engine.Catalog().Settings())
	}
}

type failingPersister struct{}

func (failingPersister) Save(context.Context, catalog.Snapshot) (store.SaveResult, error) {
	return store.SaveResult{}, failure.Wrap(failure.ErrStorage, "test", "save", "disk full", nil)
}

func (failingPersister) Load(context.Context) (catalog.Snapshot, bool, error) {
	return catalog.Snapshot{}, false, nil
}

func TestSaveFailureKeepsCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteShard(t, cfg, 1, map[string]any{"movies_info": testsupport.Records("one", 4, "main")})

	rec := newRecorder()
	engine := newEngine(t, cfg, failingPersister{}, nil, rec)
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.waitDone(t)

	_, _, _, _, saveErrs := rec.snapshot()
	if len(saveErrs) != 1 || !errors.Is(saveErrs[0], failure.ErrStorage) {
		t.Fatalf("expected one storage failure, got %v", saveErrs)
	}
	if engine.Catalog().Len() != 4 {
		t.Fatalf("catalog should keep merged records, got %d", engine.Catalog().Len())
	}
	if _, err := engine.Save(context.Background()); err == nil {
		t.Fatal("explicit save should report the failure")
	}
}

func TestStartReplacesRunningSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteShard(t, cfg, 1, map[string]any{"movies_info": testsupport.Records("one", 2, "main")})

	rec := newRecorder()
	engine := newEngine(t, cfg, st, nil, rec)
	ctx := context.Background()
	first, err := engine.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.waitDone(t)
	second, err := engine.Start(ctx)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh session id")
	}
	rec.waitDone(t)
	if engine.Catalog().Len() != 2 {
		t.Fatalf("re-running a session must not duplicate records, got %d", engine.Catalog().Len())
	}
}
