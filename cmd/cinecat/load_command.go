package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"cinecat/internal/catalog"
	"cinecat/internal/fetcher"
	"cinecat/internal/ingest"
	"cinecat/internal/progress"
)

type loadEventKind int

const (
	loadDone loadEventKind = iota
	loadChunk
	loadFailed
)

type loadEvent struct {
	kind  loadEventKind
	all   bool
	chunk int
	err   error
}

// loadObserver renders progress and hands step boundaries to the command.
type loadObserver struct {
	mu       sync.Mutex
	line     *progressLine
	errOut   io.Writer
	added    int
	dupes    int
	restored int
	fellBack bool
	events   chan loadEvent
}

func newLoadObserver(out, errOut io.Writer) *loadObserver {
	return &loadObserver{
		line:   newProgressLine(out),
		errOut: errOut,
		events: make(chan loadEvent, 64),
	}
}

func (o *loadObserver) Progress(u progress.Update) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.line.update(u)
}

func (o *loadObserver) Batch(_ bool, result catalog.IngestResult) {
	o.mu.Lock()
	o.added += result.Added
	o.dupes += result.Duplicate
	o.mu.Unlock()
}

func (o *loadObserver) ChunkLoaded(n int) {
	o.events <- loadEvent{kind: loadChunk, chunk: n}
}

func (o *loadObserver) Done(all bool) {
	o.events <- loadEvent{kind: loadDone, all: all}
}

func (o *loadObserver) Fallback(restored int) {
	o.mu.Lock()
	o.fellBack = true
	o.restored = restored
	o.mu.Unlock()
}

func (o *loadObserver) Failed(err error) {
	o.events <- loadEvent{kind: loadFailed, err: err}
}

func (o *loadObserver) SaveFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.line.finish()
	fmt.Fprintf(o.errOut, "warning: catalog not saved: %v\n", err)
}

func (o *loadObserver) wait(ctx context.Context) (loadEvent, error) {
	select {
	case ev := <-o.events:
		return ev, nil
	case <-ctx.Done():
		return loadEvent{}, ctx.Err()
	}
}

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var loadAll bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load catalog shards from the configured source",
		Long: "Load retrieves the initial shard (or the legacy single file) from the configured\n" +
			"source and merges it into the catalog. With --all, the remaining shards are\n" +
			"requested one at a time until none are left. When no remote data exists the\n" +
			"last saved snapshot is kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				source, err := fetcher.NewSource(ws.cfg.Source.BaseURL, ws.cfg.Source.Dir)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				obs := newLoadObserver(out, cmd.ErrOrStderr())
				engine := ingest.NewEngine(ws.catalog, ws.store, source, ingest.OptionsFromConfig(ws.cfg), obs, ws.logger)
				defer engine.Close()

				runCtx := commandCtx(cmd)
				before := ws.catalog.Len()
				if _, err := engine.Start(runCtx); err != nil {
					return err
				}
				all, err := runLoad(runCtx, engine, obs, loadAll)
				obs.line.finish()
				if err != nil {
					return err
				}

				obs.mu.Lock()
				fellBack, restored := obs.fellBack, obs.restored
				added, dupes := obs.added, obs.dupes
				obs.mu.Unlock()

				if fellBack {
					fmt.Fprintf(out, "No remote data found; kept local snapshot (%d records)\n", restored)
					return nil
				}
				fmt.Fprintf(out, "Loaded %d new records (%d already present); catalog holds %d (was %d)\n",
					added, dupes, ws.catalog.Len(), before)
				if !all {
					fmt.Fprintln(out, "More shards may be available; run 'cinecat load --all' to fetch them")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&loadAll, "all", "a", false, "Keep loading shards until none remain")
	return cmd
}

// runLoad waits for the initial step and, when loadAll is set, keeps asking
// for the next chunk. It reports whether every chunk was loaded.
func runLoad(ctx context.Context, engine *ingest.Engine, obs *loadObserver, loadAll bool) (bool, error) {
	ev, err := obs.wait(ctx)
	if err != nil {
		return false, err
	}
	if ev.kind == loadFailed {
		return false, fmt.Errorf("load failed: %w", ev.err)
	}
	all := ev.all
	for loadAll && !all {
		if err := engine.LoadMore(); err != nil {
			if errors.Is(err, ingest.ErrExhausted) {
				return true, nil
			}
			return false, err
		}
		ev, err := obs.wait(ctx)
		if err != nil {
			return false, err
		}
		switch ev.kind {
		case loadFailed:
			return false, fmt.Errorf("load failed: %w", ev.err)
		case loadDone:
			all = ev.all
		}
	}
	return all, nil
}
