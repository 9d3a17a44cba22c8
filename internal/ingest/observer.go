package ingest

import (
	"cinecat/internal/catalog"
	"cinecat/internal/progress"
)

// Observer receives session notifications on the consumer goroutine, in the
// order the underlying events were processed. Implementations must not call
// back into the Engine synchronously.
type Observer interface {
	Progress(update progress.Update)
	// Batch reports a merged data batch. first asks for a full redisplay;
	// otherwise an incremental refresh is enough.
	Batch(first bool, result catalog.IngestResult)
	ChunkLoaded(n int)
	Done(allChunksLoaded bool)
	// Fallback reports that no remote data was found and the persisted
	// snapshot (restored records, possibly zero) was loaded instead.
	Fallback(restored int)
	Failed(err error)
	SaveFailed(err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) Progress(progress.Update) {}
func (NopObserver) Batch(bool, catalog.IngestResult) {}
func (NopObserver) ChunkLoaded(int) {}
func (NopObserver) Done(bool) {}
func (NopObserver) Fallback(int) {}
func (NopObserver) Failed(error) {}
func (NopObserver) SaveFailed(error) {}
