package ingest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"cinecat/internal/record"
)

// ItemKind tags a queued item.
type ItemKind string

const (
	ItemData        ItemKind = "data"
	ItemSettings    ItemKind = "settings"
	ItemChunkLoaded ItemKind = "chunkLoaded"
	ItemDone        ItemKind = "done"
	ItemFallback    ItemKind = "fallback"
	ItemError       ItemKind = "error"
)

// Item is one unit of consumer-side work.
type Item struct {
	Kind ItemKind

	Records    []record.Raw
	Schema     record.Schema
	FirstBatch bool

	Settings        record.SettingsPatch
	ChunkNumber     int
	AllChunksLoaded bool
	Err             error
}

// Queue is an unbounded FIFO drained by exactly one Run call.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	closed bool
	wake   chan struct{}
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends item. It reports false once the queue is closed.
func (q *Queue) Push(item Item) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
	return true
}

// Close stops accepting items. Run returns after draining what is queued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len reports the number of items waiting to be handled.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() (Item, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false, q.closed
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return item, true, false
}

// Run hands items to handle one at a time in push order, pausing for yield
// after each. A zero yield only yields the processor. Run returns when the
// queue is closed and empty, or when ctx is done; items still queued at
// cancellation are dropped.
func (q *Queue) Run(ctx context.Context, yield time.Duration, handle func(context.Context, Item)) {
	for {
		item, ok, closed := q.pop()
		if !ok {
			if closed {
				return
			}
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		handle(ctx, item)

		if yield <= 0 {
			runtime.Gosched()
			continue
		}
		timer := time.NewTimer(yield)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
