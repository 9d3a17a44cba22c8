package fetcher

import "cinecat/internal/record"

// EventType tags an Event.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventData        EventType = "data"
	EventSettings    EventType = "settings"
	EventChunkLoaded EventType = "chunkLoaded"
	EventDone        EventType = "done"
	EventFallback    EventType = "fallback"
	EventError       EventType = "error"
)

// Event is one message from the fetcher to its consumer. Only the fields
// relevant to Type are set.
type Event struct {
	Type EventType

	// progress: Percent is in the 0-50 fetch range.
	Percent float64
	Text    string

	// data
	Records    []record.Raw
	Schema     record.Schema
	FirstBatch bool

	// settings
	Settings record.SettingsPatch

	// chunkLoaded
	ChunkNumber int

	// done
	AllChunksLoaded bool

	// error
	Err error
}
