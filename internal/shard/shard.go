package shard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"cinecat/internal/failure"
	"cinecat/internal/record"
)

const (
	// ChunkPrefix names numbered shard files: app_database1.json, app_database2.json, ...
	ChunkPrefix = "app_database"
	// LegacyName is the single-file catalog consulted when shard 1 is absent.
	LegacyName = "app_database.json"
)

// ChunkName returns the file name of shard n.
func ChunkName(n int) string {
	return fmt.Sprintf("%s%d.json", ChunkPrefix, n)
}

// ChunkPath returns the resource path of shard n under dir.
func ChunkPath(dir string, n int) string {
	return path.Join(dir, ChunkName(n))
}

// Document is the decoded form of a shard, storage chunk, or export file.
type Document struct {
	MoviesInfo  []record.Raw          `json:"movies_info,omitempty"`
	Movies      []record.Raw          `json:"movies,omitempty"`
	SeriesInfo  []record.Raw          `json:"series_info,omitempty"`
	Settings    *record.SettingsPatch `json:"settings,omitempty"`
	ChunkNumber int                   `json:"chunkNumber,omitempty"`
	TotalChunks int                   `json:"totalChunks,omitempty"`
	LastSaved   string                `json:"lastSaved,omitempty"`
	ExportDate  string                `json:"exportDate,omitempty"`
}

// Schema reports which record layout the document uses. A present "movies"
// array selects the alternate layout unless "movies_info" is also present.
func (d Document) Schema() record.Schema {
	if d.MoviesInfo == nil && d.Movies != nil {
		return record.SchemaAlternate
	}
	return record.SchemaPrimary
}

// Records returns the raw records of the document in their original order.
func (d Document) Records() []record.Raw {
	switch {
	case d.MoviesInfo != nil:
		return d.MoviesInfo
	case d.Movies != nil:
		return d.Movies
	default:
		return d.SeriesInfo
	}
}

// HasSettings reports whether the document carries a non-empty settings object.
func (d Document) HasSettings() bool {
	return d.Settings != nil && !d.Settings.Empty()
}

// Decode parses data as a Document. Any syntax or shape error is reported as
// failure.ErrMalformed.
func Decode(data []byte) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{}, failure.Wrap(failure.ErrMalformed, "shard", "decode", "expected JSON object", nil)
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, failure.Wrap(failure.ErrMalformed, "shard", "decode", "", err)
	}
	return doc, nil
}

// Chunk is the encoded form written by the store and exporter. Records are
// always written in the primary layout.
type Chunk struct {
	MoviesInfo  []record.Wire    `json:"movies_info"`
	Settings    *record.Settings `json:"settings,omitempty"`
	ChunkNumber int              `json:"chunkNumber,omitempty"`
	TotalChunks int              `json:"totalChunks,omitempty"`
	LastSaved   string           `json:"lastSaved,omitempty"`
	ExportDate  string           `json:"exportDate,omitempty"`
}

// Encode serializes c compactly.
func Encode(c Chunk) ([]byte, error) {
	if c.MoviesInfo == nil {
		c.MoviesInfo = []record.Wire{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStorage, "shard", "encode", "", err)
	}
	return data, nil
}

// EncodeIndent serializes c with two-space indentation, the layout used for
// files meant to be read by people as well as the fetcher.
func EncodeIndent(c Chunk) ([]byte, error) {
	if c.MoviesInfo == nil {
		c.MoviesInfo = []record.Wire{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, failure.Wrap(failure.ErrStorage, "shard", "encode", "", err)
	}
	return data, nil
}

// Timestamp formats t the way lastSaved and exportDate fields are written.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
