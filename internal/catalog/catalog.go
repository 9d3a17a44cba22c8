package catalog

import (
	"sync"

	"cinecat/internal/failure"
	"cinecat/internal/record"
)

// Snapshot is a point-in-time copy of the catalog contents.
type Snapshot struct {
	Records  []record.Record
	Settings record.Settings
}

// IngestResult reports the outcome of merging one shard batch.
type IngestResult struct {
	Added     int
	Duplicate int
}

// Catalog is the ordered record collection plus settings.
type Catalog struct {
	mu         sync.RWMutex
	records    []record.Record
	byID       map[string]int
	links      map[string]int
	settings   record.Settings
	normalizer *record.Normalizer
}

// New returns an empty catalog seeded with settings. A nil normalizer uses the
// wall clock and generated ids.
func New(settings record.Settings, normalizer *record.Normalizer) *Catalog {
	if normalizer == nil {
		normalizer = record.NewNormalizer()
	}
	return &Catalog{
		byID:       make(map[string]int),
		links:      make(map[string]int),
		settings:   settings,
		normalizer: normalizer,
	}
}

// Ingest normalizes raws and appends every record whose id is not already
// present. Link duplicates are accepted: shard data is authoritative.
func (c *Catalog) Ingest(raws []record.Raw, schema record.Schema) IngestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result IngestResult
	for _, raw := range raws {
		rec := c.normalizer.Normalize(raw, schema)
		if _, exists := c.byID[rec.ID]; exists {
			result.Duplicate++
			continue
		}
		c.appendLocked(rec)
		result.Added++
	}
	return result
}

// AddSingle fills defaults on candidate and adds it unless its id is taken or
// its link already exists for a category that does not allow duplicates.
func (c *Catalog) AddSingle(candidate record.Record) (record.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.normalizer.Fill(candidate)
	if !c.acceptsLocked(rec) {
		return rec, false
	}
	c.appendLocked(rec)
	return rec, true
}

// IsDuplicateLink reports whether adding link under category would violate
// link uniqueness.
func (c *Catalog) IsDuplicateLink(link, category string) bool {
	if record.AllowsDuplicateLinks(category) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.links[link] > 0
}

// MergeSettings applies patch shallowly: present keys override, absent keys
// are preserved.
func (c *Catalog) MergeSettings(patch record.SettingsPatch) {
	c.mu.Lock()
	c.settings = c.settings.Apply(patch)
	c.mu.Unlock()
}

// Settings returns the current settings.
func (c *Catalog) Settings() record.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Len returns the number of records, hidden ones included.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Get returns the record with id.
func (c *Catalog) Get(id string) (record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byID[id]
	if !ok {
		return record.Record{}, false
	}
	return c.records[idx], true
}

// Records returns a copy of every record in insertion order.
func (c *Catalog) Records() []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]record.Record(nil), c.records...)
}

// Snapshot copies the catalog contents.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Records:  append([]record.Record(nil), c.records...),
		Settings: c.settings,
	}
}

// Replace swaps the catalog contents for snap. Records with an id already
// seen earlier in snap are dropped.
func (c *Catalog) Replace(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make([]record.Record, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if rec.Site == "" {
			rec.Site = record.SiteFromLink(rec.Link)
		}
		c.records = append(c.records, rec)
	}
	c.settings = snap.Settings
	c.reindexLocked()
}

// Clear removes every record and returns how many were dropped. Settings are kept.
func (c *Catalog) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.records)
	c.records = nil
	c.reindexLocked()
	return n
}

func notFound(id string) error {
	return failure.Wrap(failure.ErrNotFound, "catalog", "lookup", "record "+id, nil)
}

func (c *Catalog) acceptsLocked(rec record.Record) bool {
	if _, exists := c.byID[rec.ID]; exists {
		return false
	}
	if !record.AllowsDuplicateLinks(rec.Category) && c.links[rec.Link] > 0 {
		return false
	}
	return true
}

func (c *Catalog) appendLocked(rec record.Record) {
	c.byID[rec.ID] = len(c.records)
	c.links[rec.Link]++
	c.records = append(c.records, rec)
}

// reindexLocked rebuilds both indexes, dropping later records whose id
// repeats an earlier one.
func (c *Catalog) reindexLocked() {
	c.byID = make(map[string]int, len(c.records))
	c.links = make(map[string]int, len(c.records))
	kept := c.records[:0]
	for _, rec := range c.records {
		if _, exists := c.byID[rec.ID]; exists {
			continue
		}
		c.byID[rec.ID] = len(kept)
		c.links[rec.Link]++
		kept = append(kept, rec)
	}
	c.records = kept
}
