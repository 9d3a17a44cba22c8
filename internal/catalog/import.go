package catalog

import (
	"strings"

	"cinecat/internal/record"
	"cinecat/internal/shard"
)

// ImportOptions controls how a user-supplied document is merged.
type ImportOptions struct {
	// Section, when set, forces every imported record into that category.
	// It implies Fresh.
	Section string
	// Fresh imports every record as a new copy: a generated id, the import
	// time as its added date, and cleared hidden and favorite flags. Document
	// settings are ignored.
	Fresh bool
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Total         int
	Added         int
	DuplicateID   int
	DuplicateLink int
	Settings      bool
}

// Import merges a user-supplied document applying both uniqueness rules.
func (c *Catalog) Import(doc shard.Document, opts ImportOptions) ImportResult {
	section := strings.TrimSpace(opts.Section)
	fresh := opts.Fresh || section != ""
	raws := doc.Records()
	schema := doc.Schema()

	c.mu.Lock()
	defer c.mu.Unlock()

	result := ImportResult{Total: len(raws)}
	for _, raw := range raws {
		rec := c.normalizer.Normalize(raw, schema)
		if fresh {
			rec = c.normalizer.Fresh(rec)
		}
		if section != "" {
			rec.Category = section
		}
		if _, exists := c.byID[rec.ID]; exists {
			result.DuplicateID++
			continue
		}
		if !record.AllowsDuplicateLinks(rec.Category) && c.links[rec.Link] > 0 {
			result.DuplicateLink++
			continue
		}
		c.appendLocked(rec)
		result.Added++
	}

	if !fresh && doc.HasSettings() {
		c.settings = c.settings.Apply(*doc.Settings)
		result.Settings = true
	}
	return result
}
