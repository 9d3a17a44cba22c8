package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"cinecat/internal/failure"
	"cinecat/internal/record"
)

// Update applies fn to the record with id. The id cannot be changed; the site
// is re-derived from the link afterwards.
func (c *Catalog) Update(id string, fn func(*record.Record)) (record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.byID[id]
	if !ok {
		return record.Record{}, notFound(id)
	}
	rec := c.records[idx]
	fn(&rec)
	rec.ID = id
	rec.Site = record.SiteFromLink(rec.Link)
	c.records[idx] = rec
	c.reindexLocked()
	return rec, nil
}

// Delete removes the record with id.
func (c *Catalog) Delete(id string) bool {
	return c.removeWhere(func(rec record.Record) bool { return rec.ID == id }) > 0
}

// Favorite copies the record with id into the curated sub-section target and
// marks both copies as favorites. The copy gets a fresh "fav-" id.
func (c *Catalog) Favorite(id, target string) (record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.byID[id]
	if !ok {
		return record.Record{}, notFound(id)
	}
	source := c.records[idx]
	allowed := record.CuratedSections(source.Category)
	if !slices.Contains(allowed, target) {
		return record.Record{}, failure.Wrap(failure.ErrValidation, "catalog", "favorite",
			fmt.Sprintf("category %q cannot be favorited into %q", source.Category, target), nil)
	}

	source.IsFavorite = true
	c.records[idx] = source

	copied := source
	copied.ID = fmt.Sprintf("fav-%d-%s", c.normalizer.Current().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	copied.Category = target
	c.appendLocked(copied)
	return copied, nil
}

// MoveCategory moves every record in from into to.
func (c *Catalog) MoveCategory(from, to string) int {
	return c.updateWhere(func(rec *record.Record) bool {
		if rec.Category != from {
			return false
		}
		rec.Category = to
		return true
	})
}

// DeleteCategory removes every record in category.
func (c *Catalog) DeleteCategory(category string) int {
	return c.removeWhere(func(rec record.Record) bool { return rec.Category == category })
}

// MoveSite moves every record from site into category.
func (c *Catalog) MoveSite(site, category string) int {
	return c.updateWhere(func(rec *record.Record) bool {
		if rec.Site != site {
			return false
		}
		rec.Category = category
		return true
	})
}

// DeleteSite removes every record sourced from site.
func (c *Catalog) DeleteSite(site string) int {
	return c.removeWhere(func(rec record.Record) bool { return rec.Site == site })
}

// SetSiteHidden hides or reveals every record from site.
func (c *Catalog) SetSiteHidden(site string, hidden bool) int {
	return c.updateWhere(func(rec *record.Record) bool {
		if rec.Site != site || rec.Hidden == hidden {
			return false
		}
		rec.Hidden = hidden
		return true
	})
}

// RestoreHidden reveals every hidden record.
func (c *Catalog) RestoreHidden() int {
	return c.updateWhere(func(rec *record.Record) bool {
		if !rec.Hidden {
			return false
		}
		rec.Hidden = false
		return true
	})
}

// CleanTitles strips each of words from the titles of records in category and
// returns the number of removals performed.
func (c *Catalog) CleanTitles(category string, words []string) int {
	var cleaned []string
	for _, word := range words {
		if word = strings.TrimSpace(word); word != "" {
			cleaned = append(cleaned, word)
		}
	}
	if len(cleaned) == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for i := range c.records {
		if c.records[i].Category != category {
			continue
		}
		for _, word := range cleaned {
			if strings.Contains(c.records[i].Title, word) {
				c.records[i].Title = strings.TrimSpace(strings.ReplaceAll(c.records[i].Title, word, ""))
				count++
			}
		}
	}
	return count
}

func (c *Catalog) updateWhere(fn func(*record.Record) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for i := range c.records {
		if fn(&c.records[i]) {
			count++
		}
	}
	return count
}

func (c *Catalog) removeWhere(match func(record.Record) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := len(c.records)
	c.records = slices.DeleteFunc(c.records, match)
	removed := before - len(c.records)
	if removed > 0 {
		c.reindexLocked()
	}
	return removed
}
