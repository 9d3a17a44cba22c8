package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"cinecat/internal/record"
)

// Query selects records for display. Empty fields match everything; the
// "all" category matches every category.
type Query struct {
	Category      string
	Site          string
	IncludeHidden bool
}

func (q Query) matches(rec record.Record) bool {
	if !q.IncludeHidden && rec.Hidden {
		return false
	}
	if q.Category != "" && q.Category != record.DefaultCategory && rec.Category != q.Category {
		return false
	}
	if q.Site != "" && rec.Site != q.Site {
		return false
	}
	return true
}

// Filter returns the records matching q in insertion order.
func (c *Catalog) Filter(q Query) []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []record.Record
	for _, rec := range c.records {
		if q.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Search returns visible records whose title contains term, ignoring case.
func (c *Catalog) Search(term string) []record.Record {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []record.Record
	for _, rec := range c.records {
		if rec.Hidden {
			continue
		}
		if strings.Contains(folder.String(rec.Title), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// Counts returns the number of visible records per category. The "all" entry
// counts every visible record; every known category is present, even at zero.
func (c *Catalog) Counts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[string]int, len(record.Categories))
	for _, cat := range record.Categories {
		counts[cat] = 0
	}
	for _, rec := range c.records {
		if rec.Hidden {
			continue
		}
		counts[record.DefaultCategory]++
		if rec.Category != record.DefaultCategory {
			counts[rec.Category]++
		}
	}
	return counts
}

// Categories returns the categories in use: known ones in their canonical
// order followed by unknown ones sorted by name.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	present := make(map[string]struct{})
	for _, rec := range c.records {
		present[rec.Category] = struct{}{}
	}
	c.mu.RUnlock()

	var out []string
	for _, cat := range record.Categories {
		if _, ok := present[cat]; ok {
			out = append(out, cat)
			delete(present, cat)
		}
	}
	var unknown []string
	for cat := range present {
		unknown = append(unknown, cat)
	}
	slices.Sort(unknown)
	return append(out, unknown...)
}

// SiteStat summarizes the records sourced from one site.
type SiteStat struct {
	Site       string
	Visible    int
	Hidden     int
	Categories []string
}

// Sites returns per-site statistics sorted by site name.
func (c *Catalog) Sites() []SiteStat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make(map[string]*SiteStat)
	for _, rec := range c.records {
		stat, ok := stats[rec.Site]
		if !ok {
			stat = &SiteStat{Site: rec.Site}
			stats[rec.Site] = stat
		}
		if rec.Hidden {
			stat.Hidden++
			continue
		}
		stat.Visible++
		if !slices.Contains(stat.Categories, rec.Category) {
			stat.Categories = append(stat.Categories, rec.Category)
		}
	}
	out := make([]SiteStat, 0, len(stats))
	for _, stat := range stats {
		out = append(out, *stat)
	}
	slices.SortFunc(out, func(a, b SiteStat) int { return strings.Compare(a.Site, b.Site) })
	return out
}

// HiddenSites returns the sorted sites that have at least one hidden record.
func (c *Catalog) HiddenSites() []string {
	var out []string
	for _, stat := range c.Sites() {
		if stat.Hidden > 0 {
			out = append(out, stat.Site)
		}
	}
	return out
}
