package record

import (
	"encoding/json"
	"slices"
	"time"
)

// Schema identifies the source layout of a raw record.
type Schema int

const (
	SchemaPrimary Schema = iota
	SchemaAlternate
)

func (s Schema) String() string {
	if s == SchemaAlternate {
		return "alternate"
	}
	return "primary"
}

// Raw is a single undecoded shard record.
type Raw map[string]json.RawMessage

// Record is the canonical catalog entry.
type Record struct {
	ID         string
	Title      string
	ImageURL   string
	Link       string
	Category   string
	Hidden     bool
	Site       string
	DateAdded  time.Time
	IsFavorite bool
}

const (
	DefaultTitle    = "Untitled"
	DefaultImageURL = "https://via.placeholder.com/200x300?text=No+Image"
	DefaultLink     = "#"
	DefaultCategory = "all"
	UnknownSite     = "unknown"
)

// Categories lists the known category identifiers in display order.
var Categories = []string{
	"all", "old_arabic", "new_arabic", "series", "foreign1", "foreign2", "foreign3",
	"franchises", "indian", "asian", "horror", "stars", "various", "sites",
	"selected1", "selected2", "favorites1", "favorites2",
	"r1", "r2", "s1", "s2", "x1", "xsites",
	"selected_r", "selected_s", "selected_x", "thursday_night",
}

// duplicateAllowed holds categories whose records may share a link with
// records elsewhere in the catalog.
var duplicateAllowed = map[string]struct{}{
	"franchises": {}, "indian": {}, "horror": {}, "stars": {},
	"selected1": {}, "selected2": {}, "favorites1": {}, "favorites2": {},
	"selected_r": {}, "selected_s": {}, "selected_x": {}, "thursday_night": {},
}

// KnownCategory reports whether category is one of Categories.
func KnownCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// AllowsDuplicateLinks reports whether records in category skip link dedup.
func AllowsDuplicateLinks(category string) bool {
	_, ok := duplicateAllowed[category]
	return ok
}

// Sub-section groups bundled by sub-section exports.
const (
	GroupGeneral = "general"
	GroupPrivate = "private"
)

// SubsectionGroup returns the curated sub-sections in group.
func SubsectionGroup(group string) ([]string, bool) {
	switch group {
	case GroupGeneral:
		return []string{"selected1", "selected2", "favorites1", "favorites2"}, true
	case GroupPrivate:
		return []string{"selected_r", "selected_s", "selected_x"}, true
	}
	return nil, false
}

var mainSections = []string{
	"old_arabic", "new_arabic", "series", "foreign1", "foreign2", "foreign3",
	"franchises", "indian", "asian", "horror", "stars", "various",
}

// CuratedSections returns the sub-sections a record in category may be
// favorited into, or nil when the category has none.
func CuratedSections(category string) []string {
	switch category {
	case "r1", "r2":
		return []string{"selected_r", "thursday_night"}
	case "s1", "s2":
		return []string{"selected_s", "thursday_night"}
	case "x1", "xsites":
		return []string{"selected_x", "thursday_night"}
	}
	if slices.Contains(mainSections, category) {
		return []string{"selected1", "selected2", "favorites1", "favorites2"}
	}
	return nil
}
