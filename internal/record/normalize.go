package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type rule struct {
	primary   []string
	alternate []string
}

func (r rule) keys(schema Schema) []string {
	if schema == SchemaAlternate {
		return r.alternate
	}
	return r.primary
}

var (
	idRule       = rule{[]string{"movies_id", "id"}, []string{"id", "movies_id"}}
	titleRule    = rule{[]string{"movies_name", "series_name", "name"}, []string{"name", "movies_name", "series_name"}}
	imageRule    = rule{[]string{"movies_img", "series_img", "img"}, []string{"img", "movies_img", "series_img"}}
	linkRule     = rule{[]string{"movies_href", "series_href", "href"}, []string{"href", "movies_href", "series_href"}}
	categoryRule = rule{[]string{"movies_category", "category"}, []string{"category", "movies_category"}}
	hiddenRule   = rule{[]string{"movies_hidden", "hidden"}, []string{"hidden", "movies_hidden"}}
	dateRule     = rule{[]string{"dateAdded", "addedDate"}, []string{"dateAdded", "addedDate"}}
	favoriteRule = rule{[]string{"isFavorite", "star"}, []string{"star", "isFavorite"}}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Normalizer converts raw shard records into canonical Records.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

// NewNormalizer returns a Normalizer using the wall clock and generated ids.
func NewNormalizer() *Normalizer {
	n := &Normalizer{Now: time.Now}
	n.NewID = func() string { return GenerateID(n.now()) }
	return n
}

// GenerateID returns an identifier of the form movie_<unix-millis>_<random>.
func GenerateID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("movie_%d_%s", now.UnixMilli(), suffix)
}

// Fresh gives rec a new identity as a copy: a generated id, the current time
// as its added date, and cleared hidden and favorite flags.
func (n *Normalizer) Fresh(rec Record) Record {
	rec.ID = n.newID()
	rec.DateAdded = n.now()
	rec.Hidden = false
	rec.IsFavorite = false
	return rec
}

// Current returns the normalizer clock reading.
func (n *Normalizer) Current() time.Time {
	return n.now()
}

func (n *Normalizer) now() time.Time {
	if n == nil || n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func (n *Normalizer) newID() string {
	if n == nil || n.NewID == nil {
		return GenerateID(n.now())
	}
	return n.NewID()
}

// Normalize maps raw onto a Record using the rule table for schema.
func (n *Normalizer) Normalize(raw Raw, schema Schema) Record {
	rec := Record{
		ID:         firstText(raw, idRule.keys(schema)),
		Title:      firstText(raw, titleRule.keys(schema)),
		ImageURL:   firstText(raw, imageRule.keys(schema)),
		Link:       firstText(raw, linkRule.keys(schema)),
		Category:   firstText(raw, categoryRule.keys(schema)),
		Hidden:     firstFlag(raw, hiddenRule.keys(schema)),
		IsFavorite: firstFlag(raw, favoriteRule.keys(schema)),
	}
	if rec.ID == "" {
		rec.ID = n.newID()
	}
	if rec.Title == "" {
		rec.Title = DefaultTitle
	}
	if rec.ImageURL == "" {
		rec.ImageURL = DefaultImageURL
	}
	if rec.Link == "" {
		rec.Link = DefaultLink
	}
	if rec.Category == "" {
		rec.Category = DefaultCategory
	}
	rec.Site = SiteFromLink(rec.Link)

	if when, ok := firstTime(raw, dateRule.keys(schema)); ok {
		rec.DateAdded = when
	} else {
		rec.DateAdded = n.now()
	}
	return rec
}

// Fill completes a hand-built record with the same defaults Normalize applies.
func (n *Normalizer) Fill(rec Record) Record {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = n.newID()
	}
	if strings.TrimSpace(rec.Title) == "" {
		rec.Title = DefaultTitle
	}
	if strings.TrimSpace(rec.ImageURL) == "" {
		rec.ImageURL = DefaultImageURL
	}
	if strings.TrimSpace(rec.Link) == "" {
		rec.Link = DefaultLink
	}
	if strings.TrimSpace(rec.Category) == "" {
		rec.Category = DefaultCategory
	}
	rec.Site = SiteFromLink(rec.Link)
	if rec.DateAdded.IsZero() {
		rec.DateAdded = n.now()
	}
	return rec
}

// SiteFromLink returns the lower-cased host of link without a leading "www.",
// or UnknownSite when link has no host.
func SiteFromLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return UnknownSite
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return UnknownSite
	}
	return host
}

// firstText returns the first truthy value among keys rendered as text.
// Strings and numbers qualify; other JSON kinds are skipped.
func firstText(raw Raw, keys []string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		switch v := decode(value).(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			if f, err := v.Float64(); err == nil && f != 0 {
				return v.String()
			}
		}
	}
	return ""
}

func firstFlag(raw Raw, keys []string) bool {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		switch v := decode(value).(type) {
		case bool:
			if v {
				return true
			}
		case json.Number:
			if f, err := v.Float64(); err == nil && f != 0 {
				return true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "", "false", "0":
			default:
				return true
			}
		}
	}
	return false
}

func firstTime(raw Raw, keys []string) (time.Time, bool) {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		switch v := decode(value).(type) {
		case string:
			if t, ok := parseTime(v); ok {
				return t, true
			}
		case json.Number:
			if ms, err := v.Int64(); err == nil && ms != 0 {
				return time.UnixMilli(ms).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func decode(value json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}
