package record

import "time"

// Wire is the primary-schema JSON shape used for storage chunks and exports.
type Wire struct {
	ID         string `json:"movies_id"`
	Title      string `json:"movies_name"`
	ImageURL   string `json:"movies_img"`
	Link       string `json:"movies_href"`
	Category   string `json:"movies_category"`
	Hidden     bool   `json:"movies_hidden"`
	DateAdded  string `json:"dateAdded"`
	IsFavorite bool   `json:"isFavorite"`
}

// ToWire renders rec in the primary schema. Normalizing the result with
// SchemaPrimary yields rec again.
func ToWire(rec Record) Wire {
	return Wire{
		ID:         rec.ID,
		Title:      rec.Title,
		ImageURL:   rec.ImageURL,
		Link:       rec.Link,
		Category:   rec.Category,
		Hidden:     rec.Hidden,
		DateAdded:  rec.DateAdded.UTC().Format(time.RFC3339Nano),
		IsFavorite: rec.IsFavorite,
	}
}

// ToWireAll renders recs in order.
func ToWireAll(recs []Record) []Wire {
	out := make([]Wire, len(recs))
	for i, rec := range recs {
		out[i] = ToWire(rec)
	}
	return out
}
