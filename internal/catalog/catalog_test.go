package catalog_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"cinecat/internal/catalog"
	"cinecat/internal/failure"
	"cinecat/internal/record"
	"cinecat/internal/shard"
)

func newCatalog() *catalog.Catalog {
	var seq int
	n := &record.Normalizer{
		Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("gen-%d", seq)
		},
	}
	return catalog.New(record.Settings{LoginRequired: true}, n)
}

func primaryRaw(t *testing.T, id, link, category string) record.Raw {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"movies_id":       id,
		"movies_name":     "Title " + id,
		"movies_href":     link,
		"movies_category": category,
	})
	if err != nil {
		t.Fatalf("marshal raw: %v", err)
	}
	var raw record.Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	return raw
}

func ids(recs []record.Record) []string {
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.ID
	}
	return out
}

func TestIngestSkipsDuplicateIDsOnly(t *testing.T) {
	c := newCatalog()
	first := c.Ingest([]record.Raw{
		primaryRaw(t, "a", "https://x.test/1", "series"),
		primaryRaw(t, "b", "https://x.test/1", "series"),
		primaryRaw(t, "a", "https://x.test/2", "series"),
	}, record.SchemaPrimary)
	if first.Added != 2 || first.Duplicate != 1 {
		t.Fatalf("unexpected result %+v", first)
	}

	second := c.Ingest([]record.Raw{primaryRaw(t, "b", "https://x.test/9", "asian")}, record.SchemaPrimary)
	if second.Added != 0 || second.Duplicate != 1 {
		t.Fatalf("re-ingest should skip existing id, got %+v", second)
	}
	if got := ids(c.Records()); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected ids %v", got)
	}
	if rec, _ := c.Get("a"); rec.Link != "https://x.test/1" {
		t.Fatalf("first occurrence should win, got %+v", rec)
	}
}

func TestIngestMembershipIsOrderIndependent(t *testing.T) {
	var raws []record.Raw
	for i := range 50 {
		raws = append(raws, primaryRaw(t, fmt.Sprintf("id-%d", i%30), fmt.Sprintf("https://s.test/%d", i), "various"))
	}
	batches := func(in []record.Raw, size int) [][]record.Raw {
		var out [][]record.Raw
		for len(in) > 0 {
			n := min(size, len(in))
			out = append(out, in[:n])
			in = in[n:]
		}
		return out
	}

	reference := newCatalog()
	reference.Ingest(raws, record.SchemaPrimary)
	want := ids(reference.Records())
	slices.Sort(want)

	rng := rand.New(rand.NewPCG(1, 2))
	for trial := range 5 {
		shuffled := slices.Clone(raws)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		c := newCatalog()
		for _, batch := range batches(shuffled, 7) {
			c.Ingest(batch, record.SchemaPrimary)
		}
		got := ids(c.Records())
		slices.Sort(got)
		if !slices.Equal(got, want) {
			t.Fatalf("trial %d: membership differs", trial)
		}
	}
}

func TestAddSingleLinkRules(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{primaryRaw(t, "m1", "https://a.test/x", "new_arabic")}, record.SchemaPrimary)

	if _, ok := c.AddSingle(record.Record{Link: "https://a.test/x", Category: "series"}); ok {
		t.Fatal("duplicate link in non-allow-listed category should be refused")
	}
	added, ok := c.AddSingle(record.Record{Link: "https://a.test/x", Category: "horror", Title: "Copy"})
	if !ok {
		t.Fatal("allow-listed category should accept duplicate link")
	}
	if added.ID == "" || added.Site != "a.test" || added.DateAdded.IsZero() {
		t.Fatalf("expected defaults to be filled, got %+v", added)
	}
	if _, ok := c.AddSingle(record.Record{ID: "m1", Link: "https://other.test", Category: "horror"}); ok {
		t.Fatal("id collision should be refused")
	}
	if c.IsDuplicateLink("https://a.test/x", "stars") {
		t.Fatal("stars allows duplicates")
	}
	if !c.IsDuplicateLink("https://a.test/x", "asian") {
		t.Fatal("asian does not allow duplicates")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", c.Len())
	}
}

func TestImportAppliesBothRules(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{primaryRaw(t, "keep", "https://a.test/1", "series")}, record.SchemaPrimary)

	doc, err := shard.Decode([]byte(`{
		"movies": [
			{"id": "keep", "name": "same id", "href": "https://a.test/9", "category": "series"},
			{"id": "n1", "name": "same link", "href": "https://a.test/1", "category": "series"},
			{"id": "n2", "name": "allowed", "href": "https://a.test/1", "category": "franchises"},
			{"id": "n3", "name": "fresh", "href": "https://b.test/1", "category": "asian", "star": true}
		],
		"settings": {"familyPassword": "kid"}
	}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	result := c.Import(doc, catalog.ImportOptions{})
	want := catalog.ImportResult{Total: 4, Added: 2, DuplicateID: 1, DuplicateLink: 1, Settings: true}
	if result != want {
		t.Fatalf("unexpected import result %+v", result)
	}
	if c.Settings().RestrictedPasscode != "kid" || !c.Settings().LoginRequired {
		t.Fatalf("settings should merge shallowly, got %+v", c.Settings())
	}
	if rec, _ := c.Get("n3"); !rec.IsFavorite {
		t.Fatal("alternate schema star should mark favorite")
	}
}

func TestImportIntoSection(t *testing.T) {
	c := newCatalog()
	doc, err := shard.Decode([]byte(`{"movies_info": [
		{"movies_id": "s1", "movies_href": "https://a.test/1", "movies_category": "series", "movies_hidden": true, "isFavorite": true, "dateAdded": "2020-05-05T00:00:00Z"},
		{"movies_id": "s2", "movies_href": "https://a.test/1", "movies_category": "series"}
	], "settings": {"familyMode": true}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	result := c.Import(doc, catalog.ImportOptions{Section: "x1"})
	if result.Added != 1 || result.DuplicateLink != 1 || result.Settings {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := c.Get("s1"); ok {
		t.Fatal("section import should not keep the file's ids")
	}
	rec, ok := c.Get("gen-1")
	if !ok {
		t.Fatalf("expected a generated id, have %v", ids(c.Records()))
	}
	if rec.Category != "x1" || rec.Hidden || rec.IsFavorite {
		t.Fatalf("section import should force category and clear flags, got %+v", rec)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !rec.DateAdded.Equal(want) {
		t.Fatalf("section import should stamp the import time, got %v", rec.DateAdded)
	}
	if c.Settings().RestrictedModeActive {
		t.Fatal("section import must ignore settings")
	}
}

func TestImportSectionCopiesExistingRecords(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{primaryRaw(t, "m1", "https://a.test/1", "r1")}, record.SchemaPrimary)

	data, err := shard.Encode(shard.Chunk{MoviesInfo: record.ToWireAll(c.Records())})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc, err := shard.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	result := c.Import(doc, catalog.ImportOptions{Section: "selected_r"})
	if result.Added != 1 || result.DuplicateID != 0 {
		t.Fatalf("expected the record to be copied into the section, got %+v", result)
	}
	copies := c.Filter(catalog.Query{Category: "selected_r"})
	if len(copies) != 1 || copies[0].ID == "m1" || copies[0].Link != "https://a.test/1" {
		t.Fatalf("unexpected section copy %+v", copies)
	}
	if original, ok := c.Get("m1"); !ok || original.Category != "r1" {
		t.Fatalf("original record should stay in r1, got %+v", original)
	}
}

func TestImportFreshKeepsCategories(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{primaryRaw(t, "f1", "https://a.test/1", "series")}, record.SchemaPrimary)
	doc, err := shard.Decode([]byte(`{"movies_info": [
		{"movies_name": "Fav", "movies_href": "https://a.test/1", "movies_category": "favorites1"},
		{"movies_name": "Pick", "movies_href": "https://b.test/2", "movies_category": "selected_s"},
		{"movies_name": "Plain", "movies_href": "https://a.test/1", "movies_category": "series"}
	], "settings": {"familyPassword": "kid"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	result := c.Import(doc, catalog.ImportOptions{Fresh: true})
	want := catalog.ImportResult{Total: 3, Added: 2, DuplicateLink: 1}
	if result != want {
		t.Fatalf("unexpected import result %+v", result)
	}
	if got := len(c.Filter(catalog.Query{Category: "favorites1"})); got != 1 {
		t.Fatalf("expected 1 favorites1 record, got %d", got)
	}
	if got := len(c.Filter(catalog.Query{Category: "selected_s"})); got != 1 {
		t.Fatalf("expected 1 selected_s record, got %d", got)
	}
	if c.Settings().RestrictedPasscode != "" {
		t.Fatal("fresh import must ignore settings")
	}
}

func TestMergeSettingsPreservesAbsentKeys(t *testing.T) {
	c := newCatalog()
	pass := "secret"
	c.MergeSettings(record.SettingsPatch{FullPasscode: &pass})
	off := false
	c.MergeSettings(record.SettingsPatch{LoginRequired: &off})
	got := c.Settings()
	if got.FullPasscode != "secret" || got.LoginRequired {
		t.Fatalf("unexpected settings %+v", got)
	}
}

func TestQueries(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{
		primaryRaw(t, "1", "https://www.alpha.test/1", "series"),
		primaryRaw(t, "2", "https://alpha.test/2", "asian"),
		primaryRaw(t, "3", "https://beta.test/3", "series"),
		primaryRaw(t, "4", "https://beta.test/4", "custom_cat"),
	}, record.SchemaPrimary)
	c.SetSiteHidden("beta.test", true)

	if got := ids(c.Filter(catalog.Query{Category: "series"})); !slices.Equal(got, []string{"1"}) {
		t.Fatalf("unexpected visible series %v", got)
	}
	if got := ids(c.Filter(catalog.Query{Category: "series", IncludeHidden: true})); !slices.Equal(got, []string{"1", "3"}) {
		t.Fatalf("unexpected series incl hidden %v", got)
	}
	if got := ids(c.Filter(catalog.Query{Category: "all", Site: "alpha.test"})); !slices.Equal(got, []string{"1", "2"}) {
		t.Fatalf("unexpected alpha records %v", got)
	}

	counts := c.Counts()
	if counts["all"] != 2 || counts["series"] != 1 || counts["asian"] != 1 || counts["horror"] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if _, ok := counts["thursday_night"]; !ok {
		t.Fatal("every known category should be present in counts")
	}

	if got := c.Categories(); !slices.Equal(got, []string{"series", "asian", "custom_cat"}) {
		t.Fatalf("unexpected categories %v", got)
	}
	if got := c.HiddenSites(); !slices.Equal(got, []string{"beta.test"}) {
		t.Fatalf("unexpected hidden sites %v", got)
	}
	sites := c.Sites()
	if len(sites) != 2 || sites[0].Site != "alpha.test" || sites[0].Visible != 2 || sites[1].Hidden != 2 {
		t.Fatalf("unexpected site stats %+v", sites)
	}

	if n := c.RestoreHidden(); n != 2 {
		t.Fatalf("expected 2 restored, got %d", n)
	}
	if len(c.HiddenSites()) != 0 {
		t.Fatal("expected no hidden sites after restore")
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	c := newCatalog()
	c.AddSingle(record.Record{ID: "1", Title: "STRASSE Nights", Link: "https://a.test/1", Category: "foreign1"})
	c.AddSingle(record.Record{ID: "2", Title: "Other", Link: "https://a.test/2", Category: "foreign1"})
	c.AddSingle(record.Record{ID: "3", Title: "Hidden Straße", Link: "https://a.test/3", Category: "foreign1", Hidden: true})

	if got := ids(c.Search("straße")); !slices.Equal(got, []string{"1"}) {
		t.Fatalf("unexpected search result %v", got)
	}
	if c.Search("   ") != nil {
		t.Fatal("blank search should return nothing")
	}
}

func TestMutations(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{
		primaryRaw(t, "1", "https://a.test/1", "r1"),
		primaryRaw(t, "2", "https://a.test/2", "r1"),
		primaryRaw(t, "3", "https://b.test/3", "series"),
	}, record.SchemaPrimary)

	updated, err := c.Update("3", func(r *record.Record) {
		r.Title = "Renamed"
		r.Link = "https://c.test/3"
		r.ID = "ignored"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != "3" || updated.Site != "c.test" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if _, err := c.Update("missing", func(*record.Record) {}); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if c.IsDuplicateLink("https://b.test/3", "series") {
		t.Fatal("old link should be released after update")
	}

	fav, err := c.Favorite("1", "thursday_night")
	if err != nil {
		t.Fatalf("Favorite: %v", err)
	}
	if !strings.HasPrefix(fav.ID, "fav-") || fav.Category != "thursday_night" || !fav.IsFavorite {
		t.Fatalf("unexpected favorite copy %+v", fav)
	}
	if orig, _ := c.Get("1"); !orig.IsFavorite || orig.Category != "r1" {
		t.Fatalf("source should be flagged favorite in place, got %+v", orig)
	}
	if _, err := c.Favorite("1", "selected1"); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for wrong sub-section, got %v", err)
	}

	if n := c.MoveCategory("r1", "r2"); n != 2 {
		t.Fatalf("expected 2 moved, got %d", n)
	}
	if n := c.CleanTitles("r2", []string{"Title ", " "}); n != 2 {
		t.Fatalf("expected 2 cleaned, got %d", n)
	}
	if rec, _ := c.Get("2"); rec.Title != "2" {
		t.Fatalf("unexpected cleaned title %q", rec.Title)
	}
	if n := c.MoveSite("c.test", "asian"); n != 1 {
		t.Fatalf("expected 1 moved by site, got %d", n)
	}
	if n := c.DeleteCategory("r2"); n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if !c.Delete("3") || c.Delete("3") {
		t.Fatal("Delete should succeed once")
	}
	if n := c.DeleteSite("a.test"); n != 1 {
		t.Fatalf("expected favorite copy removed with site, got %d", n)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d", c.Len())
	}
}

func TestSnapshotReplaceAndClear(t *testing.T) {
	c := newCatalog()
	c.Ingest([]record.Raw{primaryRaw(t, "1", "https://a.test/1", "series")}, record.SchemaPrimary)
	snap := c.Snapshot()

	other := newCatalog()
	dup := snap.Records[0]
	other.Replace(catalog.Snapshot{Records: append(snap.Records, dup), Settings: record.Settings{FullPasscode: "z"}})
	if other.Len() != 1 || other.Settings().FullPasscode != "z" {
		t.Fatalf("unexpected replaced catalog len=%d settings=%+v", other.Len(), other.Settings())
	}
	if !other.IsDuplicateLink("https://a.test/1", "series") {
		t.Fatal("replace should rebuild link index")
	}

	if n := c.Clear(); n != 1 || c.Len() != 0 {
		t.Fatalf("Clear removed %d, len %d", n, c.Len())
	}
	if !c.Settings().LoginRequired {
		t.Fatal("Clear must keep settings")
	}
}
