package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cinecat/internal/catalog"
	"cinecat/internal/config"
	"cinecat/internal/failure"
	"cinecat/internal/fileutil"
	"cinecat/internal/logging"
	"cinecat/internal/record"
	"cinecat/internal/shard"
)

// ExportResult lists what an export wrote.
type ExportResult struct {
	Dir     string
	Files   []string
	Initial int
	Later   int
}

// Exporter writes a catalog snapshot as numbered shard files.
type Exporter struct {
	Dir         string
	CategoryCap int
	Partitioner Partitioner
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewExporter builds an exporter for the configured export profile.
func NewExporter(cfg *config.Config, logger *slog.Logger) *Exporter {
	return &Exporter{
		Dir:         cfg.ChunkExportDir(),
		CategoryCap: cfg.Export.CategoryCap,
		Partitioner: Partitioner{Ceiling: cfg.Export.CeilingBytes},
		Now:         time.Now,
		Logger:      logging.NewComponentLogger(logger, "export"),
	}
}

// Export writes shard 1 with up to CategoryCap records per category plus
// settings, then the remaining records split into size-bounded shards 2..N.
// Shard files beyond N left by an earlier export are removed.
func (e *Exporter) Export(snap catalog.Snapshot) (ExportResult, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	logger := e.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	lastSaved := shard.Timestamp(now())
	settings := snap.Settings

	initial, later := splitByCategory(record.ToWireAll(snap.Records), e.CategoryCap)
	result := ExportResult{Dir: e.Dir, Initial: len(initial), Later: len(later)}

	first, err := shard.EncodeIndent(shard.Chunk{MoviesInfo: initial, Settings: &settings, LastSaved: lastSaved})
	if err != nil {
		return result, err
	}
	files := [][]byte{first}

	bound := len(later) + 1
	encode := func(group []record.Wire, number, total int) ([]byte, error) {
		return shard.EncodeIndent(shard.Chunk{MoviesInfo: group, LastSaved: lastSaved, ChunkNumber: number, TotalChunks: total})
	}
	empty, err := encode(nil, bound, bound)
	if err != nil {
		return result, err
	}
	groups, err := e.Partitioner.Split(later, len(empty), func(group []record.Wire, _ bool) (int, error) {
		data, err := encode(group, bound, bound)
		return len(data), err
	})
	if err != nil {
		return result, err
	}
	total := len(groups) + 1
	for i, group := range groups {
		data, err := encode(group, i+2, total)
		if err != nil {
			return result, err
		}
		files = append(files, data)
	}

	for i, data := range files {
		path := filepath.Join(e.Dir, shard.ChunkName(i+1))
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return result, failure.Wrap(failure.ErrStorage, "export", "write", path, err)
		}
		result.Files = append(result.Files, path)
	}
	if err := removeStaleShards(e.Dir, total); err != nil {
		return result, err
	}

	logger.Info("catalog exported",
		logging.String("dir", e.Dir),
		logging.Int("files", len(result.Files)),
		logging.Int("initial_records", result.Initial),
		logging.Int("later_records", result.Later),
	)
	return result, nil
}

// splitByCategory keeps record order and moves each record past the first
// limit of its category into the second slice.
func splitByCategory(wires []record.Wire, limit int) ([]record.Wire, []record.Wire) {
	counts := make(map[string]int)
	var initial, later []record.Wire
	for _, w := range wires {
		category := w.Category
		if category == "" {
			category = record.DefaultCategory
		}
		if limit <= 0 || counts[category] < limit {
			initial = append(initial, w)
			counts[category]++
			continue
		}
		later = append(later, w)
	}
	return initial, later
}

func removeStaleShards(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return failure.Wrap(failure.ErrStorage, "export", "list", dir, err)
	}
	for _, entry := range entries {
		n, ok := shardNumber(entry.Name())
		if !ok || n <= keep {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return failure.Wrap(failure.ErrStorage, "export", "remove stale", path, err)
		}
	}
	return nil
}

func shardNumber(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, shard.ChunkPrefix)
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".json")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// WriteSnapshot writes the full catalog as a single file with an exportDate.
func WriteSnapshot(path string, snap catalog.Snapshot, now time.Time) error {
	settings := snap.Settings
	data, err := shard.EncodeIndent(shard.Chunk{
		MoviesInfo: record.ToWireAll(snap.Records),
		Settings:   &settings,
		ExportDate: shard.Timestamp(now),
	})
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return failure.Wrap(failure.ErrStorage, "export", "write", path, err)
	}
	return nil
}

// sectionEntry is the portable shape of a section export. Ids, flags, and
// dates are left out so an import creates fresh copies.
type sectionEntry struct {
	Title    string `json:"movies_name"`
	ImageURL string `json:"movies_img"`
	Link     string `json:"movies_href"`
	Category string `json:"movies_category,omitempty"`
}

// SectionFileName names a section export written at now.
func SectionFileName(kind, name string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d.json", kind, name, now.UnixMilli())
}

// WriteSection writes recs as a portable section file. Categories are kept
// only when withCategory is set.
func WriteSection(path string, recs []record.Record, withCategory bool) error {
	entries := make([]sectionEntry, len(recs))
	for i, rec := range recs {
		entries[i] = sectionEntry{Title: rec.Title, ImageURL: rec.ImageURL, Link: rec.Link}
		if withCategory {
			entries[i].Category = rec.Category
		}
	}
	data, err := json.MarshalIndent(map[string]any{"movies_info": entries}, "", "  ")
	if err != nil {
		return failure.Wrap(failure.ErrStorage, "export", "encode", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return failure.Wrap(failure.ErrStorage, "export", "write", path, err)
	}
	return nil
}

// ReadImportFile decodes a user-supplied catalog file.
func ReadImportFile(path string) (shard.Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return shard.Document{}, failure.Wrap(failure.ErrNotFound, "import", "read", path, err)
	}
	if err != nil {
		return shard.Document{}, failure.Wrap(failure.ErrStorage, "import", "read", path, err)
	}
	doc, err := shard.Decode(data)
	if err != nil {
		return shard.Document{}, fmt.Errorf("import %s: %w", path, err)
	}
	return doc, nil
}
