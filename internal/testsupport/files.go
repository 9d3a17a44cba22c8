package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cinecat/internal/config"
	"cinecat/internal/shard"
)

// Records builds n primary-schema records with ids prefix-1..prefix-n and
// distinct links.
func Records(prefix string, n int, category string) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, map[string]any{
			"movies_id":       fmt.Sprintf("%s-%d", prefix, i),
			"movies_name":     fmt.Sprintf("%s title %d", prefix, i),
			"movies_href":     fmt.Sprintf("https://%s.example.com/watch/%d", prefix, i),
			"movies_category": category,
		})
	}
	return out
}

// WriteShard writes doc as shard n under the configured source chunk directory.
func WriteShard(t testing.TB, cfg *config.Config, n int, doc any) string {
	t.Helper()
	return writeJSON(t, filepath.Join(cfg.Source.Dir, cfg.Source.ChunkDir, shard.ChunkName(n)), doc)
}

// WriteLegacy writes doc as the single-file catalog of the configured source.
func WriteLegacy(t testing.TB, cfg *config.Config, doc any) string {
	t.Helper()
	return writeJSON(t, filepath.Join(cfg.Source.Dir, cfg.Source.LegacyName), doc)
}

// WriteFile writes raw contents to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeJSON(t testing.TB, path string, doc any) string {
	t.Helper()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	WriteFile(t, path, data)
	return path
}
