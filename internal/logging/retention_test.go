package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cinecat/internal/logging"
)

func writeAged(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestRotateStaleMovesPreviousDayLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logging.LogFileName)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	writeAged(t, path, now.AddDate(0, 0, -1))

	rotated, err := logging.RotateStale(path, now)
	if err != nil {
		t.Fatalf("RotateStale returned error: %v", err)
	}
	if want := filepath.Join(dir, "cinecat-20260309.log"); rotated != want {
		t.Fatalf("rotated = %q, want %q", rotated, want)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected live log to be moved, stat err = %v", err)
	}
	if _, err := os.Stat(rotated); err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
}

func TestRotateStaleKeepsTodaysLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logging.LogFileName)
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.Local)
	writeAged(t, path, now.Add(-time.Hour))

	rotated, err := logging.RotateStale(path, now)
	if err != nil {
		t.Fatalf("RotateStale returned error: %v", err)
	}
	if rotated != "" {
		t.Fatalf("expected no rotation, got %q", rotated)
	}
	if _, err := logging.RotateStale(filepath.Join(dir, "missing.log"), now); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestCleanupOldLogsPrunesExpiredRotations(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, logging.LogFileName)
	old := filepath.Join(dir, "cinecat-20250101.log")
	recent := filepath.Join(dir, "cinecat-20260301.log")
	other := filepath.Join(dir, "notes.txt")
	ancient := time.Now().AddDate(0, 0, -90)
	writeAged(t, live, ancient)
	writeAged(t, old, ancient)
	writeAged(t, recent, time.Now().AddDate(0, 0, -2))
	writeAged(t, other, ancient)

	logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: logging.RotatedPattern(logging.LogFileName),
		Exclude: []string{live},
	})

	tests := []struct {
		path string
		kept bool
	}{
		{live, true},
		{old, false},
		{recent, true},
		{other, true},
	}
	for _, tc := range tests {
		_, err := os.Stat(tc.path)
		if kept := err == nil; kept != tc.kept {
			t.Fatalf("%s kept = %v, want %v", filepath.Base(tc.path), kept, tc.kept)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "cinecat-20250101.log")
	writeAged(t, old, time.Now().AddDate(0, 0, -400))

	logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir, Pattern: "cinecat-*.log"})

	if _, err := os.Stat(old); err != nil {
		t.Fatalf("retention 0 should keep files: %v", err)
	}
}
