package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cinecat/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cinecat.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 5, logs.Filter{})
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestFilterMatches(t *testing.T) {
	info := `{"level":"info","msg":"batch","component":"ingest","session_id":"s1"}`
	warn := `{"level":"warn","msg":"save","component":"store","session_id":"s2"}`

	tests := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty filter", logs.Filter{}, "plain text", true},
		{"plain text with filter", logs.Filter{SessionID: "s1"}, "plain text", false},
		{"session match", logs.Filter{SessionID: "s1"}, info, true},
		{"session mismatch", logs.Filter{SessionID: "s1"}, warn, false},
		{"component case", logs.Filter{Component: "STORE"}, warn, true},
		{"level below", logs.Filter{Level: "warn"}, info, false},
		{"level at", logs.Filter{Level: "warn"}, warn, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.line); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var (
		mu    sync.Mutex
		lines []string
	)
	got := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, logs.Filter{}, func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
			if line == "later" {
				close(got)
			}
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not deliver appended line")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 {
		t.Fatalf("expected only the appended line, got %#v", lines)
	}
}
