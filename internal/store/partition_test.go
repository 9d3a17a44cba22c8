package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cinecat/internal/failure"
	"cinecat/internal/record"
)

func wires(n int, titleLen int) []record.Wire {
	out := make([]record.Wire, n)
	for i := range out {
		out[i] = record.Wire{
			ID:    fmt.Sprintf("w-%03d", i),
			Title: strings.Repeat("t", titleLen),
			Link:  fmt.Sprintf("https://example.com/%d", i),
		}
	}
	return out
}

func jsonMeasure(group []record.Wire, _ bool) (int, error) {
	data, err := json.Marshal(map[string]any{"movies_info": group})
	return len(data), err
}

func TestSplitKeepsOrderAndCeiling(t *testing.T) {
	p := Partitioner{Ceiling: 1000, Reserved: 100}
	in := wires(40, 20)
	groups, err := p.Split(in, len(`{"movies_info":[]}`), jsonMeasure)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) < 2 {
		t.Fatalf("expected several groups, got %d", len(groups))
	}
	var flat []record.Wire
	for i, g := range groups {
		size, _ := jsonMeasure(g, i == 0)
		if size > p.Ceiling {
			t.Fatalf("group %d is %d bytes", i, size)
		}
		flat = append(flat, g...)
	}
	if len(flat) != len(in) {
		t.Fatalf("lost records: got %d want %d", len(flat), len(in))
	}
	for i := range in {
		if flat[i].ID != in[i].ID {
			t.Fatalf("order changed at %d: %s vs %s", i, flat[i].ID, in[i].ID)
		}
	}
}

// requireDense fails when a group could have taken the next record and still
// fit, which would mean the split wasted space.
func requireDense(t *testing.T, groups [][]record.Wire, limit int) {
	t.Helper()
	for i := 0; i+1 < len(groups); i++ {
		grown := append(append([]record.Wire(nil), groups[i]...), groups[i+1][0])
		size, _ := jsonMeasure(grown, i == 0)
		if size <= limit {
			t.Fatalf("group %d has room for the next record (%d <= %d bytes)", i, size, limit)
		}
	}
}

func TestSplitPacksUnderestimatedRecords(t *testing.T) {
	// The first record is tiny, so the estimate is far too optimistic for the rest.
	in := append(wires(1, 1), wires(60, 120)...)
	p := Partitioner{Ceiling: 1200}
	groups, err := p.Split(in, 20, jsonMeasure)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	total := 0
	for i, g := range groups {
		size, _ := jsonMeasure(g, false)
		if size > p.Ceiling {
			t.Fatalf("group %d is %d bytes", i, size)
		}
		total += len(g)
	}
	if total != len(in) {
		t.Fatalf("lost records: got %d want %d", total, len(in))
	}
	requireDense(t, groups, p.Ceiling)
}

func TestSplitPacksGrowingRecords(t *testing.T) {
	// Ids and links grow with the index, so every later record is larger than
	// the sampled first one.
	in := make([]record.Wire, 0, 2000)
	for i := 1; i <= 2000; i++ {
		in = append(in, record.Wire{
			ID:    fmt.Sprintf("g-%d", i),
			Title: fmt.Sprintf("title %d", i),
			Link:  fmt.Sprintf("https://g.example.com/watch/%d", i),
		})
	}
	p := Partitioner{Ceiling: 8192, Reserved: 192}
	groups, err := p.Split(in, len(`{"movies_info":[]}`), jsonMeasure)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	limit := p.Ceiling - p.Reserved
	for i, g := range groups {
		if size, _ := jsonMeasure(g, i == 0); size > limit {
			t.Fatalf("group %d is %d bytes, limit %d", i, size, limit)
		}
	}
	requireDense(t, groups, limit)

	whole, _ := jsonMeasure(in, false)
	if want := (whole + limit - 1) / limit; len(groups) > want+1 {
		t.Fatalf("expected about %d groups for %d bytes, got %d", want, whole, len(groups))
	}
}

func TestSplitRejectsOversizedRecord(t *testing.T) {
	p := Partitioner{Ceiling: 200}
	_, err := p.Split(wires(3, 500), 20, jsonMeasure)
	if !errors.Is(err, failure.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSplitEmpty(t *testing.T) {
	groups, err := Partitioner{Ceiling: 10}.Split(nil, 0, jsonMeasure)
	if err != nil || groups != nil {
		t.Fatalf("expected no groups, got %v %v", groups, err)
	}
}

func TestChunkKeys(t *testing.T) {
	if ChunkKey(1) != PrimaryKey || ChunkKey(3) != "app_database_chunk3" {
		t.Fatalf("unexpected chunk keys: %q %q", ChunkKey(1), ChunkKey(3))
	}
	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"app_database_chunk2", 2, true},
		{"app_database_chunk12", 12, true},
		{"app_database_chunks_count", 0, false},
		{"app_database_chunk1", 0, false},
		{"app_database", 0, false},
	}
	for _, tt := range tests {
		n, ok := chunkIndex(tt.key)
		if n != tt.want || ok != tt.ok {
			t.Fatalf("chunkIndex(%q) = %d,%v want %d,%v", tt.key, n, ok, tt.want, tt.ok)
		}
	}
}
