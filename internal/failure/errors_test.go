package failure_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cinecat/internal/failure"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := failure.Wrap(failure.ErrStorage, "store", "save", "write chunk", base)
	if !errors.Is(err, failure.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"store", "save", "write chunk", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := failure.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, failure.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "unspecified failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIsAbsent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", failure.Wrap(failure.ErrNotFound, "fetcher", "get", "shard 3", nil), true},
		{"timeout", failure.Wrap(failure.ErrTimeout, "fetcher", "get", "", nil), true},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), true},
		{"malformed", failure.Wrap(failure.ErrMalformed, "shard", "decode", "", nil), false},
		{"plain", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failure.IsAbsent(tt.err); got != tt.want {
				t.Fatalf("IsAbsent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
