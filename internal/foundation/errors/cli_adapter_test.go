package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"config error", ConfigError("unknown category").Build(), 7},
		{"validation error", ValidationError("bad flag").Build(), 2},
		{"processing error", ProcessingError("bad scss").Build(), 11},
		{"source missing", SourceMissingError("no src").Build(), 11},
		{"write error", WriteError("read-only").Build(), 11},
		{"wrapped write error", fmt.Errorf("task build: %w", WriteError("read-only").Build()), 11},
		{"runtime error", RuntimeError("listener").Build(), 12},
		{"unclassified error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	err := ProcessingError("compile failed").
		WithContext("stage", "sass").
		WithContext("file", "scss/style.scss").
		Build()

	got := adapter.FormatError(err)
	for _, want := range []string{"compile failed", "stage sass", "scss/style.scss"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatError() = %q, missing %q", got, want)
		}
	}

	if got := adapter.FormatError(errors.New("plain")); got != "Error: plain" {
		t.Errorf("unexpected unclassified format %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	var code int
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	adapter.out = &out
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(BuildError("build failed").Build())

	if code != 11 {
		t.Errorf("expected exit code 11, got %d", code)
	}
	if !strings.Contains(out.String(), "build failed") {
		t.Errorf("expected message on stderr, got %q", out.String())
	}
}
