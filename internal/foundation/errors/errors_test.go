package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "unknown category").
			WithSeverity(SeverityFatal).
			WithContext("category", "videos").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "unknown category" {
			t.Errorf("expected message 'unknown category', got %s", err.Message())
		}
		got, exists := err.Context().GetString("category")
		if !exists || got != "videos" {
			t.Errorf("expected context category=videos, got %v", got)
		}
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("run styles: %w", ProcessingError("bad syntax").Build())

		if !IsClassified(err) {
			t.Error("expected wrapped error to be classified")
		}
		if !HasCategory(err, CategoryProcessing) {
			t.Error("expected processing category")
		}
		if HasSeverity(err, SeverityFatal) {
			t.Error("processing errors must not be fatal")
		}
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := WriteError("write failed").Build()
		derived := base.WithContext("path", "build/css")

		if _, ok := base.Context().Get("path"); ok {
			t.Error("original error context was mutated")
		}
		if p, _ := derived.Context().GetString("path"); p != "build/css" {
			t.Errorf("expected derived path context, got %q", p)
		}
	})

	t.Run("Cause with the same text is not repeated", func(t *testing.T) {
		cause := errors.New("unexpected token")
		err := ProcessingError("unexpected token").WithCause(cause).Build()

		if got := err.Error(); got != "[processing:error] unexpected token" {
			t.Errorf("unexpected message %q", got)
		}
		if !errors.Is(err, cause) {
			t.Error("cause must stay reachable")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Wrapping keeps the cause", func(t *testing.T) {
		originalErr := errors.New("permission denied")
		err := WrapError(originalErr, CategoryFileSystem, "promote output").
			Fatal().
			WithContext("path", "build/index.html").
			Build()

		if !errors.Is(err, originalErr) {
			t.Error("expected error to wrap original error")
		}
		if !err.IsFatal() {
			t.Error("expected fatal severity")
		}
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryUserAction},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryNever},
			{"SourceMissingError", SourceMissingError("test"), CategorySourceMissing, SeverityFatal, RetryUserAction},
			{"ProcessingError", ProcessingError("test"), CategoryProcessing, SeverityError, RetryUserAction},
			{"WriteError", WriteError("test"), CategoryFileSystem, SeverityFatal, RetryNever},
			{"BuildError", BuildError("test"), CategoryBuild, SeverityFatal, RetryNever},
			{"NetworkError", NetworkError("test"), CategoryNetwork, SeverityError, RetryBackoff},
			{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				if err.Category() != tt.category {
					t.Errorf("expected category %s, got %s", tt.category, err.Category())
				}
				if err.Severity() != tt.severity {
					t.Errorf("expected severity %s, got %s", tt.severity, err.Severity())
				}
				if err.RetryStrategy() != tt.retry {
					t.Errorf("expected retry strategy %s, got %s", tt.retry, err.RetryStrategy())
				}
			})
		}
	})
}

func TestErrorContextMerge(t *testing.T) {
	ctx1 := ErrorContext{}.Set("stage", "sass").Set("shared", "original")
	ctx2 := ErrorContext{}.Set("file", "style.scss").Set("shared", "overridden")

	merged := ctx1.Merge(ctx2)

	if v, _ := merged.GetString("stage"); v != "sass" {
		t.Errorf("expected stage=sass, got %s", v)
	}
	if v, _ := merged.GetString("file"); v != "style.scss" {
		t.Errorf("expected file=style.scss, got %s", v)
	}
	if v, _ := merged.GetString("shared"); v != "overridden" {
		t.Errorf("expected shared=overridden, got %s", v)
	}
}
