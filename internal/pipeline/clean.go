package pipeline

import (
	"context"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
)

// Clean removes the build root and everything below it. A missing root is not an error.
func Clean(ctx context.Context, buildRoot string) error {
	cleaned := filepath.Clean(buildRoot)
	if buildRoot == "" || cleaned == "." || cleaned == string(filepath.Separator) {
		return ferrors.ConfigError("refusing to clean build root").
			WithContext("path", buildRoot).
			Build()
	}
	if err := os.RemoveAll(cleaned); err != nil {
		return ferrors.WriteError("remove build root").
			WithCause(err).
			WithContext("path", cleaned).
			Build()
	}
	observability.DebugContext(ctx, "Cleaned build root", logfields.Path(cleaned))
	return nil
}
