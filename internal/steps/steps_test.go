package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

func apply(t *testing.T, step pipeline.Step, assets ...*pipeline.Asset) []*pipeline.Asset {
	t.Helper()
	out, err := step.Apply(context.Background(), assets)
	require.NoError(t, err)
	return out
}

func asset(p, contents string) *pipeline.Asset {
	return &pipeline.Asset{Path: p, Source: p, Contents: []byte(contents)}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}
