package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	helpers "git.home.luguber.info/inful/assetpipe/internal/testutil/testutils"
)

func startWatcher(t *testing.T, src string) <-chan config.Category {
	t.Helper()
	runs := make(chan config.Category, 32)
	paths := config.DefaultPaths().WithRoots(src, filepath.Join(t.TempDir(), "build"))
	w, err := New(paths, config.WatchConfig{QuietWindow: 40 * time.Millisecond, MaxDelay: 500 * time.Millisecond},
		func(_ context.Context, c config.Category) error {
			runs <- c
			return nil
		}, nil, nil)
	require.NoError(t, err)

	go func() { _ = w.Run(t.Context()) }()
	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher")
	}
	return runs
}

func expectRun(t *testing.T, runs <-chan config.Category, want config.Category) {
	t.Helper()
	select {
	case got := <-runs:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s run", want)
	}
}

func expectQuiet(t *testing.T, runs <-chan config.Category) {
	t.Helper()
	select {
	case got := <-runs:
		t.Fatalf("unexpected %s run", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_CoalescesWritesPerCategory(t *testing.T) {
	src := t.TempDir()
	helpers.WriteTree(t, src, map[string]string{
		"index.html":       "<p>hi</p>",
		"scss/style.scss":  "a { color: red; }",
		"scss/_vars.scss":  "$c: red;",
		"js/scripts.js":    "console.log(1)",
		"img/logo.png":     "png",
		"fonts/font.woff2": "woff",
	})
	runs := startWatcher(t, src)

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(src, "scss", "_vars.scss"), []byte{'$', byte('a' + i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}
	expectRun(t, runs, config.CategoryStyles)
	expectQuiet(t, runs)

	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte("<p>changed</p>"), 0o644))
	expectRun(t, runs, config.CategoryMarkup)
	expectQuiet(t, runs)
}

func TestWatcher_IgnoresEditorTemporaries(t *testing.T) {
	src := t.TempDir()
	helpers.WriteTree(t, src, map[string]string{"scss/style.scss": "a {}"})
	runs := startWatcher(t, src)

	require.NoError(t, os.WriteFile(filepath.Join(src, "scss", ".#style.scss"), []byte("lock"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "scss", "style.scss.swp"), []byte("swap"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "scss", "style.scss~"), []byte("backup"), 0o644))
	expectQuiet(t, runs)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	src := t.TempDir()
	helpers.WriteTree(t, src, map[string]string{"img/logo.png": "png"})
	runs := startWatcher(t, src)

	dir := filepath.Join(src, "img", "photos")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpg"), 0o644))
	expectRun(t, runs, config.CategoryImages)

	// Drain a possible second run caused by the write landing after the subscription.
	time.Sleep(100 * time.Millisecond)
	for len(runs) > 0 {
		<-runs
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("png"), 0o644))
	expectRun(t, runs, config.CategoryImages)
}

func TestWatcher_SourceMissing(t *testing.T) {
	paths := config.DefaultPaths().WithRoots(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	w, err := New(paths, config.WatchConfig{QuietWindow: time.Millisecond, MaxDelay: time.Second},
		func(context.Context, config.Category) error { return nil }, nil, nil)
	require.NoError(t, err)

	err = w.Run(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategorySourceMissing))
}
