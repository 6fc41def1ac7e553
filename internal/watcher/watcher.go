package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/events"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/glob"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// CategoryRunner re-runs one category. The watch command passes the dev transform.
type CategoryRunner func(ctx context.Context, c config.Category) error

type binding struct {
	category  config.Category
	patterns  []string
	coalescer *Coalescer
}

// Watcher subscribes to every directory the categories' watch patterns can match in
// and feeds matching changes to the per-category coalescers.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	bindings []binding
	patterns []string
	watched  map[string]bool
	ready    chan struct{}
}

// New binds every category of paths to run. Nothing is watched until Run.
func New(paths config.PathConfig, cfg config.WatchConfig, run CategoryRunner, bus *events.Bus, recorder metrics.Recorder) (*Watcher, error) {
	if run == nil {
		return nil, ferrors.ValidationError("category runner is required").Build()
	}
	root, err := filepath.Abs(paths.SourceRoot)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve source root").Build()
	}

	w := &Watcher{root: root, watched: make(map[string]bool), ready: make(chan struct{})}
	for _, c := range config.Categories() {
		resolved, err := paths.Resolve(c)
		if err != nil {
			return nil, err
		}
		co, err := NewCoalescer(CoalescerConfig{
			Category:    string(c),
			QuietWindow: cfg.QuietWindow,
			MaxDelay:    cfg.MaxDelay,
			Bus:         bus,
			Recorder:    recorder,
		}, func(ctx context.Context, _ []string) error { return run(ctx, c) })
		if err != nil {
			return nil, err
		}
		w.bindings = append(w.bindings, binding{category: c, patterns: resolved.Watch, coalescer: co})
		w.patterns = append(w.patterns, resolved.Watch...)
	}
	return w, nil
}

// Ready is closed once the initial directories are subscribed.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is canceled. A source root that does not exist is a
// SourceMissingError.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.root); err != nil {
		return ferrors.SourceMissingError("source root does not exist").
			WithContext("path", w.root).
			Build()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "create file watcher").Build()
	}
	defer func() { _ = fsw.Close() }()
	w.fsw = fsw

	if err := w.subscribe(); err != nil {
		return err
	}
	slog.Info("Watching for changes", logfields.Path(w.root), logfields.Count(len(w.watched)))

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range w.bindings {
		g.Go(func() error { return b.coalescer.Run(gctx) })
	}
	for _, b := range w.bindings {
		<-b.coalescer.Ready()
	}
	close(w.ready)
	g.Go(func() error { return w.loop(gctx) })
	return g.Wait()
}

func (w *Watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(evt)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(evt fsnotify.Event) {
	if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Rename) {
		return
	}
	rel, err := filepath.Rel(w.root, evt.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if glob.Ignored(rel) {
		return
	}
	if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
		// The kernel drops the watch of a removed directory.
		delete(w.watched, rel)
	}

	if evt.Has(fsnotify.Create) {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			w.addDirectory(rel)
			return
		}
	}
	w.dispatch(rel)
}

// addDirectory subscribes to a directory created after Run started and reports the
// files it already contains, which may have been written before the subscription.
func (w *Watcher) addDirectory(rel string) {
	if err := w.subscribe(); err != nil {
		slog.Warn("Failed to watch new directory", logfields.Path(rel), logfields.Error(err))
	}
	_ = fs.WalkDir(os.DirFS(w.root), rel, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != rel && glob.Ignored(p) {
				return fs.SkipDir
			}
			return nil
		}
		w.dispatch(p)
		return nil
	})
}

func (w *Watcher) dispatch(rel string) {
	if glob.Ignored(rel) {
		return
	}
	for _, b := range w.bindings {
		if glob.MatchAny(b.patterns, rel) {
			slog.Debug("Change matched", logfields.Category(string(b.category)), logfields.File(rel))
			b.coalescer.Request(rel)
		}
	}
}

// subscribe adds every matching directory not watched yet.
func (w *Watcher) subscribe() error {
	dirs, err := glob.Dirs(w.root, w.patterns)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if w.watched[d] {
			continue
		}
		if err := w.fsw.Add(filepath.Join(w.root, filepath.FromSlash(d))); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "watch directory").
				WithContext("path", d).
				Build()
		}
		w.watched[d] = true
	}
	return nil
}
