package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// StagePrefix names the temporary directories transforms write into before promotion.
const StagePrefix = ".assetpipe-stage-"

// promotion is one transform's staged outputs waiting to be moved into place.
type promotion struct {
	name      string
	stage     string
	buildRoot string
	outputDir string
	outputs   []*Asset
	// emitsMin removes a .min sibling left over from an earlier run when the full
	// artifact is promoted without one.
	emitsMin bool
}

// promote writes outputs into a fresh staging directory inside buildRoot and then
// renames each file into outputDir. A failure while staging leaves outputDir untouched.
// The staging directory is always removed.
func promote(p promotion) ([]string, error) {
	if err := os.MkdirAll(p.buildRoot, 0o755); err != nil {
		return nil, writeError(err, "create build root", p.buildRoot)
	}
	stage, err := os.MkdirTemp(p.buildRoot, StagePrefix+p.name+"-")
	if err != nil {
		return nil, writeError(err, "create staging directory", p.buildRoot)
	}
	defer removeStage(stage)

	p.stage = stage
	if err := stageOutputs(p.stage, p.outputs); err != nil {
		return nil, err
	}
	return p.move()
}

func stageOutputs(stage string, outputs []*Asset) error {
	for _, a := range outputs {
		p := filepath.Join(stage, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return writeError(err, "stage output", a.Path)
		}
		if err := os.WriteFile(p, a.Contents, 0o644); err != nil {
			return writeError(err, "stage output", a.Path)
		}
	}
	return nil
}

// move renames the staged files into outputDir and returns their build-root-relative
// paths.
func (p promotion) move() ([]string, error) {
	written := make([]string, 0, len(p.outputs))
	for _, a := range p.outputs {
		src := filepath.Join(p.stage, filepath.FromSlash(a.Path))
		dst := filepath.Join(p.outputDir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return written, writeError(err, "promote output", dst)
		}
		if err := os.Rename(src, dst); err != nil {
			return written, writeError(err, "promote output", dst)
		}
		written = append(written, p.rel(a.Path))
	}
	if p.emitsMin {
		p.removeStaleMinified()
	}
	slog.Debug("Promoted staged outputs", logfields.Path(p.outputDir), logfields.Count(len(written)))
	return written, nil
}

func (p promotion) rel(assetPath string) string {
	dst := filepath.Join(p.outputDir, filepath.FromSlash(assetPath))
	rel, err := filepath.Rel(p.buildRoot, dst)
	if err != nil {
		return filepath.ToSlash(dst)
	}
	return filepath.ToSlash(rel)
}

func (p promotion) removeStaleMinified() {
	present := make(map[string]bool, len(p.outputs))
	for _, a := range p.outputs {
		present[a.Path] = true
	}
	for _, a := range p.outputs {
		minPath, ok := MinifiedPath(a.Path)
		if !ok || present[minPath] {
			continue
		}
		stale := filepath.Join(p.outputDir, filepath.FromSlash(minPath))
		if err := os.Remove(stale); err == nil {
			slog.Debug("Removed stale minified output", logfields.Path(p.rel(minPath)))
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove stale minified output", logfields.Path(stale), logfields.Error(err))
		}
	}
}

// MinifiedPath returns the .min sibling of a full artifact path. Paths that are
// already minified have none.
func MinifiedPath(p string) (string, bool) {
	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	if ext == "" || strings.HasSuffix(stem, ".min") {
		return "", false
	}
	return stem + ".min" + ext, true
}

func removeStage(stage string) {
	if err := os.RemoveAll(stage); err != nil {
		slog.Warn("Failed to remove staging directory", logfields.Path(stage), logfields.Error(err))
	}
}

func writeError(err error, msg, path string) error {
	return ferrors.WriteError(msg).
		WithCause(err).
		WithContext("path", path).
		Build()
}

// Batch holds the staged outputs of several transforms and promotes them together,
// so a task that fails part way leaves the build root as it was.
type Batch struct {
	buildRoot string

	mu      sync.Mutex
	dir     string
	pending []promotion
}

// NewBatch returns an empty batch staging inside buildRoot. The staging directory
// is created on first use.
func NewBatch(buildRoot string) *Batch {
	return &Batch{buildRoot: buildRoot}
}

type batchKey struct{}

// WithBatch makes every transform run under ctx stage into b instead of promoting.
func WithBatch(ctx context.Context, b *Batch) context.Context {
	return context.WithValue(ctx, batchKey{}, b)
}

func batchFrom(ctx context.Context) *Batch {
	b, _ := ctx.Value(batchKey{}).(*Batch)
	return b
}

func (b *Batch) root() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dir != "" {
		return b.dir, nil
	}
	if err := os.MkdirAll(b.buildRoot, 0o755); err != nil {
		return "", writeError(err, "create build root", b.buildRoot)
	}
	dir, err := os.MkdirTemp(b.buildRoot, StagePrefix+"batch-")
	if err != nil {
		return "", writeError(err, "create staging directory", b.buildRoot)
	}
	b.dir = dir
	return dir, nil
}

// add stages p and returns the paths it will promote to.
func (b *Batch) add(p promotion) ([]string, error) {
	root, err := b.root()
	if err != nil {
		return nil, err
	}
	stage, err := os.MkdirTemp(root, p.name+"-")
	if err != nil {
		return nil, writeError(err, "create staging directory", root)
	}
	p.stage = stage
	if err := stageOutputs(stage, p.outputs); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.pending = append(b.pending, p)
	b.mu.Unlock()

	paths := make([]string, 0, len(p.outputs))
	for _, a := range p.outputs {
		paths = append(paths, p.rel(a.Path))
	}
	return paths, nil
}

// Commit promotes everything staged so far and removes the staging directory.
func (b *Batch) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.reset()

	slices.SortFunc(b.pending, func(x, y promotion) int { return strings.Compare(x.name, y.name) })
	count := 0
	for _, p := range b.pending {
		written, err := p.move()
		count += len(written)
		if err != nil {
			return err
		}
	}
	slog.Debug("Committed staged build", logfields.Path(b.buildRoot), logfields.Count(count))
	return nil
}

// Discard drops everything staged so far.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) > 0 {
		slog.Debug("Discarding staged build", logfields.Count(len(b.pending)))
	}
	b.reset()
}

func (b *Batch) reset() {
	if b.dir != "" {
		removeStage(b.dir)
	}
	b.dir = ""
	b.pending = nil
}

// OutputLedger remembers what each transform last promoted, so a rerun removes
// outputs whose sources have gone away.
type OutputLedger struct {
	mu   sync.Mutex
	last map[string][]string
}

func NewOutputLedger() *OutputLedger {
	return &OutputLedger{last: make(map[string][]string)}
}

// record stores written for the transform and returns what the previous run wrote
// that this one did not.
func (l *OutputLedger) record(name string, written []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.last[name]
	l.last[name] = slices.Clone(written)
	var gone []string
	for _, p := range prev {
		if !slices.Contains(written, p) {
			gone = append(gone, p)
		}
	}
	return gone
}

// prune removes build-root-relative paths, ignoring ones already gone.
func prune(buildRoot string, paths []string) {
	for _, p := range paths {
		err := os.Remove(filepath.Join(buildRoot, filepath.FromSlash(p)))
		switch {
		case err == nil:
			slog.Debug("Removed output of deleted source", logfields.Path(p))
		case !errors.Is(err, os.ErrNotExist):
			slog.Warn("Failed to remove stale output", logfields.Path(p), logfields.Error(err))
		}
	}
}
