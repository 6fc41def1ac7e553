package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/glob"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
)

// Mode selects between fast development output and optimized production output.
type Mode string

const (
	ModeDev   Mode = "dev"
	ModeBuild Mode = "build"
)

// ErrorPolicy decides what a per-file ProcessingError does to the run.
type ErrorPolicy string

const (
	// PolicyNotify reports the failure, drops the file and lets the run succeed.
	PolicyNotify ErrorPolicy = "notify"
	// PolicyFail aborts the run on the first failure and writes nothing.
	PolicyFail ErrorPolicy = "fail"
)

// Transform describes one category pipeline in one mode. It holds no state between
// runs, so the same value is reused for every build and watch trigger.
type Transform struct {
	Name     string
	Category config.Category
	Mode     Mode
	Paths    config.Resolved
	// BuildRoot hosts the staging directory. It must contain Paths.OutputDir.
	BuildRoot string
	Chain     []Step
	// EmitsMinified marks chains that write a .min sibling next to the full artifact.
	// A full artifact promoted without its sibling removes the old one.
	EmitsMinified bool
	// Text strips a leading byte order mark from sources.
	Text     bool
	Policy   ErrorPolicy
	Observer Observer
	// Ledger, when set, lets a clean run remove what an earlier run wrote for
	// sources that no longer exist.
	Ledger *OutputLedger
}

// Run processes every matched source file and promotes the outputs.
//
// It fails with a SourceMissingError when the source root is absent and with a
// WriteError when outputs cannot be staged or promoted. Per-file ProcessingErrors
// follow Policy.
func (t *Transform) Run(ctx context.Context) error {
	obs := t.Observer
	if obs == nil {
		obs = NoopObserver{}
	}
	ctx = observability.WithTransform(ctx, t.Name)
	start := time.Now()

	obs.TransformStarted(ctx, t)
	observability.DebugContext(ctx, "Transform started", logfields.Mode(string(t.Mode)))

	res, err := t.run(ctx, obs)
	res.Duration = time.Since(start)
	if err != nil {
		obs.TransformFailed(ctx, t, err, res.Duration)
		return err
	}
	obs.TransformCompleted(ctx, t, res)
	observability.InfoContext(ctx, "Transform completed",
		logfields.Mode(string(t.Mode)),
		logfields.Count(len(res.Written)),
		logfields.Duration(res.Duration))
	return nil
}

func (t *Transform) run(ctx context.Context, obs Observer) (Result, error) {
	var res Result

	root := t.Paths.SourceRoot
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return res, ferrors.SourceMissingError("source root does not exist").
			WithCause(err).
			WithContext("transform", t.Name).
			WithContext("path", root).
			Build()
	}

	files, err := glob.Expand(root, t.Paths.Source)
	if err != nil {
		return res, err
	}

	report := func(fails Failures) error {
		if t.Policy == PolicyFail {
			return fails[0]
		}
		for _, f := range fails {
			obs.FileFailed(ctx, t, f)
		}
		res.Failures += len(fails)
		return nil
	}

	assets := make([]*Asset, 0, len(files))
	var readFails Failures
	for _, f := range files {
		abs := filepath.Join(root, filepath.FromSlash(f.Rel))
		data, err := readSource(abs, t.Text)
		if err != nil {
			readFails = append(readFails, Fail("read", &Asset{Source: abs}, err))
			continue
		}
		assets = append(assets, &Asset{Path: f.Path, Source: abs, Contents: data})
	}
	if len(readFails) > 0 {
		if err := report(readFails); err != nil {
			return res, err
		}
	}

	var emitted []*Asset
	for _, step := range t.Chain {
		if err := ctx.Err(); err != nil {
			return res, ferrors.WrapError(err, ferrors.CategoryRuntime, "transform canceled").
				WithContext("transform", t.Name).
				WithContext("stage", step.Name()).
				Build()
		}
		if isEmit(step) {
			for _, a := range assets {
				emitted = append(emitted, a.Clone())
			}
			continue
		}
		out, err := step.Apply(ctx, assets)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return res, ferrors.WrapError(cerr, ferrors.CategoryRuntime, "transform canceled").
					WithContext("transform", t.Name).
					WithContext("stage", step.Name()).
					Build()
			}
			if err := report(asFailures(step.Name(), err)); err != nil {
				return res, err
			}
		}
		assets = out
	}
	emitted = append(emitted, assets...)

	outputs, err := t.outputs(emitted)
	if err != nil {
		return res, err
	}
	p := promotion{
		name:      t.Name,
		buildRoot: t.BuildRoot,
		outputDir: t.Paths.OutputDir,
		outputs:   outputs,
		emitsMin:  t.EmitsMinified,
	}

	if b := batchFrom(ctx); b != nil {
		if len(outputs) > 0 {
			res.Written, err = b.add(p)
		}
		return res, err
	}
	if len(outputs) > 0 {
		if res.Written, err = promote(p); err != nil {
			return res, err
		}
	}
	if t.Ledger != nil && res.Failures == 0 {
		prune(t.BuildRoot, t.Ledger.record(t.Name, res.Written))
	}
	return res, nil
}

// outputs collapses emitted assets by path (last one wins) and applies the category
// exclusions.
func (t *Transform) outputs(emitted []*Asset) ([]*Asset, error) {
	byPath := make(map[string]*Asset, len(emitted))
	for _, a := range emitted {
		p := path.Clean(a.Path)
		if p == "." || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return nil, ferrors.InternalError("asset path escapes output directory").
				WithContext("transform", t.Name).
				WithContext("path", a.Path).
				Build()
		}
		if slices.Contains(t.Paths.Exclude, p) {
			slog.Debug("Skipping excluded output", logfields.Transform(t.Name), logfields.Path(p))
			continue
		}
		a.Path = p
		byPath[p] = a
	}
	out := make([]*Asset, 0, len(byPath))
	for _, a := range byPath {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Asset) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}
