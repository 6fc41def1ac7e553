package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Asset is one file travelling through a chain.
type Asset struct {
	// Path is the slash path the asset is written to, relative to the output dir.
	Path string
	// Source is the file the asset was read from; empty for generated assets.
	Source   string
	Contents []byte
}

// Clone returns a shallow copy. Steps replace Contents instead of mutating it,
// so sharing the backing array is safe.
func (a *Asset) Clone() *Asset {
	c := *a
	return &c
}

// Ext returns the lower-case extension of Path including the dot.
func (a *Asset) Ext() string {
	return strings.ToLower(path.Ext(a.Path))
}

// Step is one named link in a processing chain. The name is the stage reported in
// notifications when the step fails.
type Step interface {
	Name() string
	Apply(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

type stepFunc struct {
	name string
	fn   func(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Apply(ctx context.Context, assets []*Asset) ([]*Asset, error) {
	return s.fn(ctx, assets)
}

// StepFunc turns a function over the whole asset set into a Step.
func StepFunc(name string, fn func(ctx context.Context, assets []*Asset) ([]*Asset, error)) Step {
	return stepFunc{name: name, fn: fn}
}

// FileFunc processes a single asset in place. Extra assets it returns are added
// right after it (webp siblings, for example).
type FileFunc func(ctx context.Context, a *Asset) ([]*Asset, error)

// PerFile turns a FileFunc into a Step. An asset whose call fails is dropped from the
// set and reported in the returned Failures; the others carry on.
func PerFile(name string, fn FileFunc) Step {
	return StepFunc(name, func(ctx context.Context, assets []*Asset) ([]*Asset, error) {
		out := make([]*Asset, 0, len(assets))
		var failures Failures
		for _, a := range assets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			extra, err := fn(ctx, a)
			if err != nil {
				failures = append(failures, Fail(name, a, err))
				continue
			}
			out = append(out, a)
			out = append(out, extra...)
		}
		if len(failures) > 0 {
			return out, failures
		}
		return out, nil
	})
}

// EmitStepName is the stage name of write checkpoints.
const EmitStepName = "write"

type emitStep struct{}

func (emitStep) Name() string { return EmitStepName }

func (emitStep) Apply(_ context.Context, assets []*Asset) ([]*Asset, error) { return assets, nil }

// Emit returns the checkpoint step: assets present when the chain reaches it are
// written as they are at that point. The chain's final asset set is always written.
func Emit() Step { return emitStep{} }

func isEmit(s Step) bool {
	_, ok := s.(emitStep)
	return ok
}

// Failures collects the per-file processing errors of one step.
type Failures []*ferrors.ClassifiedError

func (f Failures) Error() string {
	switch len(f) {
	case 0:
		return "no failures"
	case 1:
		return f[0].Error()
	default:
		return fmt.Sprintf("%d files failed, first: %v", len(f), f[0])
	}
}

func (f Failures) Unwrap() []error {
	errs := make([]error, len(f))
	for i, e := range f {
		errs[i] = e
	}
	return errs
}

// Fail classifies err as a ProcessingError of stage for asset a. An err that is
// already classified keeps its category and message and only gains the stage and
// file it lacks.
func Fail(stage string, a *Asset, err error) *ferrors.ClassifiedError {
	file := ""
	if a != nil {
		file = a.Source
		if file == "" {
			file = a.Path
		}
	}
	if ce, ok := err.(*ferrors.ClassifiedError); ok {
		if _, set := ce.Context()["stage"]; !set {
			ce = ce.WithContext("stage", stage)
		}
		if _, set := ce.Context()["file"]; !set {
			ce = ce.WithContext("file", file)
		}
		return ce
	}
	return ferrors.ProcessingError(err.Error()).
		WithCause(err).
		WithContext("stage", stage).
		WithContext("file", file).
		Build()
}

// asFailures normalises a step error into per-file failures.
func asFailures(stage string, err error) Failures {
	if f, ok := err.(Failures); ok {
		return f
	}
	return Failures{Fail(stage, nil, err)}
}
