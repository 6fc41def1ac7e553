package pipeline

import (
	"context"
	"time"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Result summarises a successful transform run.
type Result struct {
	// Written holds build-root-relative slash paths, sorted.
	Written  []string
	Failures int
	Duration time.Duration
}

// Observer receives callbacks around a transform run. The session implementation
// forwards them to the event bus, the notifier and the metrics recorder.
type Observer interface {
	TransformStarted(ctx context.Context, t *Transform)
	FileFailed(ctx context.Context, t *Transform, err *ferrors.ClassifiedError)
	TransformCompleted(ctx context.Context, t *Transform, res Result)
	TransformFailed(ctx context.Context, t *Transform, err error, d time.Duration)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) TransformStarted(context.Context, *Transform)                      {}
func (NoopObserver) FileFailed(context.Context, *Transform, *ferrors.ClassifiedError)  {}
func (NoopObserver) TransformCompleted(context.Context, *Transform, Result)            {}
func (NoopObserver) TransformFailed(context.Context, *Transform, error, time.Duration) {}
