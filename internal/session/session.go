// Package session holds the process-scoped collaborators shared by tasks, the
// watcher and the dev server, and turns transform callbacks into bus events,
// notifications and metrics.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/events"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/notify"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

const publishTimeout = 5 * time.Second

// Session is created once per process and passed to every component that reports
// build activity.
type Session struct {
	Bus      *events.Bus
	Notifier *notify.Notifier
	Recorder metrics.Recorder
	// Commit is the project's HEAD commit, empty outside a git work tree.
	Commit string
}

// New fills nil collaborators with no-op implementations.
func New(bus *events.Bus, notifier *notify.Notifier, recorder metrics.Recorder, commit string) *Session {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Session{Bus: bus, Notifier: notifier, Recorder: recorder, Commit: commit}
}

func (s *Session) publish(ctx context.Context, evt any) {
	// A canceled build still reports its own failure; slow subscribers are bounded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Bus.Publish(ctx, evt); err != nil {
		slog.Debug("Event not published", logfields.Error(err))
	}
}

// TransformStarted implements pipeline.Observer.
func (s *Session) TransformStarted(context.Context, *pipeline.Transform) {}

// FileFailed implements pipeline.Observer.
func (s *Session) FileFailed(ctx context.Context, t *pipeline.Transform, err *ferrors.ClassifiedError) {
	stage, _ := err.Context().GetString("stage")
	file, _ := err.Context().GetString("file")
	buildID := observability.BuildID(ctx)

	s.Recorder.IncProcessingError(t.Name, stage)
	s.Notifier.Notify(ctx, notify.Notification{
		Title:     t.Name + ": " + stage + " failed",
		BuildID:   buildID,
		Transform: t.Name,
		Stage:     stage,
		File:      file,
		Message:   err.Message(),
		Severity:  notify.SeverityWarning,
	})
	s.publish(ctx, events.TransformFailed{
		BuildID:   buildID,
		Transform: t.Name,
		Category:  string(t.Category),
		Mode:      string(t.Mode),
		Stage:     stage,
		File:      file,
		Message:   err.Message(),
		FailedAt:  time.Now(),
	})
}

// TransformCompleted implements pipeline.Observer.
func (s *Session) TransformCompleted(ctx context.Context, t *pipeline.Transform, res pipeline.Result) {
	s.Recorder.ObserveTransformDuration(t.Name, res.Duration)
	s.Recorder.IncTransformResult(t.Name, metrics.ResultFor(nil, res.Failures > 0))
	s.publish(ctx, events.TransformCompleted{
		BuildID:     observability.BuildID(ctx),
		Transform:   t.Name,
		Category:    string(t.Category),
		Mode:        string(t.Mode),
		Written:     res.Written,
		Failures:    res.Failures,
		Duration:    res.Duration,
		CompletedAt: time.Now(),
	})
}

// TransformFailed implements pipeline.Observer.
func (s *Session) TransformFailed(ctx context.Context, t *pipeline.Transform, err error, d time.Duration) {
	s.Recorder.ObserveTransformDuration(t.Name, d)
	s.Recorder.IncTransformResult(t.Name, metrics.ResultFor(err, false))

	stage, file, msg := "", "", err.Error()
	if ce, ok := ferrors.AsClassified(err); ok {
		stage, _ = ce.Context().GetString("stage")
		file, _ = ce.Context().GetString("file")
		msg = ce.Message()
	}
	if !errors.Is(err, context.Canceled) {
		s.Notifier.Notify(ctx, notify.Notification{
			Title:     t.Name + " failed",
			BuildID:   observability.BuildID(ctx),
			Transform: t.Name,
			Stage:     stage,
			File:      file,
			Message:   msg,
			Severity:  notify.SeverityError,
		})
	}
	s.publish(ctx, events.TransformFailed{
		BuildID:   observability.BuildID(ctx),
		Transform: t.Name,
		Category:  string(t.Category),
		Mode:      string(t.Mode),
		Stage:     stage,
		File:      file,
		Message:   msg,
		Fatal:     true,
		FailedAt:  time.Now(),
	})
}

// TaskStarted reports the start of a named task run.
func (s *Session) TaskStarted(ctx context.Context, task string) {
	s.publish(ctx, events.TaskStarted{
		BuildID:   observability.BuildID(ctx),
		Task:      task,
		StartedAt: time.Now(),
	})
}

// TaskFinished reports the end of a named task run.
func (s *Session) TaskFinished(ctx context.Context, task string, err error, d time.Duration) {
	s.Recorder.ObserveTaskDuration(task, d)
	s.Recorder.IncTaskOutcome(task, metrics.ResultFor(err, false))
	s.publish(ctx, events.TaskFinished{
		BuildID:    observability.BuildID(ctx),
		Task:       task,
		Err:        err,
		Duration:   d,
		FinishedAt: time.Now(),
	})
}
