package metrics

import "time"

// ResultLabel enumerates transform and task outcomes for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultPartial  ResultLabel = "partial" // per-file failures under the notify policy
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for transform and task metrics.
type Recorder interface {
	ObserveTransformDuration(transform string, d time.Duration)
	IncTransformResult(transform string, result ResultLabel)
	IncProcessingError(transform, stage string)
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskOutcome(task string, result ResultLabel)
	IncWatchTrigger(category string)
	SetLiveReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTransformDuration(string, time.Duration) {}
func (NoopRecorder) IncTransformResult(string, ResultLabel)         {}
func (NoopRecorder) IncProcessingError(string, string)              {}
func (NoopRecorder) ObserveTaskDuration(string, time.Duration)      {}
func (NoopRecorder) IncTaskOutcome(string, ResultLabel)             {}
func (NoopRecorder) IncWatchTrigger(string)                         {}
func (NoopRecorder) SetLiveReloadClients(int)                       {}
