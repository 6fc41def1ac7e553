package events

import "time"

// Event is implemented by every event that belongs to a task run. History subscribes
// to this interface to persist all of them.
type Event interface {
	EventType() string
	RunID() string
}

// TaskStarted is published when a named task begins.
type TaskStarted struct {
	BuildID   string
	Task      string
	StartedAt time.Time
}

// TaskFinished is published when a named task returns.
type TaskFinished struct {
	BuildID    string
	Task       string
	Err        error
	Duration   time.Duration
	FinishedAt time.Time
}

// TransformCompleted is published after a transform promoted its outputs.
// Written holds build-root-relative slash paths.
type TransformCompleted struct {
	BuildID     string
	Transform   string
	Category    string
	Mode        string
	Written     []string
	Failures    int
	Duration    time.Duration
	CompletedAt time.Time
}

// TransformFailed is published for every per-file processing error and for a
// transform run that aborted. Fatal distinguishes the two.
type TransformFailed struct {
	BuildID   string
	Transform string
	Category  string
	Mode      string
	Stage     string
	File      string
	Message   string
	Fatal     bool
	FailedAt  time.Time
}

// ChangeDetected is published by the watcher once per coalesced rebuild.
type ChangeDetected struct {
	Category     string
	Paths        []string
	RequestCount int
	Cause        string // "quiet", "max_delay" or "after_running"
	DetectedAt   time.Time
}

func (e TaskStarted) EventType() string        { return "task.started" }
func (e TaskStarted) RunID() string            { return e.BuildID }
func (e TaskFinished) EventType() string       { return "task.finished" }
func (e TaskFinished) RunID() string           { return e.BuildID }
func (e TransformCompleted) EventType() string { return "transform.completed" }
func (e TransformCompleted) RunID() string     { return e.BuildID }
func (e TransformFailed) EventType() string    { return "transform.failed" }
func (e TransformFailed) RunID() string        { return e.BuildID }
