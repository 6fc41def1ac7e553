package eventstore

import (
	"encoding/json"

	"git.home.luguber.info/inful/assetpipe/internal/events"
)

// TaskPayload is stored for task.started and task.finished.
type TaskPayload struct {
	Task       string `json:"task"`
	Commit     string `json:"commit,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// TransformPayload is stored for transform.completed and transform.failed.
type TransformPayload struct {
	Transform  string   `json:"transform"`
	Category   string   `json:"category"`
	Mode       string   `json:"mode"`
	Written    []string `json:"written,omitempty"`
	Failures   int      `json:"failures,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	Stage      string   `json:"stage,omitempty"`
	File       string   `json:"file,omitempty"`
	Message    string   `json:"message,omitempty"`
	Fatal      bool     `json:"fatal,omitempty"`
}

// Encode turns a bus event into a history record. commit is the project's HEAD
// commit and is attached to task records.
func Encode(evt events.Event, commit string) (Record, error) {
	rec := Record{BuildID: evt.RunID(), Type: evt.EventType()}
	var payload any
	switch e := evt.(type) {
	case events.TaskStarted:
		rec.Timestamp = e.StartedAt
		payload = TaskPayload{Task: e.Task, Commit: commit}
	case events.TaskFinished:
		rec.Timestamp = e.FinishedAt
		p := TaskPayload{Task: e.Task, Commit: commit, DurationMS: e.Duration.Milliseconds()}
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
		payload = p
	case events.TransformCompleted:
		rec.Timestamp = e.CompletedAt
		payload = TransformPayload{
			Transform:  e.Transform,
			Category:   e.Category,
			Mode:       e.Mode,
			Written:    e.Written,
			Failures:   e.Failures,
			DurationMS: e.Duration.Milliseconds(),
		}
	case events.TransformFailed:
		rec.Timestamp = e.FailedAt
		payload = TransformPayload{
			Transform: e.Transform,
			Category:  e.Category,
			Mode:      e.Mode,
			Stage:     e.Stage,
			File:      e.File,
			Message:   e.Message,
			Fatal:     e.Fatal,
		}
	default:
		payload = evt
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, wrap(ErrMarshalPayloadFailed, err)
	}
	rec.Payload = data
	return rec, nil
}
