package eventstore

import (
	"context"
	"encoding/json"
	"time"
)

const (
	buildStatusRunning   = "running"
	buildStatusSucceeded = "succeeded"
	buildStatusFailed    = "failed"
)

// BuildSummary is a read model summarizing one task run.
type BuildSummary struct {
	BuildID      string        `json:"build_id"`
	Task         string        `json:"task"`
	Commit       string        `json:"commit,omitempty"`
	Status       string        `json:"status"` // "running", "succeeded", "failed"
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration,omitempty"`
	Transforms   int           `json:"transforms"`
	FileCount    int           `json:"file_count"`
	Failures     int           `json:"failures"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Summarize folds the records of one task run into a summary.
func Summarize(buildID string, records []Record) BuildSummary {
	summary := BuildSummary{BuildID: buildID, Status: buildStatusRunning}
	for _, rec := range records {
		if summary.StartedAt.IsZero() || rec.Timestamp.Before(summary.StartedAt) {
			summary.StartedAt = rec.Timestamp
		}
		switch rec.Type {
		case "task.started":
			var p TaskPayload
			if err := json.Unmarshal(rec.Payload, &p); err == nil {
				summary.Task = p.Task
				summary.Commit = p.Commit
			}
			summary.StartedAt = rec.Timestamp

		case "transform.completed":
			var p TransformPayload
			if err := json.Unmarshal(rec.Payload, &p); err == nil {
				summary.Transforms++
				summary.FileCount += len(p.Written)
			}

		case "transform.failed":
			var p TransformPayload
			if err := json.Unmarshal(rec.Payload, &p); err == nil {
				if p.Fatal {
					summary.Transforms++
				} else {
					summary.Failures++
				}
				if summary.ErrorMessage == "" || p.Fatal {
					summary.ErrorStage = p.Stage
					summary.ErrorMessage = p.Message
				}
			}

		case "task.finished":
			var p TaskPayload
			if err := json.Unmarshal(rec.Payload, &p); err == nil {
				if summary.Task == "" {
					summary.Task = p.Task
				}
				summary.Duration = time.Duration(p.DurationMS) * time.Millisecond
				summary.Status = buildStatusSucceeded
				if p.Error != "" {
					summary.Status = buildStatusFailed
					if summary.ErrorMessage == "" {
						summary.ErrorMessage = p.Error
					}
				}
			}
		}
	}
	return summary
}

// History returns summaries of the last limit task runs, newest first.
func History(ctx context.Context, store Store, limit int) ([]BuildSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := store.RecentBuildIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]BuildSummary, 0, len(ids))
	for _, id := range ids {
		records, err := store.GetByBuildID(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summarize(id, records))
	}
	return summaries, nil
}
