package eventstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Retention prunes history older than a maximum age on a fixed interval.
type Retention struct {
	scheduler gocron.Scheduler
	store     Store
	maxAge    time.Duration
}

// NewRetention schedules a prune every interval. Start begins running it.
func NewRetention(store Store, maxAge, interval time.Duration) (*Retention, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	r := &Retention{scheduler: s, store: store, maxAge: maxAge}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.prune),
		gocron.WithName("history-retention"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create retention job: %w", err)
	}
	return r, nil
}

// Start begins the scheduler.
func (r *Retention) Start() {
	slog.Debug("Starting history retention", slog.Duration("max_age", r.maxAge))
	r.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running prune.
func (r *Retention) Stop() error {
	return r.scheduler.Shutdown()
}

func (r *Retention) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := r.store.Prune(ctx, time.Now().Add(-r.maxAge))
	if err != nil {
		slog.Warn("History prune failed", logfields.Error(err))
		return
	}
	if n > 0 {
		slog.Info("Pruned history", logfields.Count(int(n)))
	}
}
