package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetpipe/internal/events"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Recorder appends every task and transform event published on a bus.
type Recorder struct {
	store  Store
	commit string
	ch     <-chan events.Event
	unsub  func()
	done   chan struct{}
}

// NewRecorder subscribes to bus immediately so no event published after it
// returns is missed. Run drains the subscription.
func NewRecorder(bus *events.Bus, store Store, commit string) *Recorder {
	ch, unsub := events.Subscribe[events.Event](bus, 64)
	return &Recorder{store: store, commit: commit, ch: ch, unsub: unsub, done: make(chan struct{})}
}

// Run appends events until the subscription closes or ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.unsub()
			r.drain()
			return
		case evt, ok := <-r.ch:
			if !ok {
				return
			}
			r.append(evt)
		}
	}
}

// Stop unsubscribes, appends what is already buffered and waits for Run to return.
func (r *Recorder) Stop() {
	r.unsub()
	<-r.done
}

func (r *Recorder) drain() {
	for evt := range r.ch {
		r.append(evt)
	}
}

func (r *Recorder) append(evt events.Event) {
	rec, err := Encode(evt, r.commit)
	if err == nil {
		err = r.store.Append(context.Background(), rec)
	}
	if err != nil {
		slog.Warn("Failed to record history event",
			slog.String("event_type", evt.EventType()),
			logfields.BuildID(evt.RunID()),
			logfields.Error(err))
	}
}
