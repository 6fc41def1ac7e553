package watcher

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/events"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Debounce causes carried by events.ChangeDetected.
const (
	CauseQuiet        = "quiet"
	CauseMaxDelay     = "max_delay"
	CauseAfterRunning = "after_running"
)

// RunFunc performs one coalesced run. paths are the source-root-relative files that
// changed since the previous run.
type RunFunc func(ctx context.Context, paths []string) error

type CoalescerConfig struct {
	Category    string
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// Bus receives one events.ChangeDetected per run. Optional.
	Bus      *events.Bus
	Recorder metrics.Recorder
}

// Coalescer serializes runs for one category. Run drives it from a single goroutine;
// Request may be called from any goroutine.
type Coalescer struct {
	cfg CoalescerConfig
	run RunFunc

	requests  chan string
	readyOnce sync.Once
	ready     chan struct{}
	stopped   chan struct{}

	// Owned by the Run goroutine.
	pending         bool
	pendingAfterRun bool
	running         bool
	paths           map[string]struct{}
	requestCount    int
}

func NewCoalescer(cfg CoalescerConfig, run RunFunc) (*Coalescer, error) {
	if run == nil {
		return nil, ferrors.ValidationError("run function is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	return &Coalescer{
		cfg:      cfg,
		run:      run,
		requests: make(chan string, 256),
		ready:    make(chan struct{}),
		stopped:  make(chan struct{}),
		paths:    make(map[string]struct{}),
	}, nil
}

// Ready is closed once Run is accepting requests.
func (c *Coalescer) Ready() <-chan struct{} {
	return c.ready
}

// Request records a change to path. It returns immediately once Run has stopped.
func (c *Coalescer) Request(path string) {
	select {
	case c.requests <- path:
	case <-c.stopped:
	}
}

// Run processes requests until ctx is canceled. A run in flight at cancellation is
// waited for.
func (c *Coalescer) Run(ctx context.Context) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	defer close(c.stopped)

	done := make(chan error, 1)
	c.readyOnce.Do(func() { close(c.ready) })

	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var quietC, maxC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if c.running {
				<-done
			}
			return nil

		case p := <-c.requests:
			c.onRequest(p)
			resetTimer(quietTimer, c.cfg.QuietWindow)
			quietC = quietTimer.C
			if c.requestCount == 1 {
				resetTimer(maxTimer, c.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			c.fire(ctx, CauseQuiet, done)
			quietC, maxC = nil, nil
			maxTimer.Stop()

		case <-maxC:
			c.fire(ctx, CauseMaxDelay, done)
			quietC, maxC = nil, nil
			quietTimer.Stop()

		case err := <-done:
			c.running = false
			if err != nil {
				slog.Debug("Watch run failed",
					logfields.Category(c.cfg.Category),
					logfields.Error(err))
			}
			if c.pendingAfterRun {
				c.pendingAfterRun = false
				c.start(ctx, CauseAfterRunning, done)
			}
		}
	}
}

func (c *Coalescer) onRequest(path string) {
	if !c.pending {
		c.pending = true
		c.requestCount = 0
	}
	c.paths[path] = struct{}{}
	c.requestCount++
}

// fire starts a run for the pending requests, or queues the single follow-up when
// a run is still in flight.
func (c *Coalescer) fire(ctx context.Context, cause string, done chan<- error) {
	if !c.pending {
		return
	}
	if c.running {
		c.pendingAfterRun = true
		return
	}
	c.start(ctx, cause, done)
}

func (c *Coalescer) start(ctx context.Context, cause string, done chan<- error) {
	if !c.pending {
		return
	}
	paths := make([]string, 0, len(c.paths))
	for p := range c.paths {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	count := c.requestCount

	c.pending = false
	c.requestCount = 0
	clear(c.paths)
	c.running = true

	c.cfg.Recorder.IncWatchTrigger(c.cfg.Category)
	if c.cfg.Bus != nil {
		_ = c.cfg.Bus.Publish(ctx, events.ChangeDetected{
			Category:     c.cfg.Category,
			Paths:        paths,
			RequestCount: count,
			Cause:        cause,
			DetectedAt:   time.Now(),
		})
	}
	slog.Info("Change detected",
		logfields.Category(c.cfg.Category),
		logfields.Count(len(paths)),
		slog.String("cause", cause))

	go func() { done <- c.run(ctx, paths) }()
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	t.Stop()
	t.Reset(after)
}
