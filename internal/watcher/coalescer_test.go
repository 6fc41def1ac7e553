package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/events"
)

type runLog struct {
	mu      sync.Mutex
	calls   [][]string
	active  atomic.Int32
	overlap atomic.Bool
	started chan struct{}
	release chan struct{}
}

func newRunLog(blocking bool) *runLog {
	r := &runLog{started: make(chan struct{}, 16)}
	if blocking {
		r.release = make(chan struct{})
	}
	return r
}

func (r *runLog) run(ctx context.Context, paths []string) error {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.active.Add(-1)

	r.mu.Lock()
	r.calls = append(r.calls, paths)
	r.mu.Unlock()
	r.started <- struct{}{}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return nil
}

func (r *runLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func startCoalescer(t *testing.T, cfg CoalescerConfig, run RunFunc) *Coalescer {
	t.Helper()
	c, err := NewCoalescer(cfg, run)
	require.NoError(t, err)
	go func() { _ = c.Run(t.Context()) }()
	select {
	case <-c.Ready():
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for coalescer ready")
	}
	return c
}

func waitStarted(t *testing.T, r *runLog) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for run")
	}
}

func TestCoalescer_BurstRunsOnce(t *testing.T) {
	r := newRunLog(false)
	c := startCoalescer(t, CoalescerConfig{
		Category:    "styles",
		QuietWindow: 30 * time.Millisecond,
		MaxDelay:    time.Second,
	}, r.run)

	for _, p := range []string{"scss/b.scss", "scss/a.scss", "scss/b.scss", "scss/a.scss", "scss/c.scss"} {
		c.Request(p)
		time.Sleep(5 * time.Millisecond)
	}

	waitStarted(t, r)
	select {
	case <-r.started:
		t.Fatal("expected a single run for the burst")
	case <-time.After(100 * time.Millisecond):
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, [][]string{{"scss/a.scss", "scss/b.scss", "scss/c.scss"}}, r.calls)
}

func TestCoalescer_MaxDelayForcesRun(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	changes, unsub := events.Subscribe[events.ChangeDetected](bus, 10)
	defer unsub()

	r := newRunLog(false)
	c := startCoalescer(t, CoalescerConfig{
		Category:    "markup",
		QuietWindow: 200 * time.Millisecond,
		MaxDelay:    60 * time.Millisecond,
		Bus:         bus,
	}, r.run)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.Request("index.html")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-changes:
		assert.Equal(t, CauseMaxDelay, got.Cause)
		assert.Equal(t, "markup", got.Category)
		assert.Equal(t, []string{"index.html"}, got.Paths)
		assert.Greater(t, got.RequestCount, 1)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for max-delay run")
	}
}

func TestCoalescer_RunningQueuesExactlyOneFollowUp(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	changes, unsub := events.Subscribe[events.ChangeDetected](bus, 10)
	defer unsub()

	r := newRunLog(true)
	c := startCoalescer(t, CoalescerConfig{
		Category:    "scripts",
		QuietWindow: 10 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Bus:         bus,
	}, r.run)

	c.Request("js/a.js")
	waitStarted(t, r)

	for range 10 {
		c.Request("js/b.js")
		time.Sleep(5 * time.Millisecond)
	}
	// Let the quiet window elapse while the first run is still in flight.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, r.count())

	close(r.release)
	waitStarted(t, r)

	select {
	case <-r.started:
		t.Fatal("expected exactly one follow-up run")
	case <-time.After(150 * time.Millisecond):
	}

	assert.False(t, r.overlap.Load(), "runs overlapped")
	r.mu.Lock()
	assert.Equal(t, [][]string{{"js/a.js"}, {"js/b.js"}}, r.calls)
	r.mu.Unlock()

	first := <-changes
	second := <-changes
	assert.Equal(t, CauseQuiet, first.Cause)
	assert.Equal(t, CauseAfterRunning, second.Cause)
	assert.Equal(t, 10, second.RequestCount)
}

func TestCoalescer_StopsWithContext(t *testing.T) {
	c, err := NewCoalescer(CoalescerConfig{QuietWindow: time.Millisecond, MaxDelay: time.Second},
		func(context.Context, []string) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	<-c.Ready()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// Requests after stop must not block.
	c.Request("late")
}

func TestNewCoalescer_Validation(t *testing.T) {
	noop := func(context.Context, []string) error { return nil }

	_, err := NewCoalescer(CoalescerConfig{QuietWindow: time.Second, MaxDelay: time.Second}, nil)
	require.Error(t, err)
	_, err = NewCoalescer(CoalescerConfig{MaxDelay: time.Second}, noop)
	require.Error(t, err)
	_, err = NewCoalescer(CoalescerConfig{QuietWindow: time.Second}, noop)
	require.Error(t, err)
}
