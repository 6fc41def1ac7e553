package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/events"
)

func TestRecorder_PersistsBusEvents(t *testing.T) {
	store := newStore(t)
	bus := events.NewBus()
	defer bus.Close()

	rec := NewRecorder(bus, store, "abc123")
	go rec.Run(context.Background())

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.TaskStarted{BuildID: "b1", Task: "build", StartedAt: time.Now()}))
	require.NoError(t, bus.Publish(ctx, events.TransformCompleted{BuildID: "b1", Transform: "js-dev", CompletedAt: time.Now()}))
	require.NoError(t, bus.Publish(ctx, events.ChangeDetected{Category: "scripts"}))
	require.NoError(t, bus.Publish(ctx, events.TaskFinished{BuildID: "b1", Task: "build", FinishedAt: time.Now()}))
	rec.Stop()

	records, err := store.GetByBuildID(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "task.started", records[0].Type)
	assert.Contains(t, string(records[0].Payload), `"commit":"abc123"`)
	assert.Equal(t, "task.finished", records[2].Type)
}

func TestRetention_PrunesImmediately(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Append(t.Context(), Record{BuildID: "old", Type: "task.started", Timestamp: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.Append(t.Context(), Record{BuildID: "new", Type: "task.started"}))

	r, err := NewRetention(store, time.Minute, time.Hour)
	require.NoError(t, err)
	r.Start()
	defer func() { _ = r.Stop() }()

	assert.Eventually(t, func() bool {
		ids, err := store.RecentBuildIDs(t.Context(), 10)
		return err == nil && len(ids) == 1 && ids[0] == "new"
	}, 2*time.Second, 10*time.Millisecond)
}
