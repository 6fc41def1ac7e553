package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[TransformCompleted](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), TransformCompleted{Transform: "styles"}))
	require.Equal(t, "styles", receive(t, ch).Transform)
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Event](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), TaskStarted{BuildID: "b1", Task: "build"}))
	require.NoError(t, b.Publish(context.Background(), ChangeDetected{Category: "styles"}))
	require.NoError(t, b.Publish(context.Background(), TransformFailed{BuildID: "b1"}))

	first := receive(t, ch)
	require.Equal(t, "task.started", first.EventType())
	second := receive(t, ch)
	require.Equal(t, "transform.failed", second.EventType(), "ChangeDetected is not a run event")
	require.Equal(t, "b1", second.RunID())
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[TaskStarted](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, TaskStarted{})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[TaskStarted](b, 1)
	require.Equal(t, 1, SubscriberCount[TaskStarted](b))
	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, SubscriberCount[TaskStarted](b))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[TaskStarted](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Error(t, b.Publish(context.Background(), TaskStarted{}))

	late, _ := Subscribe[TaskStarted](b, 1)
	_, ok = <-late
	require.False(t, ok)
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var b *Bus
	require.NoError(t, b.Publish(context.Background(), TaskStarted{}))
}
