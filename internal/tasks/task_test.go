package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequential_StopsAtFirstError(t *testing.T) {
	var order []string
	step := func(name string, err error) Task {
		return Func(func(context.Context) error {
			order = append(order, name)
			return err
		})
	}
	boom := errors.New("boom")

	err := Sequential(step("a", nil), step("b", boom), step("c", nil)).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestSequential_IsABarrier(t *testing.T) {
	var finished atomic.Bool
	first := Func(func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	second := Func(func(context.Context) error {
		if !finished.Load() {
			return errors.New("started before the previous task finished")
		}
		return nil
	})
	require.NoError(t, Sequential(first, second).Run(context.Background()))
}

func TestSequential_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := Sequential(Func(func(context.Context) error { ran = true; return nil })).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestParallel_WaitsForAllSiblings(t *testing.T) {
	boom := errors.New("boom")
	var slowDone atomic.Bool
	var slowSawCancel atomic.Bool

	failing := Func(func(context.Context) error { return boom })
	slow := Func(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			slowSawCancel.Store(true)
		case <-time.After(50 * time.Millisecond):
		}
		slowDone.Store(true)
		return nil
	})

	err := Parallel(failing, slow).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, slowDone.Load(), "Parallel returned before every sibling finished")
	assert.False(t, slowSawCancel.Load(), "a failing sibling canceled the others")
}

func TestParallel_RunsConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(3)
	task := Func(func(context.Context) error {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("siblings did not run concurrently")
		}
	})
	require.NoError(t, Parallel(task, task, task).Run(context.Background()))
}
