package tasks

import (
	"context"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Task is a runnable unit of work.
type Task interface {
	Run(ctx context.Context) error
}

// Func adapts a function to Task.
type Func func(ctx context.Context) error

func (f Func) Run(ctx context.Context) error { return f(ctx) }

type sequential []Task

func (s sequential) Run(ctx context.Context) error {
	for _, t := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Sequential runs tasks one after another and stops at the first error.
func Sequential(tasks ...Task) Task { return sequential(tasks) }

type parallel []Task

func (p parallel) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, t := range p {
		g.Go(func() error { return t.Run(ctx) })
	}
	return g.Wait()
}

// Parallel runs tasks concurrently, waits for all of them and returns the first error.
func Parallel(tasks ...Task) Task { return parallel(tasks) }

type staged struct {
	buildRoot string
	task      Task
}

func (s staged) Run(ctx context.Context) error {
	batch := pipeline.NewBatch(s.buildRoot)
	if err := s.task.Run(pipeline.WithBatch(ctx, batch)); err != nil {
		batch.Discard()
		return err
	}
	return batch.Commit()
}

// Staged holds back the outputs of every transform task runs until all of them
// succeeded. When task fails nothing it produced reaches buildRoot.
func Staged(buildRoot string, task Task) Task { return staged{buildRoot: buildRoot, task: task} }
