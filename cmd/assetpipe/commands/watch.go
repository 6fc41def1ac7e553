package commands

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/devserver"
	"git.home.luguber.info/inful/assetpipe/internal/eventstore"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
	"git.home.luguber.info/inful/assetpipe/internal/watcher"
)

const retentionInterval = time.Hour

// WatchCmd runs dev, then serves the build root and re-runs a category's dev task
// whenever its sources change, until interrupted.
type WatchCmd struct{}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(g.context(), cfg, pipeline.ModeDev)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.watch(g.context())
}

func (a *app) watch(ctx context.Context) error {
	hub := devserver.NewHub(a.metrics)
	follower := devserver.NewFollower(a.bus, hub)
	server := devserver.NewFromConfig(a.cfg, hub, metrics.HTTPHandler(a.registry))

	w, err := watcher.New(a.cfg.Paths, a.cfg.Watch, func(ctx context.Context, c config.Category) error {
		return a.tasks.Run(ctx, tasks.DevTask(c))
	}, a.bus, a.metrics)
	if err != nil {
		return err
	}

	if a.store != nil {
		retention, err := eventstore.NewRetention(a.store, a.cfg.History.Retention, retentionInterval)
		if err != nil {
			observability.WarnContext(ctx, "History retention disabled", logfields.Error(err))
		} else {
			retention.Start()
			defer func() { _ = retention.Stop() }()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		follower.Run(gctx)
		return nil
	})
	g.Go(func() error { return server.Run(gctx) })

	if err := a.tasks.Run(gctx, tasks.NameDev); err != nil {
		// Without a first dev build there is nothing to serve or watch.
		cancel()
		if gerr := g.Wait(); gerr != nil {
			return gerr
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	g.Go(func() error { return w.Run(gctx) })
	return g.Wait()
}
