package commands

import (
	"context"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/events"
	"git.home.luguber.info/inful/assetpipe/internal/eventstore"
	"git.home.luguber.info/inful/assetpipe/internal/git"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/notify"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/retry"
	"git.home.luguber.info/inful/assetpipe/internal/session"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
	"git.home.luguber.info/inful/assetpipe/internal/transforms"
)

// app wires one process: event bus, notifications, metrics, history and the task
// registry over the transform factory.
type app struct {
	cfg      *config.Config
	bus      *events.Bus
	notifier *notify.Notifier
	registry *prom.Registry
	metrics  *metrics.PrometheusRecorder
	session  *session.Session
	store    eventstore.Store
	history  *eventstore.Recorder
	factory  *transforms.Factory
	tasks    *tasks.Registry
}

// newApp builds the collaborators for cfg. styles runs in stylesMode. Close
// releases everything newApp opened, including on error.
func newApp(ctx context.Context, cfg *config.Config, stylesMode pipeline.Mode) (*app, error) {
	a := &app{cfg: cfg, bus: events.NewBus(), registry: prom.NewRegistry()}
	a.metrics = metrics.NewPrometheusRecorder(a.registry)

	sinks := []notify.Sink{notify.LogSink{Logger: slog.Default()}}
	if nc := cfg.Notify.NATS; nc.URL != "" {
		sink, err := notify.NewNATSSink(nc.URL, nc.Subject)
		if err != nil {
			slog.Warn("NATS notifications disabled", slog.String("url", nc.URL), logfields.Error(err))
		} else {
			policy := retry.NewPolicy(retry.Backoff(nc.Retry.Backoff), nc.Retry.Initial, nc.Retry.Max, nc.Retry.MaxRetries)
			sinks = append(sinks, notify.Retrying(sink, policy))
		}
	}
	a.notifier = notify.New(sinks...)

	commit := git.Describe(cfg.Paths.SourceRoot)
	a.session = session.New(a.bus, a.notifier, a.metrics, commit)

	if !cfg.History.Disabled {
		store, err := eventstore.Open(cfg.History.StateDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		a.history = eventstore.NewRecorder(a.bus, store, commit)
		go a.history.Run(ctx)
	}

	factory, err := transforms.New(cfg, a.session)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.factory = factory
	a.tasks = tasks.NewRegistry(factory, cfg.Paths.BuildRoot, stylesMode, a.session)
	return a, nil
}

// Close flushes history and shuts down in reverse order of construction.
func (a *app) Close() {
	if a.factory != nil {
		if err := a.factory.Close(); err != nil {
			slog.Debug("Sass compiler close", logfields.Error(err))
		}
	}
	if a.history != nil {
		a.history.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close history store", logfields.Error(err))
		}
	}
	a.notifier.Close()
	a.bus.Close()
}

// runTask loads the configuration, runs one registry task and closes the app.
func runTask(g *Global, root *CLI, name string, stylesMode pipeline.Mode, tweak func(*config.Config)) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if tweak != nil {
		tweak(cfg)
	}
	ctx := g.context()
	a, err := newApp(ctx, cfg, stylesMode)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.tasks.Run(ctx, name)
}
