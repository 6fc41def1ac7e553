// Package metrics provides the observability hooks for assetpipe transforms and tasks.
//
// Components receive a Recorder through dependency injection. NoopRecorder is the
// default so callers never check for nil:
//
//	rec := metrics.Recorder(metrics.NoopRecorder{})
//	if cfg.Metrics.Enabled {
//	    reg := prom.NewRegistry()
//	    rec = metrics.NewPrometheusRecorder(reg)
//	    mux.Handle(cfg.Metrics.Path, metrics.HTTPHandler(reg))
//	}
//
// The dev server exposes the registry when metrics are enabled; one-shot CLI runs
// keep the NoopRecorder.
package metrics
