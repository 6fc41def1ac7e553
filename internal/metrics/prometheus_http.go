package metrics

import (
	"context"
	"errors"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns an http.Handler that serves Prometheus metrics for reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ResultFor maps a run error onto a result label.
func ResultFor(err error, partial bool) ResultLabel {
	switch {
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	case err != nil:
		return ResultFailed
	case partial:
		return ResultPartial
	default:
		return ResultSuccess
	}
}
