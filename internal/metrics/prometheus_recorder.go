package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetpipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	transformDuration *prom.HistogramVec
	transformResults  *prom.CounterVec
	processingErrors  *prom.CounterVec
	taskDuration      *prom.HistogramVec
	taskOutcomes      *prom.CounterVec
	watchTriggers     *prom.CounterVec
	liveReloadClients prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil registry gets a private one, which keeps tests independent.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		transformDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Duration of individual transform runs",
			Buckets:   prom.DefBuckets,
		}, []string{"transform"}),
		transformResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transform_results_total",
			Help:      "Transform run counts by outcome",
		}, []string{"transform", "result"}),
		processingErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "processing_errors_total",
			Help:      "Per-file processing errors by transform and step",
		}, []string{"transform", "stage"}),
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of named task runs",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Task outcomes by final status",
		}, []string{"task", "result"}),
		watchTriggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_triggers_total",
			Help:      "Coalesced watch-triggered rebuilds by category",
		}, []string{"category"}),
		liveReloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
	}
	reg.MustRegister(pr.transformDuration, pr.transformResults, pr.processingErrors,
		pr.taskDuration, pr.taskOutcomes, pr.watchTriggers, pr.liveReloadClients)
	return pr
}

func (p *PrometheusRecorder) ObserveTransformDuration(transform string, d time.Duration) {
	if p == nil {
		return
	}
	p.transformDuration.WithLabelValues(transform).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTransformResult(transform string, result ResultLabel) {
	if p == nil {
		return
	}
	p.transformResults.WithLabelValues(transform, string(result)).Inc()
}

func (p *PrometheusRecorder) IncProcessingError(transform, stage string) {
	if p == nil {
		return
	}
	p.processingErrors.WithLabelValues(transform, stage).Inc()
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskOutcome(task string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskOutcomes.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchTrigger(category string) {
	if p == nil {
		return
	}
	p.watchTriggers.WithLabelValues(category).Inc()
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	if p == nil {
		return
	}
	p.liveReloadClients.Set(float64(n))
}
