package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_deployer"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildOutcome  *prom.CounterVec
	startDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build submissions by action and outcome",
		}, []string{"action", "outcome"}),
		startDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "start_build_duration_seconds",
			Help:      "Time taken to resolve and submit a build",
			Buckets:   prom.DefBuckets,
		}, []string{"action"}),
	}
	reg.MustRegister(pr.buildOutcome, pr.startDuration)

	return pr
}

func (p *PrometheusRecorder) IncBuildOutcome(action string, outcome Outcome) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(action, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStartDuration(action string, d time.Duration) {
	if p == nil || p.startDuration == nil {
		return
	}
	p.startDuration.WithLabelValues(action).Observe(d.Seconds())
}

// HTTPHandler returns an http.Handler that serves metrics from gatherer.
func HTTPHandler(gatherer prom.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
