package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	stageResults  *prom.CounterVec
	runOutcome    *prom.CounterVec
	stageChanges  *prom.CounterVec
	blockCount    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "satcn",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual correction stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "satcn",
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "satcn",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "satcn",
			Name:      "run_outcomes_total",
			Help:      "Pipeline run outcomes by final status",
		}, []string{"outcome"})
		pr.stageChanges = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "satcn",
			Name:      "stage_changes_total",
			Help:      "Corrected block counts reported per stage",
		}, []string{"stage"})
		pr.blockCount = prom.NewGauge(prom.GaugeOpts{
			Namespace: "satcn",
			Name:      "document_blocks",
			Help:      "Number of correctable blocks in the current document",
		})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome, pr.stageChanges, pr.blockCount)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveStageChanges(stage string, changes int) {
	if p == nil || p.stageChanges == nil || changes <= 0 {
		return
	}
	p.stageChanges.WithLabelValues(stage).Add(float64(changes))
}

func (p *PrometheusRecorder) SetBlockCount(n int) {
	if p == nil || p.blockCount == nil {
		return
	}
	p.blockCount.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the
// provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
