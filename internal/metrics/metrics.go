// Package metrics exposes Prometheus collectors for the analysis pipeline
// and the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "basket"

type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageRows     *prometheus.GaugeVec
	itemsets      prometheus.Gauge
	rules         prometheus.Gauge
	runs          *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each analysis pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		stageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_rows",
			Help:      "Rows remaining after each pipeline stage.",
		}, []string{"stage"}),
		itemsets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frequent_itemsets",
			Help:      "Frequent itemsets found by the last run.",
		}),
		rules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "association_rules",
			Help:      "Association rules derived by the last run.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.stageDuration, m.stageRows, m.itemsets, m.rules, m.runs,
		m.httpRequests, m.httpDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// All recording methods are no-ops on a nil *Metrics.

func (m *Metrics) ObserveStage(stage string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if rows >= 0 {
		m.stageRows.WithLabelValues(stage).Set(float64(rows))
	}
}

func (m *Metrics) SetResults(itemsets, rules int) {
	if m == nil {
		return
	}
	m.itemsets.Set(float64(itemsets))
	m.rules.Set(float64(rules))
}

func (m *Metrics) RunFinished(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
