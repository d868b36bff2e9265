package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "assessment"

// Collector exposes scoring pipeline metrics to Prometheus.
// Each Collector owns its registry so tests can build several.
type Collector struct {
	registry *prometheus.Registry

	analysesRecorded *prometheus.CounterVec
	reconciles       *prometheus.CounterVec
	reconcileLatency prometheus.Histogram
	historyAppended  *prometheus.CounterVec
	historyGaps      *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
}

// NewCollector creates and registers the pipeline metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		analysesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "analyses_recorded_total",
			Help:      "Score events recorded, by block.",
		}, []string{"block"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconciliations_total",
			Help:      "Block reconciles, by whether the average changed.",
		}, []string{"changed"}),
		reconcileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of a block reconcile including the lock wait.",
			Buckets:   prometheus.DefBuckets,
		}),
		historyAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "history_snapshots_total",
			Help:      "History snapshots appended, by block.",
		}, []string{"block"}),
		historyGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "history_gaps_total",
			Help:      "Changed aggregates whose history snapshot failed to persist.",
		}, []string{"block"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation latency by outcome.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"route", "status"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.analysesRecorded,
		c.reconciles,
		c.reconcileLatency,
		c.historyAppended,
		c.historyGaps,
		c.storeLatency,
		c.httpRequests,
	)
	return c
}

func (c *Collector) AnalysisRecorded(blockID string) {
	c.analysesRecorded.WithLabelValues(blockID).Inc()
}

func (c *Collector) ReconcileCompleted(changed bool, duration time.Duration) {
	c.reconciles.WithLabelValues(strconv.FormatBool(changed)).Inc()
	c.reconcileLatency.Observe(duration.Seconds())
}

func (c *Collector) HistoryAppended(blockID string) {
	c.historyAppended.WithLabelValues(blockID).Inc()
}

func (c *Collector) HistoryGap(blockID string) {
	c.historyGaps.WithLabelValues(blockID).Inc()
}

func (c *Collector) StoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.storeLatency.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// HTTPRequest counts one served request
func (c *Collector) HTTPRequest(route string, status int) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
