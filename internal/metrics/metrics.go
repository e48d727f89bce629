// Package metrics holds the Prometheus instruments of the pipeline. Batch
// runs write them to a node_exporter textfile; scheduled runs can also serve
// them over HTTP.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oncofreq"

// Record stages.
const (
	StageExtracted    = "extracted"
	StageStandardized = "standardized"
	StageMalformed    = "malformed"
	StageOrphaned     = "orphaned"
	StageFrequencies  = "frequencies"
	StageRejected     = "rejected"
	StageCatalog      = "catalog"
	StageAssociations = "associations"
	StageLoaded       = "loaded"
)

// Metrics is a private registry with the pipeline instruments.
type Metrics struct {
	registry *prometheus.Registry

	runs            *prometheus.CounterVec
	records         *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	extractErrors   *prometheus.CounterVec
	lastRun         prometheus.Gauge
	lastDuration    prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// New creates and registers the pipeline instruments.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records seen per pipeline stage.",
		}, []string{"stage"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plausibility_rejections_total",
			Help:      "Frequency records rejected per violation code.",
		}, []string{"code"}),
		extractDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Wall time of each extractor.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"extractor"}),
		extractErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_errors_total",
			Help:      "Extractor failures.",
		}, []string{"extractor"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run succeeded, else 0.",
		}),
	}
	m.registry.MustRegister(
		m.runs, m.records, m.rejections,
		m.extractDuration, m.extractErrors,
		m.lastRun, m.lastDuration, m.lastSuccess,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveExtract records one extractor run.
func (m *Metrics) ObserveExtract(extractor string, d time.Duration, err error) {
	m.extractDuration.WithLabelValues(extractor).Observe(d.Seconds())
	if err != nil {
		m.extractErrors.WithLabelValues(extractor).Inc()
	}
}

// AddRecords adds n records to a stage counter.
func (m *Metrics) AddRecords(stage string, n int) {
	if n > 0 {
		m.records.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveRejection counts the violation codes of one rejected record.
func (m *Metrics) ObserveRejection(codes []string) {
	for _, c := range codes {
		m.rejections.WithLabelValues(c).Inc()
	}
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(status string, finished time.Time, d time.Duration) {
	m.runs.WithLabelValues(status).Inc()
	m.lastRun.Set(float64(finished.Unix()))
	m.lastDuration.Set(d.Seconds())
	if status == "success" {
		m.lastSuccess.Set(1)
	} else {
		m.lastSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
