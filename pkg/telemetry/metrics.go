package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jfarrimo/frycook/pkg/engine"
)

const namespace = "frycook"

// RunMetrics collects Prometheus metrics for one invocation of frycooker.
// It implements engine.Observer. A nil *RunMetrics records nothing.
type RunMetrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	hosts        *prometheus.CounterVec
	hostDuration *prometheus.HistogramVec
	items        *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec
	files        *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRunMetrics creates the collectors on a private registry.
func NewRunMetrics() *RunMetrics {
	registry := prometheus.NewRegistry()

	m := &RunMetrics{
		registry: registry,

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Runs by final status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a whole run",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		hosts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hosts_total",
				Help:      "Processed hosts by status",
			},
			[]string{"status"},
		),
		hostDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "host_duration_seconds",
				Help:      "Time spent applying one host's run list",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "work_items_total",
				Help:      "Applied work items by kind and status",
			},
			[]string{"kind", "status"},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "work_item_duration_seconds",
				Help:      "Time spent in one work item's lifecycle",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "File-set synchronization results by action",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		m.runs,
		m.runDuration,
		m.hosts,
		m.hostDuration,
		m.items,
		m.itemDuration,
		m.files,
	)

	return m
}

// ObserveHost records one processed host.
func (m *RunMetrics) ObserveHost(host string, status engine.HostStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.hosts.WithLabelValues(string(status)).Inc()
	m.hostDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// ObserveItem records one work item and its file counts.
func (m *RunMetrics) ObserveItem(item *engine.ItemResult) {
	if m == nil || item == nil {
		return
	}
	kind := string(item.Item.Kind)
	m.items.WithLabelValues(kind, string(item.Status)).Inc()
	if item.Status != engine.ItemStatusSkipped {
		m.itemDuration.WithLabelValues(kind).Observe(item.Duration.Seconds())
	}

	m.files.WithLabelValues("written").Add(float64(item.Files.Written))
	m.files.WithLabelValues("unchanged").Add(float64(item.Files.Unchanged))
	m.files.WithLabelValues("deleted").Add(float64(item.Files.Deleted))
	m.files.WithLabelValues("skipped").Add(float64(item.Files.Skipped))
}

// RecordRun records a finished run.
func (m *RunMetrics) RecordRun(run *engine.Run) {
	if m == nil || run == nil {
		return
	}
	m.runs.WithLabelValues(string(run.Status)).Inc()
	if !run.FinishedAt.IsZero() {
		m.runDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	}
}

// Registry returns the registry holding every collector.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
