// Package metric provides Prometheus metrics for stillpoint.
//
// It exposes metrics in Prometheus format for monitoring checkpoint
// saves, recovery decisions and work loop progress.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stillpoint"

// Save results used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds all application metrics.
//
// A nil *Registry is valid: every Observe method is a no-op, so components
// can take an optional registry without nil checks at each call site.
type Registry struct {
	reg *prometheus.Registry

	// Checkpoint metrics
	SavesTotal        *prometheus.CounterVec
	SaveRetries       prometheus.Counter
	SaveDuration      prometheus.Histogram
	CheckpointBytes   prometheus.Gauge
	LastSavedCounter  prometheus.Gauge
	LastSaveTimestamp prometheus.Gauge

	// Recovery metrics
	Recoveries *prometheus.CounterVec

	// Work loop metrics
	WorkUnits    prometheus.Counter
	StateCounter prometheus.Gauge
}

// NewRegistry creates a new metrics registry with process and Go runtime
// collectors already registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		SavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "saves_total",
			Help:      "Checkpoint save attempts by store and result",
		}, []string{"store", "result"}),
		SaveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "save_retries_total",
			Help:      "Checkpoint write retries after a transient failure",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "save_duration_seconds",
			Help:      "Time to encode, write and fsync a checkpoint",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		CheckpointBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "record_bytes",
			Help:      "Size of the most recently written checkpoint record",
		}),
		LastSavedCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "last_saved_counter",
			Help:      "Update counter captured by the last successful save",
		}),
		LastSaveTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "last_save_timestamp_seconds",
			Help:      "Unix timestamp of the last successful save",
		}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "decisions_total",
			Help:      "Startup recovery decisions by outcome",
		}, []string{"outcome"}),
		WorkUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "units_total",
			Help:      "Work units completed by this process",
		}),
		StateCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "update_counter",
			Help:      "Current value of the durable update counter",
		}),
	}

	r.reg.MustRegister(
		r.SavesTotal,
		r.SaveRetries,
		r.SaveDuration,
		r.CheckpointBytes,
		r.LastSavedCounter,
		r.LastSaveTimestamp,
		r.Recoveries,
		r.WorkUnits,
		r.StateCounter,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.reg.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveSave records one save attempt against a store.
func (r *Registry) ObserveSave(store string, err error, elapsed time.Duration, counter int64, size int) {
	if r == nil {
		return
	}
	if err != nil {
		r.SavesTotal.WithLabelValues(store, ResultError).Inc()
		return
	}
	r.SavesTotal.WithLabelValues(store, ResultOK).Inc()
	r.SaveDuration.Observe(elapsed.Seconds())
	r.CheckpointBytes.Set(float64(size))
	r.LastSavedCounter.Set(float64(counter))
	r.LastSaveTimestamp.Set(float64(time.Now().Unix()))
}

// ObserveRetry counts one write retry.
func (r *Registry) ObserveRetry() {
	if r == nil {
		return
	}
	r.SaveRetries.Inc()
}

// ObserveRecovery records the startup decision.
func (r *Registry) ObserveRecovery(outcome string, counter int64) {
	if r == nil {
		return
	}
	r.Recoveries.WithLabelValues(outcome).Inc()
	r.StateCounter.Set(float64(counter))
}

// ObserveWork records one completed work unit.
func (r *Registry) ObserveWork(counter int64) {
	if r == nil {
		return
	}
	r.WorkUnits.Inc()
	r.StateCounter.Set(float64(counter))
}

