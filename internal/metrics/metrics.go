// Package metrics exposes Prometheus counters for contact store and
// import/export activity. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "phonelist"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	storeOps        *prometheus.CounterVec
	imported        prometheus.Counter
	importSkipped   prometheus.Counter
	exported        prometheus.Counter
	sharedText      *prometheus.CounterVec
	liveSubscribers prometheus.Gauge
}

// New creates a registry with the process/go collectors and the phonelist metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Contact store operations by operation and result.",
		}, []string{"op", "result"}),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vcard_imported_total",
			Help:      "Contacts added from vCard input.",
		}),
		importSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vcard_import_skipped_total",
			Help:      "vCard entries skipped for missing name or phone.",
		}),
		exported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vcard_exported_total",
			Help:      "Contacts written as vCard entries.",
		}),
		sharedText: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shared_text_total",
			Help:      "Shared text payloads by outcome (added, ignored).",
		}, []string{"outcome"}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribers",
			Help:      "Open live view connections.",
		}),
	}
	reg.MustRegister(m.storeOps, m.imported, m.importSkipped, m.exported, m.sharedText, m.liveSubscribers)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StoreOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Imported(added, skipped int) {
	if m == nil {
		return
	}
	m.imported.Add(float64(added))
	m.importSkipped.Add(float64(skipped))
}

func (m *Metrics) Exported(n int) {
	if m == nil {
		return
	}
	m.exported.Add(float64(n))
}

func (m *Metrics) SharedText(added bool) {
	if m == nil {
		return
	}
	outcome := "ignored"
	if added {
		outcome = "added"
	}
	m.sharedText.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LiveConnected() {
	if m == nil {
		return
	}
	m.liveSubscribers.Inc()
}

func (m *Metrics) LiveDisconnected() {
	if m == nil {
		return
	}
	m.liveSubscribers.Dec()
}
