package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes snapshots as Prometheus metrics on its own registry.
type Exporter struct {
	registry *prometheus.Registry
	counters *prometheus.CounterVec
	current  *prometheus.GaugeVec
	events   prometheus.Counter
	items    prometheus.Counter
}

// NewExporter creates and registers the playback metrics under namespace.
func NewExporter(namespace string) *Exporter {
	if namespace == "" {
		namespace = "lineup"
	}
	registry := prometheus.NewRegistry()

	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_counter_total",
		Help:      "Cumulative engine counters across all items, by counter name.",
	}, []string{"counter"})
	current := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playback_current_item_counter",
		Help:      "Engine counters of the current item, by counter name.",
	}, []string{"counter"})
	events := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_events_total",
		Help:      "Total number of engine counter samples aggregated.",
	})
	items := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_items_total",
		Help:      "Total number of items that became current.",
	})

	registry.MustRegister(counters, current, events, items)

	return &Exporter{
		registry: registry,
		counters: counters,
		current:  current,
		events:   events,
		items:    items,
	}
}

// Observe records one aggregation step.
func (e *Exporter) Observe(s DeltaSnapshot, samples int) {
	for name, v := range s.Increment {
		if v > 0 {
			e.counters.WithLabelValues(name).Add(v)
		}
	}
	for name, v := range s.Total {
		e.current.WithLabelValues(name).Set(v)
	}
	e.events.Add(float64(samples))
}

// ItemChanged records a new current item and clears per-item gauges.
func (e *Exporter) ItemChanged() {
	e.items.Inc()
	e.current.Reset()
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an http.Handler that serves the metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
