package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catalog_client"

// Metrics holds the cache collectors.
type Metrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	shared      *prometheus.CounterVec
	discarded   *prometheus.CounterVec
	invalidated *prometheus.CounterVec
	entries     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "hits_total",
				Help:      "Queries served from a fresh cache entry",
			},
			[]string{"endpoint"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "misses_total",
				Help:      "Queries that needed a network call",
			},
			[]string{"endpoint"},
		),
		shared: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "shared_total",
				Help:      "Queries that joined an identical in-flight call",
			},
			[]string{"endpoint"},
		),
		discarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "discarded_total",
				Help:      "Responses dropped because a newer response was already applied",
			},
			[]string{"endpoint"},
		),
		invalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "invalidated_total",
				Help:      "Entries marked stale, by invalidated tag type",
			},
			[]string{"tag"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "entries",
				Help:      "Entries currently held",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.shared, m.discarded, m.invalidated, m.entries)
	}

	return m
}
