// Package metrics exposes knowledge store and search activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sipeed/picomind/pkg/knowledge"
)

const namespace = "picomind"

// Collector holds all metrics on a private registry. It satisfies
// knowledge.Recorder and search.Observer.
type Collector struct {
	registry *prometheus.Registry

	Stored       prometheus.Counter
	Retrieved    prometheus.Counter
	Evicted      prometheus.Counter
	SaveFailures prometheus.Counter
	SearchCalls  *prometheus.CounterVec

	Entries     prometheus.Gauge
	Connections prometheus.Gauge
	Efficiency  prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Stored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_stored_total",
			Help:      "Total number of knowledge entries stored",
		}),
		Retrieved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_retrieved_total",
			Help:      "Total number of entries matched by retrieval",
		}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_evicted_total",
			Help:      "Total number of entries removed by consolidation",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_failures_total",
			Help:      "Total number of failed knowledge base saves",
		}),
		SearchCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_calls_total",
			Help:      "Search provider calls by provider and outcome",
		}, []string{"provider", "status"}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Current number of knowledge entries",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Current number of undirected entry connections",
		}),
		Efficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_efficiency",
			Help:      "Memory efficiency score in [0, 1]",
		}),
	}

	c.registry.MustRegister(
		c.Stored,
		c.Retrieved,
		c.Evicted,
		c.SaveFailures,
		c.SearchCalls,
		c.Entries,
		c.Connections,
		c.Efficiency,
	)
	return c
}

func (c *Collector) EntryStored() { c.Stored.Inc() }

func (c *Collector) EntriesRetrieved(n int) {
	if n > 0 {
		c.Retrieved.Add(float64(n))
	}
}

func (c *Collector) EntriesEvicted(n int) {
	if n > 0 {
		c.Evicted.Add(float64(n))
	}
}

func (c *Collector) SaveFailed() { c.SaveFailures.Inc() }

// SearchCompleted counts one provider call as "success" or "error".
func (c *Collector) SearchCompleted(provider string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.SearchCalls.WithLabelValues(provider, status).Inc()
}

// Observe refreshes the gauges from a statistics snapshot.
func (c *Collector) Observe(st knowledge.Stats) {
	c.Entries.Set(float64(st.Entries))
	c.Connections.Set(float64(st.Connections))
	c.Efficiency.Set(st.Efficiency)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
