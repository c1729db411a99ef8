// Package metrics provides Prometheus metrics for indexing and search.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relic_history"

// Search outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeParseError = "parse_error"
	OutcomeError      = "error"
)

// Metrics holds the collectors of one process on a dedicated registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// RevisionsIndexed counts revisions written to the index.
	RevisionsIndexed prometheus.Counter

	// Documents reports the document count after the last sync.
	Documents prometheus.Gauge

	// TaxonomySize reports the number of facet categories after the last sync.
	TaxonomySize prometheus.Gauge

	// SearchesTotal counts searches by outcome.
	SearchesTotal *prometheus.CounterVec

	// SearchDuration measures search latency.
	SearchDuration prometheus.Histogram

	// FetchErrors counts failed revision fetches.
	FetchErrors prometheus.Counter
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RevisionsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revisions_indexed_total",
			Help:      "Total number of revisions written to the index",
		}),
		Documents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Number of documents in the index after the last sync",
		}),
		TaxonomySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "taxonomy_size",
			Help:      "Number of facet categories, including the root, after the last sync",
		}),
		SearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of searches",
			},
			[]string{"outcome"},
		),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed revision fetches",
		}),
	}
}

// RecordIndexed records a sync that added revisions and left the index at the given size.
func (m *Metrics) RecordIndexed(revisions int, documents uint64, taxonomySize int) {
	if m == nil {
		return
	}
	m.RevisionsIndexed.Add(float64(revisions))
	m.Documents.Set(float64(documents))
	m.TaxonomySize.Set(float64(taxonomySize))
}

// RecordSearch records one search.
func (m *Metrics) RecordSearch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(duration.Seconds())
}

// RecordFetchError records a failed fetch.
func (m *Metrics) RecordFetchError() {
	if m == nil {
		return
	}
	m.FetchErrors.Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
