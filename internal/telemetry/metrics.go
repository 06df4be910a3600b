package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts loader activity.
type Metrics struct {
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	Documents      prometheus.Counter
}

// NewMetrics creates the loader metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jira_loader_searches_total",
				Help: "Number of JQL searches issued, by result",
			},
			[]string{"result"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jira_loader_search_duration_seconds",
				Help:    "Duration of JQL searches in seconds, including all pages",
				Buckets: prometheus.DefBuckets,
			},
		),
		Documents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jira_loader_documents_total",
				Help: "Number of documents produced",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Searches, m.SearchDuration, m.Documents} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return m, nil
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Searches.WithLabelValues(result).Inc()
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

// ObserveDocument records one produced document.
func (m *Metrics) ObserveDocument() {
	if m == nil {
		return
	}
	m.Documents.Inc()
}

// WriteTextfile writes the current values of reg's metrics to path in
// the Prometheus text format.
func WriteTextfile(reg prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
