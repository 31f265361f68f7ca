package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IngestionCollector exports ingestion run counters on a dedicated
// registry, alongside the service's in-process snapshot.
type IngestionCollector struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	recordsProcessed prometheus.Counter
	runDuration      *prometheus.HistogramVec
}

func NewIngestionCollector() *IngestionCollector {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total provider ingestion runs by status.",
		},
		[]string{"status"},
	)
	recordsProcessed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "ingest",
			Name:      "records_processed_total",
			Help:      "Total records created by successful ingestion runs.",
		},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Provider ingestion run duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	registry.MustRegister(runsTotal, recordsProcessed, runDuration)

	return &IngestionCollector{
		registry:         registry,
		runsTotal:        runsTotal,
		recordsProcessed: recordsProcessed,
		runDuration:      runDuration,
	}
}

func (c *IngestionCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *IngestionCollector) ObserveRun(status string, records int, duration time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	if records > 0 {
		c.recordsProcessed.Add(float64(records))
	}
}
