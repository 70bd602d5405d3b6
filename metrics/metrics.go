package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kes/apperr"
)

const namespace = "kes"

var registry = prometheus.NewRegistry()

var (
	LabelsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "labels_generated_total",
		Help:      "Label codes persisted, by scope kind.",
	}, []string{"scope"})

	GenerationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "label_generation_failures_total",
		Help:      "Failed label operations, by error kind.",
	}, []string{"kind"})

	RenderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "label_render_seconds",
		Help:      "Time to compose one label image.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	ArchiveSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "label_archive_bytes",
		Help:      "Size of generated label archives.",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	ArchivesPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "label_archives_purged_total",
		Help:      "Expired label archives removed by the cleanup job.",
	})
)

func init() {
	registry.MustRegister(LabelsGenerated, GenerationFailures, RenderDuration, ArchiveSize, ArchivesPurged)
	registry.MustRegister(collectors.NewGoCollector())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveRender records the duration since start.
func ObserveRender(start time.Time) {
	RenderDuration.Observe(time.Since(start).Seconds())
}

// RecordFailure counts err under its error kind.
func RecordFailure(err error) {
	GenerationFailures.WithLabelValues(Kind(err)).Inc()
}

func Kind(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrGenerationExhausted):
		return "exhausted"
	case errors.Is(err, apperr.ErrConfiguration):
		return "configuration"
	case errors.Is(err, apperr.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
