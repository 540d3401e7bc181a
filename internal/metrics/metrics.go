// Package metrics exports model load statistics in Prometheus format.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Faultbox/ifcmesh/pkg/ifc"
)

// Namespace prefixes every metric name.
const Namespace = "ifcmesh"

// PrometheusObserver implements ifc.Observer on a private registry.
type PrometheusObserver struct {
	registry *prometheus.Registry

	loads       *prometheus.CounterVec
	stageTime   *prometheus.HistogramVec
	entities    prometheus.Histogram
	triangles   prometheus.Histogram
	inputBytes  prometheus.Histogram
	diagnostics *prometheus.CounterVec
	rendered    prometheus.Counter
}

var _ ifc.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates an observer and registers its collectors.
func NewPrometheusObserver() *PrometheusObserver {
	o := &PrometheusObserver{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "loads_total",
			Help:      "Model loads by terminal state",
		}, []string{"state"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "load_stage_duration_seconds",
			Help:      "Time spent per load stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		entities: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "model_entities",
			Help:      "Decoded entity records per model",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 7),
		}),
		triangles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "model_triangles",
			Help:      "Triangles in the unified mesh per model",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}),
		inputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "document_bytes",
			Help:      "Size of loaded documents before unwrapping",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "diagnostics_total",
			Help:      "Recoverable load problems by kind",
		}, []string{"kind"}),
		rendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rendered_entities_total",
			Help:      "Entities that contributed triangles",
		}),
	}

	o.registry.MustRegister(
		o.loads,
		o.stageTime,
		o.entities,
		o.triangles,
		o.inputBytes,
		o.diagnostics,
		o.rendered,
	)
	return o
}

// ObserveLoad records one finished load.
func (o *PrometheusObserver) ObserveLoad(st ifc.LoadStats) {
	o.loads.WithLabelValues(st.State.String()).Inc()
	o.inputBytes.Observe(float64(st.Bytes))

	o.stageTime.WithLabelValues("decode").Observe(st.DecodeDuration.Seconds())
	if st.State != ifc.StateReady {
		return
	}
	o.stageTime.WithLabelValues("build").Observe(st.BuildDuration.Seconds())
	o.stageTime.WithLabelValues("merge").Observe(st.MergeDuration.Seconds())

	o.entities.Observe(float64(st.Entities))
	o.triangles.Observe(float64(st.Triangles))
	o.rendered.Add(float64(st.Rendered))
	for kind, n := range st.Diagnostics {
		o.diagnostics.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// Registry returns the registry holding the observer's collectors.
func (o *PrometheusObserver) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the metrics over HTTP.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics in text exposition format, e.g. for the
// node exporter textfile collector.
func (o *PrometheusObserver) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, o.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
