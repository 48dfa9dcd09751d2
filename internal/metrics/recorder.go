// Package metrics records run metrics on a private Prometheus registry.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const namespace = "auditgate"

type Recorder struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	casesTotal       *prometheus.CounterVec
	caseDuration     *prometheus.HistogramVec
	detectorFailures *prometheus.CounterVec
	categoryMetric   *prometheus.GaugeVec
	categorySamples  *prometheus.GaugeVec
	categorySatisfy  *prometheus.GaugeVec
	scanCache        *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Audit runs by outcome",
		},
		[]string{"result"},
	)
	r.casesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_evaluated_total",
			Help:      "Cases evaluated per category",
		},
		[]string{"category"},
	)
	r.caseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_duration_seconds",
			Help:      "Time to evaluate one case, model call included",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"category"},
	)
	r.detectorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Detector or model failures that aborted a run",
		},
		[]string{"detector"},
	)
	r.categoryMetric = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "category_metric",
			Help:      "Aggregate metric of the last run",
		},
		[]string{"category"},
	)
	r.categorySamples = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "category_samples",
			Help:      "Cases evaluated in the last run",
		},
		[]string{"category"},
	)
	r.categorySatisfy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "category_satisfied",
			Help:      "1 when the category satisfied its threshold in the last run",
		},
		[]string{"category"},
	)
	r.scanCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cache_requests_total",
			Help:      "Scan service cache lookups",
		},
		[]string{"result"},
	)

	r.registry.MustRegister(
		r.runsTotal, r.casesTotal, r.caseDuration, r.detectorFailures,
		r.categoryMetric, r.categorySamples, r.categorySatisfy, r.scanCache,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveCase(category string, d time.Duration) {
	if r == nil {
		return
	}
	r.casesTotal.WithLabelValues(category).Inc()
	r.caseDuration.WithLabelValues(category).Observe(d.Seconds())
}

func (r *Recorder) DetectorFailure(detector string) {
	if r == nil {
		return
	}
	r.detectorFailures.WithLabelValues(detector).Inc()
	r.runsTotal.WithLabelValues("error").Inc()
}

func (r *Recorder) ObserveVerdict(v types.Verdict) {
	if r == nil {
		return
	}
	result := "fail"
	if v.Passed {
		result = "pass"
	}
	r.runsTotal.WithLabelValues(result).Inc()
	for _, e := range v.Breakdown {
		c := e.Aggregate.Category
		r.categoryMetric.WithLabelValues(c).Set(e.Aggregate.Metric)
		r.categorySamples.WithLabelValues(c).Set(float64(e.Aggregate.SampleCount))
		sat := 0.0
		if e.Satisfied {
			sat = 1
		}
		r.categorySatisfy.WithLabelValues(c).Set(sat)
	}
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.scanCache.WithLabelValues("hit").Inc()
		return
	}
	r.scanCache.WithLabelValues("miss").Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
