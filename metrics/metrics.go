// Package metrics records pipeline telemetry.
//
// Components depend on the Recorder interface. Noop is the default; Prometheus
// registers collectors with a caller-supplied registerer so a CLI run can dump
// them with prometheus.WriteToTextfile and a long-lived process can serve them.
package metrics

import (
	"time"

	"github.com/poiesic/regmap/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives pipeline telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordStage records one stage invocation. A nil err counts as "ok";
	// otherwise the outcome label is the error's core.Kind.
	RecordStage(stage string, err error, duration time.Duration, affected int)

	// RecordEmbedding records one embedding request of n texts.
	RecordEmbedding(provider string, n int, err error)

	// RecordCacheAccess records a vector cache lookup.
	RecordCacheAccess(namespace string, hit bool)
}

// Noop discards everything.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordStage(string, error, time.Duration, int) {}
func (Noop) RecordEmbedding(string, int, error)            {}
func (Noop) RecordCacheAccess(string, bool)                {}

const namespace = "regmap"

var stageBuckets = []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageAffected *prometheus.CounterVec
	embedRequests *prometheus.CounterVec
	embedTexts    *prometheus.CounterVec
	cacheAccesses *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with registerer.
// A nil registerer means prometheus.DefaultRegisterer.
func NewPrometheus(registerer prometheus.Registerer) (*Prometheus, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage invocations by outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
		stageAffected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_records_total",
			Help:      "Records inserted or updated by successful stage invocations.",
		}, []string{"stage"}),
		embedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding provider requests by status.",
		}, []string{"provider", "status"}),
		embedTexts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_texts_total",
			Help:      "Texts sent to the embedding provider.",
		}, []string{"provider"}),
		cacheAccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_cache_access_total",
			Help:      "Vector cache lookups by result.",
		}, []string{"namespace", "result"}),
	}

	collectors := []prometheus.Collector{
		m.stageRuns,
		m.stageDuration,
		m.stageAffected,
		m.embedRequests,
		m.embedTexts,
		m.cacheAccesses,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Prometheus) RecordStage(stage string, err error, duration time.Duration, affected int) {
	outcome := "ok"
	if err != nil {
		outcome = string(core.KindOf(err))
	}
	m.stageRuns.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err == nil && affected > 0 {
		m.stageAffected.WithLabelValues(stage).Add(float64(affected))
	}
}

func (m *Prometheus) RecordEmbedding(provider string, n int, err error) {
	status := "ok"
	if err != nil {
		status = string(core.KindOf(err))
	}
	m.embedRequests.WithLabelValues(provider, status).Inc()
	m.embedTexts.WithLabelValues(provider).Add(float64(n))
}

func (m *Prometheus) RecordCacheAccess(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheAccesses.WithLabelValues(namespace, result).Inc()
}
