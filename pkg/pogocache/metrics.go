package pogocache

// metricsSink abstracts over Prometheus vs a no-op so the hot path never
// pays for a metric update when the caller didn't opt into WithMetrics.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/polypointlabs/pogocache-go/internal/engine"
)

type metricsSink interface {
	incInserted(shard int)
	incReplaced(shard int)
	incFound(shard int)
	incNotFound(shard int)
	incDeleted(shard int)
	incEvicted(shard int, reason engine.Reason)
}

type noopMetrics struct{}

func (noopMetrics) incInserted(int)                      {}
func (noopMetrics) incReplaced(int)                      {}
func (noopMetrics) incFound(int)                         {}
func (noopMetrics) incNotFound(int)                      {}
func (noopMetrics) incDeleted(int)                       {}
func (noopMetrics) incEvicted(int, engine.Reason)        {}

type promMetrics struct {
	status    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		status: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pogocache",
			Name:      "ops_total",
			Help:      "Cache operations by outcome (shard label is always 0).",
		}, []string{"shard", "status"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pogocache",
			Name:      "evictions_total",
			Help:      "Entries removed by expiry, low memory, or clear.",
		}, []string{"shard", "reason"}),
	}
	reg.MustRegister(pm.status, pm.evictions)
	return pm
}

func (m *promMetrics) incInserted(shard int) { m.status.WithLabelValues(strconv.Itoa(shard), "inserted").Inc() }
func (m *promMetrics) incReplaced(shard int) { m.status.WithLabelValues(strconv.Itoa(shard), "replaced").Inc() }
func (m *promMetrics) incFound(shard int)    { m.status.WithLabelValues(strconv.Itoa(shard), "found").Inc() }
func (m *promMetrics) incNotFound(shard int) { m.status.WithLabelValues(strconv.Itoa(shard), "notfound").Inc() }
func (m *promMetrics) incDeleted(shard int)  { m.status.WithLabelValues(strconv.Itoa(shard), "deleted").Inc() }

func (m *promMetrics) incEvicted(shard int, reason engine.Reason) {
	var r string
	switch reason {
	case engine.ReasonExpired:
		r = "expired"
	case engine.ReasonLowMem:
		r = "lowmem"
	case engine.ReasonCleared:
		r = "cleared"
	default:
		r = "unknown"
	}
	m.evictions.WithLabelValues(strconv.Itoa(shard), r).Inc()
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
