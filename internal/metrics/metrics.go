// Package metrics defines the Prometheus collectors of the runtime.
//
// Every method is safe on a nil *Metrics, so components can be built
// without metrics in tests and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "composer"

// ACL evaluation outcomes.
const (
	OutcomeAllow = "allow"
	OutcomeDeny  = "deny"
	OutcomeError = "error"
)

// Transaction statuses.
const (
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

// Metrics tracks compilation, execution and cache metrics.
type Metrics struct {
	QueryCompilations prometheus.Counter
	QueryExecutions   prometheus.Counter
	ScriptExecutions  prometheus.Counter
	AclEvaluations    *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	NetworkInstalls   prometheus.Counter
	InstallLatency    prometheus.Histogram
	Transactions      *prometheus.CounterVec
}

// New creates the collectors and registers them with registry.
// A nil registry leaves the collectors unregistered.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueryCompilations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "compilations_total",
			Help:      "Total number of query compilations",
		}),
		QueryExecutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "executions_total",
			Help:      "Total number of query executions",
		}),
		ScriptExecutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "functions_executed_total",
			Help:      "Total number of transaction processor functions executed",
		}),
		AclEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acl",
			Name:      "evaluations_total",
			Help:      "Total number of ACL condition evaluations by outcome",
		}, []string{"outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network_cache",
			Name:      "hits_total",
			Help:      "Total number of installed network cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network_cache",
			Name:      "misses_total",
			Help:      "Total number of installed network cache misses",
		}),
		NetworkInstalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "installs_total",
			Help:      "Total number of business network installations",
		}),
		InstallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "install_latency_seconds",
			Help:      "Business network installation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transactions_total",
			Help:      "Total number of submitted transactions by status",
		}, []string{"status"}),
	}

	if registry != nil {
		registry.MustRegister(
			m.QueryCompilations,
			m.QueryExecutions,
			m.ScriptExecutions,
			m.AclEvaluations,
			m.CacheHits,
			m.CacheMisses,
			m.NetworkInstalls,
			m.InstallLatency,
			m.Transactions,
		)
	}
	return m
}

// QueryCompiled records one query compilation.
func (m *Metrics) QueryCompiled() {
	if m != nil {
		m.QueryCompilations.Inc()
	}
}

// QueryExecuted records one query execution.
func (m *Metrics) QueryExecuted() {
	if m != nil {
		m.QueryExecutions.Inc()
	}
}

// ScriptsExecuted records n executed transaction processor functions.
func (m *Metrics) ScriptsExecuted(n int) {
	if m != nil {
		m.ScriptExecutions.Add(float64(n))
	}
}

// AclEvaluated records one ACL condition evaluation.
func (m *Metrics) AclEvaluated(outcome string) {
	if m != nil {
		m.AclEvaluations.WithLabelValues(outcome).Inc()
	}
}

// CacheHit records an installed network cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// CacheMiss records an installed network cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// NetworkInstalled records one installation and its duration.
func (m *Metrics) NetworkInstalled(d time.Duration) {
	if m != nil {
		m.NetworkInstalls.Inc()
		m.InstallLatency.Observe(d.Seconds())
	}
}

// TransactionSubmitted records one submitted transaction.
func (m *Metrics) TransactionSubmitted(status string) {
	if m != nil {
		m.Transactions.WithLabelValues(status).Inc()
	}
}
