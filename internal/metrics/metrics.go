// Package metrics exposes the control plane's Prometheus instrumentation:
// source sync outcomes and durations, provider failover counts, and
// analysis-run completions. It holds no application state of its own —
// every Record* call is a pass-through to a registered collector.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector insightctl registers with Prometheus.
type Registry struct {
	syncTotal             *prometheus.CounterVec
	syncDurationSeconds   *prometheus.HistogramVec
	providerFailoverTotal *prometheus.CounterVec
	analysisRunTotal      *prometheus.CounterVec
}

var (
	instance     *Registry
	instanceOnce sync.Once
)

// Get returns the process-wide metrics registry, constructing and
// registering it with the default Prometheus registerer on first use.
func Get() *Registry {
	instanceOnce.Do(func() {
		instance = newRegistry()
	})
	return instance
}

func newRegistry() *Registry {
	r := &Registry{
		syncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightctl",
				Subsystem: "sources",
				Name:      "sync_runs_total",
				Help:      "Total source sync runs by source type and outcome status",
			},
			[]string{"source_type", "status"},
		),
		syncDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "insightctl",
				Subsystem: "sources",
				Name:      "sync_duration_seconds",
				Help:      "Source sync wall-clock duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source_type"},
		),
		providerFailoverTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightctl",
				Subsystem: "modelrun",
				Name:      "provider_failover_total",
				Help:      "Total provider chain failovers by the provider that failed",
			},
			[]string{"provider"},
		),
		analysisRunTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightctl",
				Subsystem: "runs",
				Name:      "analysis_run_total",
				Help:      "Total analysis run executions by final status",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		r.syncTotal,
		r.syncDurationSeconds,
		r.providerFailoverTotal,
		r.analysisRunTotal,
	)

	return r
}

// RecordSync records one source sync run's outcome and wall-clock duration.
func (r *Registry) RecordSync(sourceType, status string, durationSeconds float64) {
	r.syncTotal.WithLabelValues(sourceType, status).Inc()
	r.syncDurationSeconds.WithLabelValues(sourceType).Observe(durationSeconds)
}

// RecordProviderFailover records one provider chain entry that failed
// during selection; entries skipped for cooldown are not recorded.
func (r *Registry) RecordProviderFailover(provider string) {
	r.providerFailoverTotal.WithLabelValues(provider).Inc()
}

// RecordAnalysisRun records one analysis run reaching a terminal status.
func (r *Registry) RecordAnalysisRun(status string) {
	r.analysisRunTotal.WithLabelValues(status).Inc()
}
