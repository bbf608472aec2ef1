// Package metrics records vault and sync activity in a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for vault requests
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics provides methods to record vault request and sync metrics.
type Metrics struct {
	registry *prometheus.Registry

	vaultRequestsTotal   *prometheus.CounterVec
	vaultRequestDuration *prometheus.HistogramVec
	vaultKeysReturned    *prometheus.CounterVec
	variablesWritten     prometheus.Gauge
	syncRunsTotal        *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		vaultRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultenv_vault_requests_total",
				Help: "Total number of vault requests by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		vaultRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultenv_vault_request_duration_seconds",
				Help:    "Duration of vault requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"provider"},
		),
		vaultKeysReturned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultenv_vault_keys_returned_total",
				Help: "Total number of values returned by vault providers",
			},
			[]string{"provider"},
		),
		variablesWritten: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vaultenv_sync_variables_written",
				Help: "Number of variables in the managed block after the last sync",
			},
		),
		syncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultenv_sync_runs_total",
				Help: "Total number of sync runs by result",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordVaultRequest records a completed vault request
func (m *Metrics) RecordVaultRequest(provider string, duration time.Duration, keys int, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.vaultRequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.vaultRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err == nil {
		m.vaultKeysReturned.WithLabelValues(provider).Add(float64(keys))
	}
}

// RecordSync records the outcome of a sync run.
// result is one of "written", "unchanged", "out_of_date" or "error".
func (m *Metrics) RecordSync(result string, variables int) {
	if m == nil {
		return
	}
	m.syncRunsTotal.WithLabelValues(result).Inc()
	if result != "error" {
		m.variablesWritten.Set(float64(variables))
	}
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
