// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Metrics are the registry's Prometheus instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	compensations *prometheus.CounterVec
}

// NewMetrics creates the registry instruments and registers them with
// registerer. A nil registerer leaves them unregistered, which tests
// use to read values without a global registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypiserver_registry_operations_total",
				Help: "Registry operations by outcome. result is ok or the error kind.",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pypiserver_registry_operation_duration_seconds",
				Help:    "Registry operation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypiserver_registry_compensations_total",
				Help: "Artifacts removed after a failed catalog write. outcome=failed means the bytes were orphaned.",
			},
			[]string{"outcome"},
		),
	}
	if registerer != nil {
		registerer.MustRegister(m.operations, m.duration, m.compensations)
	}
	return m
}

func (m *Metrics) observe(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, resultLabel(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) compensated(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.compensations.WithLabelValues(outcome).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := pkgmeta.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
