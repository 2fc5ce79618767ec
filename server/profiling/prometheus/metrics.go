/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coedit-team/coedit/internal/version"
)

const (
	namespace     = "coedit"
	taskTypeLabel = "task_type"
	opKindLabel   = "op_kind"
	reasonLabel   = "reason"
	resultLabel   = "result"
)

// Metrics manages the metric information that the server measures.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	operationsAcceptedTotal    *prometheus.CounterVec
	operationsRejectedTotal    *prometheus.CounterVec
	operationsTransformedTotal prometheus.Counter

	revisionWritesTotal       *prometheus.CounterVec
	revisionWriteRetriesTotal prometheus.Counter
	revisionQueueDepth        prometheus.Gauge

	activeDocumentsTotal   prometheus.Gauge
	degradedDocumentsTotal prometheus.Gauge
	presenceUsersTotal     prometheus.Gauge

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		operationsAcceptedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_accepted_total",
			Help:      "Total number of operations accepted and applied.",
		}, []string{opKindLabel}),
		operationsRejectedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_rejected_total",
			Help:      "Total number of operations rejected before application.",
		}, []string{reasonLabel}),
		operationsTransformedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_transformed_total",
			Help:      "Total number of transformations applied to stale operations.",
		}),
		revisionWritesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "revision_writes_total",
			Help:      "Total number of revision ledger writes by result.",
		}, []string{resultLabel}),
		revisionWriteRetriesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "revision_write_retries_total",
			Help:      "Total number of retried revision ledger writes.",
		}),
		revisionQueueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "revision_queue_depth",
			Help:      "Number of revision writes waiting in per-document queues.",
		}),
		activeDocumentsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active_documents_total",
			Help:      "Number of documents currently loaded in the engine.",
		}),
		degradedDocumentsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "degraded_documents_total",
			Help:      "Number of documents marked degraded after exhausted revision writes.",
		}),
		presenceUsersTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "users_total",
			Help:      "Number of users currently present across all documents.",
		}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by task type.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddOperationAccepted adds the number of accepted operations of the kind.
func (m *Metrics) AddOperationAccepted(kind string) {
	m.operationsAcceptedTotal.With(prometheus.Labels{opKindLabel: kind}).Inc()
}

// AddOperationRejected adds the number of rejected operations for the reason.
func (m *Metrics) AddOperationRejected(reason string) {
	m.operationsRejectedTotal.With(prometheus.Labels{reasonLabel: reason}).Inc()
}

// AddOperationsTransformed adds the number of applied transformations.
func (m *Metrics) AddOperationsTransformed(count int) {
	m.operationsTransformedTotal.Add(float64(count))
}

// AddRevisionWrite adds the number of revision writes with the result.
func (m *Metrics) AddRevisionWrite(result string) {
	m.revisionWritesTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

// AddRevisionWriteRetry adds the number of retried revision writes.
func (m *Metrics) AddRevisionWriteRetry() {
	m.revisionWriteRetriesTotal.Inc()
}

// AddRevisionQueue adds the depth of pending revision writes.
func (m *Metrics) AddRevisionQueue() {
	m.revisionQueueDepth.Inc()
}

// RemoveRevisionQueue removes the depth of pending revision writes.
func (m *Metrics) RemoveRevisionQueue() {
	m.revisionQueueDepth.Dec()
}

// AddActiveDocument adds the number of loaded documents.
func (m *Metrics) AddActiveDocument() {
	m.activeDocumentsTotal.Inc()
}

// RemoveActiveDocument removes the number of loaded documents.
func (m *Metrics) RemoveActiveDocument() {
	m.activeDocumentsTotal.Dec()
}

// AddDegradedDocument adds the number of degraded documents.
func (m *Metrics) AddDegradedDocument() {
	m.degradedDocumentsTotal.Inc()
}

// RemoveDegradedDocument removes the number of degraded documents.
func (m *Metrics) RemoveDegradedDocument() {
	m.degradedDocumentsTotal.Dec()
}

// AddPresenceUser adds the number of present users.
func (m *Metrics) AddPresenceUser() {
	m.presenceUsersTotal.Inc()
}

// RemovePresenceUser removes the number of present users.
func (m *Metrics) RemovePresenceUser() {
	m.presenceUsersTotal.Dec()
}

// AddBackgroundGoroutines adds the number of attached goroutines.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{taskTypeLabel: taskType}).Inc()
}

// RemoveBackgroundGoroutines removes the number of attached goroutines.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{taskTypeLabel: taskType}).Dec()
}
