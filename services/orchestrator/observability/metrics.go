// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the
// orchestration core.
//
// # Description
//
// This package implements Prometheus metrics for the ask pipeline and the
// chat proxy. Metrics include:
//   - Ask request counters (by outcome)
//   - Cascade settlement counters (which source answered)
//   - Pipeline latency histograms
//   - Relevance judge verdict counters
//   - Proxy request and stream-mode counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "ajrasakha"

const (
	pipelineSubsystem = "pipeline"
	proxySubsystem    = "proxy"
)

// Metrics holds all Prometheus metrics for the orchestration core.
//
// # Description
//
// Provides counters, histograms, and gauges for the ask pipeline and the
// chat proxy. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// AskRequestsTotal counts ask requests by terminal outcome.
	// Labels: outcome (answered, greeting, missing_state, escalated, error)
	AskRequestsTotal *prometheus.CounterVec

	// CascadeSettledTotal counts which source settled the cascade.
	// Labels: source (reviewed, golden, pop, reviewer)
	CascadeSettledTotal *prometheus.CounterVec

	// PipelineDurationSeconds measures end-to-end ask pipeline latency.
	// Labels: outcome
	PipelineDurationSeconds *prometheus.HistogramVec

	// JudgeVerdictsTotal counts relevance judge verdicts.
	// Labels: source (reviewed, golden, pop, video), verdict (yes, no)
	JudgeVerdictsTotal *prometheus.CounterVec

	// ReviewerUploadsTotal counts reviewer ticket uploads.
	// Labels: status (accepted, failed)
	ReviewerUploadsTotal *prometheus.CounterVec

	// ManifestRefreshesTotal counts state-crops manifest rebuilds.
	// Labels: status (success, failed)
	ManifestRefreshesTotal *prometheus.CounterVec

	// ProxyRequestsTotal counts proxied chat-completion requests.
	// Labels: mode (buffered, pass_through), status (success, error)
	ProxyRequestsTotal *prometheus.CounterVec

	// TranslationsTotal counts inbound query translations.
	// Labels: language (detected source language code)
	TranslationsTotal *prometheus.CounterVec

	// ToolPruningTotal counts tool-manifest pruning decisions.
	// Labels: intent (WEATHER, MARKET, AGRICULTURE)
	ToolPruningTotal *prometheus.CounterVec

	// ActiveStreams tracks currently active proxied streams.
	ActiveStreams prometheus.Gauge
}

// DefaultMetrics is the singleton instance of Metrics.
// Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *Metrics {
	DefaultMetrics = &Metrics{
		AskRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "ask_requests_total",
				Help:      "Total ask requests by terminal outcome",
			},
			[]string{"outcome"},
		),

		CascadeSettledTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cascade_settled_total",
				Help:      "Which data source settled the retrieval cascade",
			},
			[]string{"source"},
		),

		PipelineDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end ask pipeline latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"outcome"},
		),

		JudgeVerdictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "judge_verdicts_total",
				Help:      "Relevance judge verdicts by source",
			},
			[]string{"source", "verdict"},
		),

		ReviewerUploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "reviewer_uploads_total",
				Help:      "Reviewer ticket uploads by status",
			},
			[]string{"status"},
		),

		ManifestRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "manifest_refreshes_total",
				Help:      "State-crops manifest rebuilds by status",
			},
			[]string{"status"},
		),

		ProxyRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "requests_total",
				Help:      "Proxied chat-completion requests by stream mode and status",
			},
			[]string{"mode", "status"},
		),

		TranslationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "translations_total",
				Help:      "Inbound query translations by detected language",
			},
			[]string{"language"},
		),

		ToolPruningTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "tool_pruning_total",
				Help:      "Tool-manifest pruning decisions by classified intent",
			},
			[]string{"intent"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "active_streams",
				Help:      "Number of currently active proxied streams",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Label Values
// =============================================================================

// Outcome labels an ask request's terminal state.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeGreeting     Outcome = "greeting"
	OutcomeMissingState Outcome = "missing_state"
	OutcomeEscalated    Outcome = "escalated"
	OutcomeError        Outcome = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordAsk records a completed ask request with its latency.
func (m *Metrics) RecordAsk(outcome Outcome, seconds float64) {
	m.AskRequestsTotal.WithLabelValues(string(outcome)).Inc()
	m.PipelineDurationSeconds.WithLabelValues(string(outcome)).Observe(seconds)
}

// RecordSettlement records which source settled the cascade.
func (m *Metrics) RecordSettlement(source string) {
	m.CascadeSettledTotal.WithLabelValues(source).Inc()
}

// RecordVerdict records a relevance judge verdict.
func (m *Metrics) RecordVerdict(source string, relevant bool) {
	verdict := "no"
	if relevant {
		verdict = "yes"
	}
	m.JudgeVerdictsTotal.WithLabelValues(source, verdict).Inc()
}

// RecordReviewerUpload records a reviewer ticket attempt.
func (m *Metrics) RecordReviewerUpload(accepted bool) {
	status := "failed"
	if accepted {
		status = "accepted"
	}
	m.ReviewerUploadsTotal.WithLabelValues(status).Inc()
}

// RecordManifestRefresh records a manifest rebuild attempt.
func (m *Metrics) RecordManifestRefresh(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.ManifestRefreshesTotal.WithLabelValues(status).Inc()
}

// RecordProxyRequest records a proxied chat-completion request.
func (m *Metrics) RecordProxyRequest(passThrough, success bool) {
	mode := "buffered"
	if passThrough {
		mode = "pass_through"
	}
	status := "error"
	if success {
		status = "success"
	}
	m.ProxyRequestsTotal.WithLabelValues(mode, status).Inc()
}

// RecordTranslation records an inbound translation by source language.
func (m *Metrics) RecordTranslation(language string) {
	m.TranslationsTotal.WithLabelValues(language).Inc()
}

// RecordToolPruning records a tool-manifest pruning decision.
func (m *Metrics) RecordToolPruning(intent string) {
	m.ToolPruningTotal.WithLabelValues(intent).Inc()
}
