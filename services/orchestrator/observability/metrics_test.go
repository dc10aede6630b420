// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a Metrics instance with a custom registry. This
// avoids conflicts with the global Prometheus registry and allows parallel
// testing.
func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	askRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "ask_requests_total",
			Help:      "Total ask requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	cascadeSettled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "cascade_settled_total",
			Help:      "Which data source settled the retrieval cascade",
		},
		[]string{"source"},
	)

	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "duration_seconds",
			Help:      "End-to-end ask pipeline latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"outcome"},
	)

	judgeVerdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "judge_verdicts_total",
			Help:      "Relevance judge verdicts by source",
		},
		[]string{"source", "verdict"},
	)

	reviewerUploads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "reviewer_uploads_total",
			Help:      "Reviewer ticket uploads by status",
		},
		[]string{"status"},
	)

	manifestRefreshes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "manifest_refreshes_total",
			Help:      "State-crops manifest rebuilds by status",
		},
		[]string{"status"},
	)

	proxyRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: proxySubsystem,
			Name:      "requests_total",
			Help:      "Proxied chat-completion requests by stream mode and status",
		},
		[]string{"mode", "status"},
	)

	translations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: proxySubsystem,
			Name:      "translations_total",
			Help:      "Inbound query translations by detected language",
		},
		[]string{"language"},
	)

	toolPruning := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: proxySubsystem,
			Name:      "tool_pruning_total",
			Help:      "Tool-manifest pruning decisions by classified intent",
		},
		[]string{"intent"},
	)

	activeStreams := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: proxySubsystem,
			Name:      "active_streams",
			Help:      "Number of currently active proxied streams",
		},
	)

	reg.MustRegister(
		askRequests,
		cascadeSettled,
		pipelineDuration,
		judgeVerdicts,
		reviewerUploads,
		manifestRefreshes,
		proxyRequests,
		translations,
		toolPruning,
		activeStreams,
	)

	return &Metrics{
		AskRequestsTotal:        askRequests,
		CascadeSettledTotal:     cascadeSettled,
		PipelineDurationSeconds: pipelineDuration,
		JudgeVerdictsTotal:      judgeVerdicts,
		ReviewerUploadsTotal:    reviewerUploads,
		ManifestRefreshesTotal:  manifestRefreshes,
		ProxyRequestsTotal:      proxyRequests,
		TranslationsTotal:       translations,
		ToolPruningTotal:        toolPruning,
		ActiveStreams:           activeStreams,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default
// Prometheus registry. This test must only run once per test binary
// execution since duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}
	if result.AskRequestsTotal == nil {
		t.Error("AskRequestsTotal should not be nil")
	}
	if result.ProxyRequestsTotal == nil {
		t.Error("ProxyRequestsTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordAsk(OutcomeAnswered, 0.5)
	result.RecordSettlement("reviewed")
	result.RecordVerdict("golden", true)
	result.RecordProxyRequest(true, true)
}

// ============================================================================
// Helper Method Tests
// ============================================================================

func TestRecordAsk(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAsk(OutcomeAnswered, 0.7)
	m.RecordAsk(OutcomeAnswered, 1.2)
	m.RecordAsk(OutcomeEscalated, 3.0)

	answered := testutil.ToFloat64(m.AskRequestsTotal.WithLabelValues("answered"))
	if answered != 2 {
		t.Errorf("AskRequestsTotal[answered] = %f, want 2", answered)
	}
	escalated := testutil.ToFloat64(m.AskRequestsTotal.WithLabelValues("escalated"))
	if escalated != 1 {
		t.Errorf("AskRequestsTotal[escalated] = %f, want 1", escalated)
	}
	if count := testutil.CollectAndCount(m.PipelineDurationSeconds); count == 0 {
		t.Error("Expected latency histogram observations")
	}
}

func TestRecordSettlement(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSettlement("reviewed")
	m.RecordSettlement("reviewed")
	m.RecordSettlement("pop")

	reviewed := testutil.ToFloat64(m.CascadeSettledTotal.WithLabelValues("reviewed"))
	if reviewed != 2 {
		t.Errorf("CascadeSettledTotal[reviewed] = %f, want 2", reviewed)
	}
	pop := testutil.ToFloat64(m.CascadeSettledTotal.WithLabelValues("pop"))
	if pop != 1 {
		t.Errorf("CascadeSettledTotal[pop] = %f, want 1", pop)
	}
}

func TestRecordVerdict(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordVerdict("reviewed", true)
	m.RecordVerdict("reviewed", false)
	m.RecordVerdict("video", true)

	yes := testutil.ToFloat64(m.JudgeVerdictsTotal.WithLabelValues("reviewed", "yes"))
	if yes != 1 {
		t.Errorf("JudgeVerdictsTotal[reviewed,yes] = %f, want 1", yes)
	}
	no := testutil.ToFloat64(m.JudgeVerdictsTotal.WithLabelValues("reviewed", "no"))
	if no != 1 {
		t.Errorf("JudgeVerdictsTotal[reviewed,no] = %f, want 1", no)
	}
}

func TestRecordReviewerUpload(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordReviewerUpload(true)
	m.RecordReviewerUpload(false)
	m.RecordReviewerUpload(false)

	accepted := testutil.ToFloat64(m.ReviewerUploadsTotal.WithLabelValues("accepted"))
	if accepted != 1 {
		t.Errorf("ReviewerUploadsTotal[accepted] = %f, want 1", accepted)
	}
	failed := testutil.ToFloat64(m.ReviewerUploadsTotal.WithLabelValues("failed"))
	if failed != 2 {
		t.Errorf("ReviewerUploadsTotal[failed] = %f, want 2", failed)
	}
}

func TestRecordProxyRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordProxyRequest(false, true)
	m.RecordProxyRequest(true, true)
	m.RecordProxyRequest(true, false)

	buffered := testutil.ToFloat64(m.ProxyRequestsTotal.WithLabelValues("buffered", "success"))
	if buffered != 1 {
		t.Errorf("ProxyRequestsTotal[buffered,success] = %f, want 1", buffered)
	}
	passErr := testutil.ToFloat64(m.ProxyRequestsTotal.WithLabelValues("pass_through", "error"))
	if passErr != 1 {
		t.Errorf("ProxyRequestsTotal[pass_through,error] = %f, want 1", passErr)
	}
}

func TestActiveStreamsLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.ActiveStreams.Inc()
	m.ActiveStreams.Inc()
	m.ActiveStreams.Dec()

	val := testutil.ToFloat64(m.ActiveStreams)
	if val != 1 {
		t.Errorf("ActiveStreams = %f, want 1", val)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestMetricsConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 60)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordAsk(OutcomeAnswered, 0.5)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		go func() {
			m.RecordVerdict("golden", true)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		go func() {
			m.ActiveStreams.Inc()
			m.ActiveStreams.Dec()
			done <- true
		}()
	}

	for i := 0; i < 60; i++ {
		<-done
	}

	asked := testutil.ToFloat64(m.AskRequestsTotal.WithLabelValues("answered"))
	if asked != 20 {
		t.Errorf("AskRequestsTotal[answered] = %f, want 20", asked)
	}
	verdicts := testutil.ToFloat64(m.JudgeVerdictsTotal.WithLabelValues("golden", "yes"))
	if verdicts != 20 {
		t.Errorf("JudgeVerdictsTotal[golden,yes] = %f, want 20", verdicts)
	}
}
