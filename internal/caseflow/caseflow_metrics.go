package caseflow

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/recourse/internal/plan"
)

// Metrics holds Prometheus metrics for the caseflow subsystem.
type Metrics struct {
	CasesTotal       *prometheus.CounterVec
	CaseDuration     *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	SuspensionsTotal prometheus.Counter
	ResumesTotal     *prometheus.CounterVec
	ToolExecsTotal   *prometheus.CounterVec
	SubmitsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns caseflow metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CasesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recourse_cases_total",
			Help: "Total cases reaching a terminal status.",
		}, []string{"status"}),
		CaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recourse_case_duration_seconds",
			Help:    "Wall time from submission to terminal status, including suspension.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10), // 100ms .. ~7h (cases can wait on humans)
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recourse_stage_duration_seconds",
			Help:    "Duration of individual workflow stages.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"stage"}),
		SuspensionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recourse_suspensions_total",
			Help: "Total workflow suspensions awaiting human approval.",
		}),
		ResumesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recourse_resumes_total",
			Help: "Total resume calls by decision outcome.",
		}, []string{"decision"}),
		ToolExecsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recourse_tool_executions_total",
			Help: "Total plan step executions by tool kind and status.",
		}, []string{"tool", "status"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recourse_submits_total",
			Help: "Total ticket submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.CasesTotal,
		m.CaseDuration,
		m.StageDuration,
		m.SuspensionsTotal,
		m.ResumesTotal,
		m.ToolExecsTotal,
		m.SubmitsTotal,
	)

	return m
}

// WorkflowHooks receives workflow lifecycle events. The zero value is valid;
// nil members are skipped.
type WorkflowHooks struct {
	OnStage      func(stage Stage, seconds float64)
	OnSuspend    func()
	OnResume     func(d Decision)
	OnToolResult func(kind plan.Kind, ok bool)
	OnComplete   func(status Status, seconds float64)
}

// Hooks returns a WorkflowHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() WorkflowHooks {
	return WorkflowHooks{
		OnStage: func(stage Stage, seconds float64) {
			m.StageDuration.WithLabelValues(string(stage)).Observe(seconds)
		},
		OnSuspend: func() {
			m.SuspensionsTotal.Inc()
		},
		OnResume: func(d Decision) {
			label := string(d)
			if d == DecisionPending {
				label = "deferred"
			}
			m.ResumesTotal.WithLabelValues(label).Inc()
		},
		OnToolResult: func(kind plan.Kind, ok bool) {
			status := "success"
			if !ok {
				status = "error"
			}
			m.ToolExecsTotal.WithLabelValues(string(kind), status).Inc()
		},
		OnComplete: func(status Status, seconds float64) {
			m.CasesTotal.WithLabelValues(string(status)).Inc()
			m.CaseDuration.WithLabelValues(string(status)).Observe(seconds)
		},
	}
}
