// Package metrics counts engine outcomes in a private Prometheus registry.
// The CLI has no scrape endpoint, so the registry is written out in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stepwise"

// Engine holds the engine's collectors. A nil *Engine records nothing.
type Engine struct {
	reg *prometheus.Registry

	submissions   *prometheus.CounterVec
	interventions *prometheus.CounterVec
	mistakes      *prometheus.CounterVec
	sessions      *prometheus.CounterVec
	hints         prometheus.Counter
	llmRequests   *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
}

// New registers every collector in a fresh registry.
func New() *Engine {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Engine{
		reg: reg,
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Step responses analysed, by quality.",
		}, []string{"quality"}),
		interventions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interventions_total",
			Help:      "Scaffolding interventions delivered, by type and trigger.",
		}, []string{"type", "trigger"}),
		mistakes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mistakes_total",
			Help:      "Classified mistakes, by type and severity.",
		}, []string{"type", "severity"}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Session lifecycle transitions, by outcome.",
		}, []string{"outcome"}),
		hints: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hints_requested_total",
			Help:      "On-demand hints requested.",
		}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Text generation requests, by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Time spent in text generation requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"purpose"}),
	}
}

// Session outcomes.
const (
	SessionStarted   = "started"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
	SessionPaused    = "paused"
	SessionResumed   = "resumed"
)

func (e *Engine) ObserveSubmission(quality string) {
	if e == nil {
		return
	}
	e.submissions.WithLabelValues(quality).Inc()
}

func (e *Engine) ObserveIntervention(typ, trigger string) {
	if e == nil {
		return
	}
	e.interventions.WithLabelValues(typ, trigger).Inc()
}

func (e *Engine) ObserveMistake(typ, severity string) {
	if e == nil {
		return
	}
	e.mistakes.WithLabelValues(typ, severity).Inc()
}

func (e *Engine) ObserveSession(outcome string) {
	if e == nil {
		return
	}
	e.sessions.WithLabelValues(outcome).Inc()
}

func (e *Engine) ObserveHint() {
	if e == nil {
		return
	}
	e.hints.Inc()
}

// ObserveLLMRequest implements llm.Recorder.
func (e *Engine) ObserveLLMRequest(purpose string, success bool, latency time.Duration) {
	if e == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	e.llmRequests.WithLabelValues(purpose, outcome).Inc()
	e.llmLatency.WithLabelValues(purpose).Observe(latency.Seconds())
}

// Registry exposes the underlying registry.
func (e *Engine) Registry() *prometheus.Registry {
	return e.reg
}

// WriteTextfile atomically writes the current values to path.
func (e *Engine) WriteTextfile(path string) error {
	if e == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, e.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
