package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abhisek/stepwise/internal/llm"
)

var _ llm.Recorder = (*Engine)(nil)

func TestCounters(t *testing.T) {
	e := New()
	e.ObserveSubmission("excellent")
	e.ObserveSubmission("excellent")
	e.ObserveSubmission("incorrect")
	e.ObserveIntervention("hint", "student_requested")
	e.ObserveMistake("procedural", "medium")
	e.ObserveSession(SessionStarted)
	e.ObserveHint()
	e.ObserveHint()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"excellent submissions", testutil.ToFloat64(e.submissions.WithLabelValues("excellent")), 2},
		{"incorrect submissions", testutil.ToFloat64(e.submissions.WithLabelValues("incorrect")), 1},
		{"hint interventions", testutil.ToFloat64(e.interventions.WithLabelValues("hint", "student_requested")), 1},
		{"procedural mistakes", testutil.ToFloat64(e.mistakes.WithLabelValues("procedural", "medium")), 1},
		{"started sessions", testutil.ToFloat64(e.sessions.WithLabelValues(SessionStarted)), 1},
		{"hints", testutil.ToFloat64(e.hints), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestObserveLLMRequest(t *testing.T) {
	e := New()
	e.ObserveLLMRequest("scaffold-hint", true, 120*time.Millisecond)
	e.ObserveLLMRequest("scaffold-hint", false, 3*time.Second)

	if got := testutil.ToFloat64(e.llmRequests.WithLabelValues("scaffold-hint", "success")); got != 1 {
		t.Errorf("successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.llmRequests.WithLabelValues("scaffold-hint", "failure")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}

	n, err := testutil.GatherAndCount(e.Registry(), "stepwise_llm_request_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine
	e.ObserveSubmission("good")
	e.ObserveIntervention("hint", "x")
	e.ObserveMistake("careless", "low")
	e.ObserveSession(SessionCompleted)
	e.ObserveHint()
	e.ObserveLLMRequest("p", true, time.Second)
	if err := e.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile on nil engine: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	e := New()
	e.ObserveSession(SessionCompleted)

	path := filepath.Join(t.TempDir(), "stepwise.prom")
	if err := e.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := `stepwise_sessions_total{outcome="completed"} 1`; !strings.Contains(string(data), want) {
		t.Errorf("textfile missing %q:\n%s", want, data)
	}
}
