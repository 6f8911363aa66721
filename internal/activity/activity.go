// Package activity records what happened in problem sessions for audit and
// analytics. Logging is fire-and-forget: sinks report their own failures
// and never fail the operation that produced the event.
package activity

import (
	"context"
	"sync"
	"time"
)

// Kind identifies an activity event.
type Kind string

const (
	KindSessionStarted    Kind = "session_started"
	KindResponseSubmitted Kind = "response_submitted"
	KindStepCompleted     Kind = "step_completed"
	KindSessionCompleted  Kind = "session_completed"
	KindIntervention      Kind = "intervention_delivered"
	KindMistakeRecorded   Kind = "mistake_recorded"
	KindHintRequested     Kind = "hint_requested"
	KindGuidedAnswered    Kind = "guided_question_answered"
	KindSessionPaused     Kind = "session_paused"
	KindSessionResumed    Kind = "session_resumed"
	KindSessionAbandoned  Kind = "session_abandoned"
)

// Event is one activity record.
type Event struct {
	Kind      Kind           `json:"kind"`
	SessionID string         `json:"session_id"`
	StudentID string         `json:"student_id"`
	Detail    map[string]any `json:"detail,omitempty"`
	At        time.Time      `json:"at"`
}

// Logger accepts activity events.
type Logger interface {
	Log(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Log(context.Context, Event) {}

// Multi fans an event out to every logger in order.
type Multi []Logger

func (m Multi) Log(ctx context.Context, e Event) {
	for _, l := range m {
		l.Log(ctx, e)
	}
}

// Memory keeps events in memory. Useful in tests and for short CLI runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Log(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Kinds returns the kinds of the recorded events, in order.
func (m *Memory) Kinds() []Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Kind, len(m.events))
	for i, e := range m.events {
		out[i] = e.Kind
	}
	return out
}
