// Package guided keeps the state of a guided-questioning sub-dialogue: the
// sequenced questions produced for a mistake and the student's replies to
// them. State lives only for a short time and is keyed by session and step.
package guided

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/stepwise/internal/questioning"
)

// DefaultTTL is how long an unanswered dialogue stays live.
const DefaultTTL = 10 * time.Minute

// ErrNotFound is returned when no live dialogue exists for a session step.
var ErrNotFound = errors.New("guided: no active questioning session")

// Phase names the bucket the cursor is in.
type Phase string

const (
	PhaseImmediate  Phase = "immediate"
	PhaseFollowUp   Phase = "follow_up"
	PhaseReflection Phase = "reflection"
	PhaseDone       Phase = "done"
)

// Reply is the student's answer to one question.
type Reply struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Session is one guided-questioning dialogue. Cursor indexes the question
// currently waiting for an answer, counted across all buckets.
type Session struct {
	SessionID  string           `json:"session_id"`
	StepNumber int              `json:"step_number"`
	Plan       questioning.Plan `json:"plan"`
	Cursor     int              `json:"cursor"`
	Replies    []Reply          `json:"replies,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewSession starts a dialogue at the first immediate question.
func NewSession(sessionID string, step int, plan *questioning.Plan, now time.Time) *Session {
	return &Session{
		SessionID:  sessionID,
		StepNumber: step,
		Plan:       *plan,
		CreatedAt:  now.UTC(),
	}
}

// Current returns the question awaiting an answer.
func (s *Session) Current() (questioning.Question, bool) {
	all := s.Plan.All()
	if s.Cursor >= len(all) {
		return questioning.Question{}, false
	}
	return all[s.Cursor], true
}

// Phase reports which bucket the current question belongs to.
func (s *Session) Phase() Phase {
	switch c := s.Cursor; {
	case c < len(s.Plan.Immediate):
		return PhaseImmediate
	case c < len(s.Plan.Immediate)+len(s.Plan.FollowUp):
		return PhaseFollowUp
	case c < len(s.Plan.Immediate)+len(s.Plan.FollowUp)+len(s.Plan.Reflection):
		return PhaseReflection
	}
	return PhaseDone
}

// Done reports whether every question has been answered.
func (s *Session) Done() bool {
	return s.Phase() == PhaseDone
}

// Remaining is the number of questions not yet answered.
func (s *Session) Remaining() int {
	return max(0, len(s.Plan.All())-s.Cursor)
}

// Answer records reply against the current question and moves the cursor.
// It returns the next question, or false once the dialogue is finished.
func (s *Session) Answer(reply string, now time.Time) (questioning.Question, bool, error) {
	q, ok := s.Current()
	if !ok {
		return questioning.Question{}, false, fmt.Errorf("answer: %w", ErrFinished)
	}
	s.Replies = append(s.Replies, Reply{Question: q.Text, Answer: reply, At: now.UTC()})
	s.Cursor++
	next, ok := s.Current()
	return next, ok, nil
}

// ErrFinished is returned when answering a dialogue with no questions left.
var ErrFinished = errors.New("guided: all questions answered")

// Store keeps live dialogues. Implementations expire entries after their
// TTL, so Get on a stale dialogue returns ErrNotFound.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, sessionID string, step int) (*Session, error)
	Delete(ctx context.Context, sessionID string, step int) error
}

// Key is the storage key of a dialogue.
func Key(sessionID string, step int) string {
	return fmt.Sprintf("guided:%s:%d", sessionID, step)
}
