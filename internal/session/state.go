package session

import (
	"github.com/abhisek/stepwise/internal/analysis"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/store"
)

// RecentInterventionLimit is how many interventions GetSessionState returns.
const RecentInterventionLimit = 10

// Emotional-state tags derived from the latest response.
const (
	EmotionNeutral    = "neutral"
	EmotionConfident  = "confident"
	EmotionEngaged    = "engaged"
	EmotionStruggling = "struggling"
)

// emotionFor tags the session from how the student understood the step.
func emotionFor(u analysis.Understanding) string {
	switch u {
	case analysis.UnderstandingConfident:
		return EmotionConfident
	case analysis.UnderstandingPartial:
		return EmotionEngaged
	case analysis.UnderstandingConfused:
		return EmotionStruggling
	}
	return EmotionNeutral
}

// transitions lists the lifecycle moves allowed outside of submission.
var transitions = map[store.SessionStatus][]store.SessionStatus{
	store.StatusActive: {store.StatusPaused, store.StatusAbandoned},
	store.StatusPaused: {store.StatusActive, store.StatusAbandoned},
}

// CanTransition reports whether a session may move from one status to
// another through a lifecycle operation.
func CanTransition(from, to store.SessionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// State is everything a client needs to render a session.
type State struct {
	Session *store.Session
	Steps   []*store.Step
	// Interventions holds the most recent interventions, newest first.
	Interventions []*store.Intervention
	Mistakes      []*store.Mistake
	// Guided is the live guided-questioning dialogue of the current step.
	Guided  *guided.Session
	Summary Summary
}

// CurrentStep returns the step the session is waiting on, or nil once the
// session is past its last step.
func (s *State) CurrentStep() *store.Step {
	for _, st := range s.Steps {
		if st.Number == s.Session.CurrentStep {
			return st
		}
	}
	return nil
}

// meanAccuracy averages per-step accuracy over every step.
func meanAccuracy(steps []*store.Step) float64 {
	if len(steps) == 0 {
		return 0
	}
	var sum float64
	for _, st := range steps {
		sum += st.Accuracy
	}
	return sum / float64(len(steps))
}

func findStep(steps []*store.Step, n int) *store.Step {
	for _, st := range steps {
		if st.Number == n {
			return st
		}
	}
	return nil
}
