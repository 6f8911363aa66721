package session

import (
	"time"

	"github.com/abhisek/stepwise/internal/store"
)

// Summary holds the headline numbers of a session.
type Summary struct {
	Duration       time.Duration
	StepsCompleted int
	TotalSteps     int
	// Progress is the completed fraction of steps, 0..1.
	Progress       float64
	Accuracy       float64
	Attempts       int
	HintsRequested int
	MistakesMade   int
	MistakesByType map[string]int
	Uncorrected    int
}

// BuildSummary creates a Summary from a session and its child rows. While
// the session is running, accuracy is the mean over completed steps.
func BuildSummary(sess *store.Session, steps []*store.Step, mistakes []*store.Mistake, now time.Time) Summary {
	sum := Summary{
		StepsCompleted: sess.StepsCompleted,
		TotalSteps:     sess.TotalSteps,
		HintsRequested: sess.HintsRequested,
		MistakesMade:   sess.MistakesMade,
		MistakesByType: make(map[string]int),
	}

	switch {
	case sess.CompletedAt != nil:
		sum.Duration = sess.CompletedAt.Sub(sess.StartedAt)
	case sess.Status == store.StatusActive:
		sum.Duration = now.Sub(sess.StartedAt)
	default:
		sum.Duration = sess.LastActivityAt.Sub(sess.StartedAt)
	}

	if sess.TotalSteps > 0 {
		sum.Progress = float64(sess.StepsCompleted) / float64(sess.TotalSteps)
	}

	if sess.Status == store.StatusCompleted {
		sum.Accuracy = sess.Accuracy
	} else {
		var total float64
		var n int
		for _, st := range steps {
			if st.Completed {
				total += st.Accuracy
				n++
			}
		}
		if n > 0 {
			sum.Accuracy = total / float64(n)
		}
	}

	for _, st := range steps {
		sum.Attempts += st.Attempts
	}
	for _, m := range mistakes {
		sum.MistakesByType[m.PrimaryType]++
		if !m.Corrected {
			sum.Uncorrected++
		}
	}
	return sum
}
