package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/stepwise/internal/questioning"
	"github.com/abhisek/stepwise/internal/remediation"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/ui/theme"
)

func field(label string, value any) string {
	return theme.Label.Render(label) + fmt.Sprint(value)
}

func renderSessionHeader(w io.Writer, sess *store.Session) {
	lines := []string{
		theme.Title.Render("Session " + sess.ID),
		field("Status", theme.Status(string(sess.Status)).Render(string(sess.Status))),
		field("Progress", fmt.Sprintf("%s %d/%d", theme.ProgressBar(sess.StepsCompleted, sess.TotalSteps, 20), sess.StepsCompleted, sess.TotalSteps)),
		field("Hints", sess.HintsRequested),
		field("Mistakes", sess.MistakesMade),
		field("Mood", sess.EmotionalState),
	}
	if sess.Status == store.StatusCompleted {
		lines = append(lines,
			field("Accuracy", fmt.Sprintf("%.0f%%", sess.Accuracy*100)),
			field("Time", fmt.Sprintf("%ds", sess.CompletionSecs)))
	}
	lipgloss.Fprintln(w, theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func renderState(w io.Writer, st *session.State) {
	renderSessionHeader(w, st.Session)

	for _, step := range st.Steps {
		marker := theme.Subtitle.Render("·")
		switch {
		case step.Completed:
			marker = theme.Correct.Render("✓")
		case step.Number == st.Session.CurrentStep:
			marker = theme.Question.Render("▶")
		}
		line := fmt.Sprintf("%s %d. %s", marker, step.Number, step.Title)
		if step.Attempts > 0 {
			line += theme.Subtitle.Render(fmt.Sprintf("  (%d attempts, %s)", step.Attempts, step.Quality))
		}
		lipgloss.Fprintln(w, line)
	}

	if cur := st.CurrentStep(); cur != nil && st.Session.Status != store.StatusCompleted {
		lipgloss.Fprintln(w)
		lipgloss.Fprintln(w, theme.Body.Render(cur.Prompt))
	}
	if len(st.Interventions) > 0 {
		renderIntervention(w, st.Interventions[0])
	}
	if st.Guided != nil {
		if q, ok := st.Guided.Current(); ok {
			lipgloss.Fprintln(w, theme.Question.Render("? "+q.Text))
			lipgloss.Fprintln(w, theme.Hint.Render(fmt.Sprintf("%d guided questions left; reply with `stepwise answer %s <reply>`", st.Guided.Remaining(), st.Session.ID)))
		}
	}

	sum := st.Summary
	lipgloss.Fprintln(w, theme.Subtitle.Render(fmt.Sprintf("%s elapsed, %d attempts, accuracy %.0f%%, %d uncorrected mistakes",
		sum.Duration.Round(time.Second), sum.Attempts, sum.Accuracy*100, sum.Uncorrected)))
}

func renderIntervention(w io.Writer, iv *store.Intervention) {
	if iv == nil {
		return
	}
	title := theme.Subtitle.Render(fmt.Sprintf("%s · %s", strings.ReplaceAll(iv.Type, "_", " "), strings.ReplaceAll(iv.TriggerReason, "_", " ")))
	lipgloss.Fprintln(w, theme.Tutor.Render(lipgloss.JoinVertical(lipgloss.Left, title, iv.Content)))
}

func renderSubmit(w io.Writer, out *session.SubmitResult) {
	res := out.Analysis
	quality := theme.Quality(string(res.Quality)).Render(strings.ReplaceAll(string(res.Quality), "_", " "))
	lipgloss.Fprintln(w, fmt.Sprintf("%s  %s", quality, theme.Subtitle.Render(fmt.Sprintf("accuracy %.0f%%, %s", res.Accuracy*100, res.Understanding))))
	if res.Feedback != "" {
		lipgloss.Fprintln(w, theme.Body.Render(res.Feedback))
	}

	renderIntervention(w, out.Intervention)
	if out.Questions != nil {
		renderQuestions(w, out.Questions)
	}
	if out.Remediation != nil {
		renderRemediation(w, out.Remediation)
	}

	switch {
	case out.Completed:
		lipgloss.Fprintln(w, theme.Correct.Render("Problem complete!"))
		renderSessionHeader(w, out.Session)
	case out.Advanced:
		lipgloss.Fprintln(w, theme.Correct.Render(fmt.Sprintf("On to step %d of %d.", out.Session.CurrentStep, out.Session.TotalSteps)))
		renderIntervention(w, out.NextIntro)
	}
}

func renderQuestions(w io.Writer, p *questioning.Plan) {
	if len(p.Immediate) == 0 {
		return
	}
	lipgloss.Fprintln(w, theme.Subtitle.Render("Think about:"))
	for _, q := range p.Immediate {
		lipgloss.Fprintln(w, theme.Question.Render("  ? "+q.Text))
	}
}

func renderRemediation(w io.Writer, p *remediation.Plan) {
	if len(p.Immediate.Actions) == 0 {
		return
	}
	lipgloss.Fprintln(w, theme.Subtitle.Render(fmt.Sprintf("Next moves (%s, %s):", p.PrimaryType, p.Severity)))
	for _, a := range p.Immediate.Actions {
		lipgloss.Fprintln(w, "  • "+a)
	}
}
