package session

import (
	"context"
	"strings"
	"time"

	"github.com/abhisek/stepwise/internal/activity"
	"github.com/abhisek/stepwise/internal/analysis"
	"github.com/abhisek/stepwise/internal/diagnosis"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/metrics"
	"github.com/abhisek/stepwise/internal/questioning"
	"github.com/abhisek/stepwise/internal/remediation"
	"github.com/abhisek/stepwise/internal/scaffold"
	"github.com/abhisek/stepwise/internal/store"
)

// SubmitInput is one response to the current step.
type SubmitInput struct {
	SessionID   string
	StudentID   string
	StepNumber  int
	Response    string
	RequestHelp bool
}

// SubmitResult is the outcome of a submission.
type SubmitResult struct {
	Session  *store.Session
	Step     *store.Step
	Analysis *analysis.Result

	// Intervention is set when the response took the help path.
	Intervention *store.Intervention
	// NextIntro is the guidance for the step the session advanced to.
	NextIntro *store.Intervention

	Mistakes    []*store.Mistake
	Remediation *remediation.Plan
	Questions   *questioning.Plan

	Advanced  bool
	Completed bool
}

// SubmitStepResponse analyses a response to the current step and applies
// the resulting transition. Analysis and text generation run against a
// snapshot; the writes run as one unit of work that re-checks the session
// and fails without changes if another submission got there first.
func (e *Engine) SubmitStepResponse(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	const op = "submit step response"
	if strings.TrimSpace(in.Response) == "" && !in.RequestHelp {
		return nil, newError(KindValidation, op, "response is empty")
	}

	sess, err := e.loadOwned(ctx, op, in.SessionID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if err := checkSubmittable(op, sess, in.StepNumber); err != nil {
		return nil, err
	}

	steps, err := e.sessions.ListSteps(ctx, sess.ID)
	if err != nil {
		return nil, storeError(op, err)
	}
	step := findStep(steps, in.StepNumber)
	if step == nil {
		return nil, newError(KindInternal, op, "step %d of session %s is missing", in.StepNumber, sess.ID)
	}
	tmpl := e.loadTemplate(ctx, sess)

	res := e.analyzer.Analyze(ctx, analysis.Input{
		Response:    in.Response,
		Expected:    step.ExpectedResponse,
		Prompt:      step.Prompt,
		Keywords:    step.Keywords,
		Subject:     tmpl.Subject,
		Difficulty:  tmpl.Level(),
		StepType:    step.Type,
		RequestHelp: in.RequestHelp,
	})

	out := &SubmitResult{Analysis: res}
	helpPath := res.HelpPath() || res.Quality == analysis.QualityInappropriate
	passing := !helpPath && res.Quality.Passing()

	var primary *diagnosis.Classification
	if len(res.Mistakes) > 0 {
		primary = res.Mistakes[0]
		out.Remediation = remediation.Build(primary, remediation.Context{
			Subject:       tmpl.Subject,
			StepTitle:     step.Title,
			StepNumber:    step.Number,
			TotalSteps:    sess.TotalSteps,
			MistakesSoFar: sess.MistakesMade,
		})
	}

	sc := scaffoldContext(sess, tmpl, step, in.Response)
	var iv *scaffold.Intervention
	if helpPath {
		if primary != nil && res.Quality != analysis.QualityInappropriate {
			out.Questions = e.questions.Generate(ctx, primary, questioning.Context{
				Prompt:     step.Prompt,
				Response:   in.Response,
				Subject:    tmpl.Subject,
				StepNumber: step.Number,
			})
		}
		iv = e.dispatcher.Dispatch(ctx, res, out.Questions, sc)
	}

	lastStep := step.Number >= sess.TotalSteps
	var nextIntro *scaffold.Intervention
	if passing && !lastStep {
		next := findStep(steps, step.Number+1)
		nextIntro = e.dispatcher.IntroduceStep(ctx, scaffoldContext(sess, tmpl, next, ""))
	}

	now := e.now().UTC()
	err = e.sessions.WithinSession(context.WithoutCancel(ctx), sess.ID, func(ctx context.Context, tx store.SessionTx) error {
		cur := tx.Session()
		if err := checkSubmittable(op, cur, in.StepNumber); err != nil {
			return err
		}
		txSteps, err := tx.Steps(ctx)
		if err != nil {
			return err
		}
		st := findStep(txSteps, in.StepNumber)
		if st == nil {
			return newError(KindInternal, op, "step %d of session %s is missing", in.StepNumber, cur.ID)
		}

		response := in.Response
		st.StudentResponse = &response
		st.Attempts++
		st.Quality = string(res.Quality)
		st.Accuracy = res.Accuracy
		st.Understanding = string(res.Understanding)
		st.Feedback = res.Feedback
		st.Misconceptions = mergeUnique(st.Misconceptions, res.Misconceptions)

		cur.EmotionalState = emotionFor(res.Understanding)
		cur.LastActivityAt = now

		if passing {
			st.Completed = true
			st.CompletedAt = &now
			cur.StepsCompleted++
			if err := tx.MarkMistakesCorrected(ctx, st.Number); err != nil {
				return err
			}
		}
		if err := tx.UpdateStep(ctx, st); err != nil {
			return err
		}

		for _, c := range res.Mistakes {
			m := mistakeRecord(c, st.Number, now)
			if err := tx.AppendMistake(ctx, m); err != nil {
				return err
			}
			out.Mistakes = append(out.Mistakes, m)
		}
		cur.MistakesMade += len(res.Mistakes)

		if iv != nil {
			rec := interventionRecord(iv, st.Number, now)
			if err := tx.AppendIntervention(ctx, rec); err != nil {
				return err
			}
			if scaffold.CountsAsHint(iv.Type) {
				cur.HintsRequested++
			}
			out.Intervention = rec
		}

		if passing {
			if lastStep {
				cur.Status = store.StatusCompleted
				cur.CurrentStep = cur.TotalSteps + 1
				cur.Accuracy = meanAccuracy(txSteps)
				cur.CompletedAt = &now
				cur.CompletionSecs = int(now.Sub(cur.StartedAt) / time.Second)
				out.Completed = true
			} else {
				cur.CurrentStep++
				rec := interventionRecord(nextIntro, cur.CurrentStep, now)
				if err := tx.AppendIntervention(ctx, rec); err != nil {
					return err
				}
				out.NextIntro = rec
				out.Advanced = true
			}
		}

		if err := tx.UpdateSession(ctx, cur); err != nil {
			return err
		}
		out.Session = cur
		out.Step = st
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	e.afterSubmit(ctx, out, iv, step.Number)
	return out, nil
}

// checkSubmittable enforces the active status and the no-skip rule.
func checkSubmittable(op string, sess *store.Session, stepNumber int) error {
	if sess.Status != store.StatusActive {
		return newError(KindInvalidState, op, "session is %s", sess.Status)
	}
	if stepNumber != sess.CurrentStep {
		return newError(KindInvalidStep, op, "step %d submitted but the current step is %d", stepNumber, sess.CurrentStep)
	}
	return nil
}

// afterSubmit runs the side effects that must not fail a committed
// submission: guided-questioning state, metrics and activity.
func (e *Engine) afterSubmit(ctx context.Context, out *SubmitResult, iv *scaffold.Intervention, stepNumber int) {
	sess := out.Session
	res := out.Analysis

	switch {
	case out.Step.Completed:
		if err := e.guided.Delete(ctx, sess.ID, stepNumber); err != nil {
			e.logger.Warn("failed to clear guided questioning", "session_id", sess.ID, "step", stepNumber, "error", err)
		}
	case iv != nil && iv.Type == scaffold.TypeGuidedQuestioning && out.Questions != nil:
		g := guided.NewSession(sess.ID, stepNumber, out.Questions, e.now())
		if err := e.guided.Put(ctx, g); err != nil {
			e.logger.Warn("failed to store guided questioning", "session_id", sess.ID, "step", stepNumber, "error", err)
		}
	}

	e.metrics.ObserveSubmission(string(res.Quality))
	e.log(ctx, activity.KindResponseSubmitted, sess, map[string]any{
		"step":          stepNumber,
		"quality":       string(res.Quality),
		"accuracy":      res.Accuracy,
		"understanding": string(res.Understanding),
		"help":          res.HelpRequested,
	})

	for _, m := range out.Mistakes {
		e.metrics.ObserveMistake(m.PrimaryType, m.Severity)
		e.log(ctx, activity.KindMistakeRecorded, sess, map[string]any{
			"step": stepNumber, "type": m.PrimaryType, "severity": m.Severity,
		})
	}
	for _, rec := range []*store.Intervention{out.Intervention, out.NextIntro} {
		if rec == nil {
			continue
		}
		e.metrics.ObserveIntervention(rec.Type, rec.TriggerReason)
		e.log(ctx, activity.KindIntervention, sess, map[string]any{
			"step": rec.StepNumber, "type": rec.Type, "trigger": rec.TriggerReason,
		})
	}

	if out.Step.Completed {
		e.log(ctx, activity.KindStepCompleted, sess, map[string]any{"step": stepNumber})
	}
	if out.Completed {
		e.metrics.ObserveSession(metrics.SessionCompleted)
		e.log(ctx, activity.KindSessionCompleted, sess, map[string]any{
			"accuracy":        sess.Accuracy,
			"completion_secs": sess.CompletionSecs,
		})
		e.logger.Info("session completed", "session_id", sess.ID, "accuracy", sess.Accuracy, "completion_secs", sess.CompletionSecs)
	}
}

func mistakeRecord(c *diagnosis.Classification, step int, at time.Time) *store.Mistake {
	return &store.Mistake{
		StepNumber:     step,
		PrimaryType:    string(c.PrimaryType),
		Severity:       string(c.Severity),
		Confidence:     c.Confidence,
		RootCauses:     c.RootCauses,
		Indicators:     c.Indicators,
		Misconceptions: c.Misconceptions,
		CreatedAt:      at,
	}
}

func mergeUnique(have, add []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, s := range have {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		have = append(have, s)
	}
	return have
}
