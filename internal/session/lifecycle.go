package session

import (
	"context"
	"errors"
	"strings"

	"github.com/abhisek/stepwise/internal/activity"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/metrics"
	"github.com/abhisek/stepwise/internal/questioning"
	"github.com/abhisek/stepwise/internal/scaffold"
	"github.com/abhisek/stepwise/internal/store"
)

// HintResult is the outcome of RequestHint.
type HintResult struct {
	Session      *store.Session
	Intervention *store.Intervention
	Level        int
}

// RequestHint logs an on-demand hint for the current step. It is legal at
// any point while the session is active and always counts as a hint.
func (e *Engine) RequestHint(ctx context.Context, sessionID, studentID string, level int) (*HintResult, error) {
	const op = "request hint"
	if level < scaffold.MinHintLevel || level > scaffold.MaxHintLevel {
		return nil, newError(KindValidation, op, "hint level must be between %d and %d, got %d", scaffold.MinHintLevel, scaffold.MaxHintLevel, level)
	}
	sess, err := e.loadOwned(ctx, op, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status != store.StatusActive {
		return nil, newError(KindInvalidState, op, "session is %s", sess.Status)
	}

	steps, err := e.sessions.ListSteps(ctx, sess.ID)
	if err != nil {
		return nil, storeError(op, err)
	}
	tmpl := e.loadTemplate(ctx, sess)
	iv := e.dispatcher.Hint(ctx, scaffoldContext(sess, tmpl, findStep(steps, sess.CurrentStep), ""), level)

	out := &HintResult{Level: level}
	now := e.now().UTC()
	err = e.sessions.WithinSession(context.WithoutCancel(ctx), sess.ID, func(ctx context.Context, tx store.SessionTx) error {
		cur := tx.Session()
		if cur.Status != store.StatusActive {
			return newError(KindInvalidState, op, "session is %s", cur.Status)
		}
		rec := interventionRecord(iv, cur.CurrentStep, now)
		if err := tx.AppendIntervention(ctx, rec); err != nil {
			return err
		}
		cur.HintsRequested++
		cur.LastActivityAt = now
		if err := tx.UpdateSession(ctx, cur); err != nil {
			return err
		}
		out.Session, out.Intervention = cur, rec
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	e.metrics.ObserveHint()
	e.metrics.ObserveIntervention(out.Intervention.Type, out.Intervention.TriggerReason)
	e.log(ctx, activity.KindHintRequested, out.Session, map[string]any{"step": out.Intervention.StepNumber, "level": level})
	return out, nil
}

// GuidedAnswer is the outcome of AnswerGuidedQuestion.
type GuidedAnswer struct {
	// Next is the following question, nil once the dialogue is done.
	Next      *questioning.Question
	Phase     guided.Phase
	Remaining int
	Done      bool
}

// AnswerGuidedQuestion records a reply to the live guided-questioning
// dialogue of the current step and returns the next question.
func (e *Engine) AnswerGuidedQuestion(ctx context.Context, sessionID, studentID, reply string) (*GuidedAnswer, error) {
	const op = "answer guided question"
	if strings.TrimSpace(reply) == "" {
		return nil, newError(KindValidation, op, "reply is empty")
	}
	sess, err := e.loadOwned(ctx, op, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status != store.StatusActive {
		return nil, newError(KindInvalidState, op, "session is %s", sess.Status)
	}

	// Replies to the same dialogue are serialized under the session lock so
	// the cursor advances once per reply.
	var g *guided.Session
	var next questioning.Question
	var more bool
	now := e.now()
	err = e.sessions.WithinSession(context.WithoutCancel(ctx), sess.ID, func(ctx context.Context, tx store.SessionTx) error {
		cur := tx.Session()
		if cur.Status != store.StatusActive {
			return newError(KindInvalidState, op, "session is %s", cur.Status)
		}
		var err error
		g, err = e.guided.Get(ctx, cur.ID, cur.CurrentStep)
		if errors.Is(err, guided.ErrNotFound) {
			return newError(KindNotFound, op, "no guided questions are open for step %d", cur.CurrentStep)
		}
		if err != nil {
			return &Error{Kind: KindDependency, Op: op, Message: "load guided questioning", Err: err}
		}

		next, more, err = g.Answer(reply, now)
		if err != nil {
			return newError(KindInvalidState, op, "every guided question has been answered")
		}
		cur.LastActivityAt = now.UTC()
		if err := tx.UpdateSession(ctx, cur); err != nil {
			return err
		}
		if more {
			err = e.guided.Put(ctx, g)
		} else {
			err = e.guided.Delete(ctx, cur.ID, cur.CurrentStep)
		}
		if err != nil {
			return &Error{Kind: KindDependency, Op: op, Message: "save guided questioning", Err: err}
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	out := &GuidedAnswer{Phase: g.Phase(), Remaining: g.Remaining(), Done: !more}
	if more {
		out.Next = &next
	}
	e.log(ctx, activity.KindGuidedAnswered, sess, map[string]any{
		"step": sess.CurrentStep, "answered": len(g.Replies), "done": out.Done,
	})
	return out, nil
}

// PauseSession moves an active session to paused.
func (e *Engine) PauseSession(ctx context.Context, sessionID, studentID string) (*store.Session, error) {
	return e.transition(ctx, "pause session", sessionID, studentID, store.StatusPaused)
}

// ResumeSession moves a paused session back to active.
func (e *Engine) ResumeSession(ctx context.Context, sessionID, studentID string) (*store.Session, error) {
	return e.transition(ctx, "resume session", sessionID, studentID, store.StatusActive)
}

// AbandonSession ends an active or paused session without completing it.
func (e *Engine) AbandonSession(ctx context.Context, sessionID, studentID string) (*store.Session, error) {
	return e.transition(ctx, "abandon session", sessionID, studentID, store.StatusAbandoned)
}

func (e *Engine) transition(ctx context.Context, op, sessionID, studentID string, to store.SessionStatus) (*store.Session, error) {
	sess, err := e.loadOwned(ctx, op, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sess.Status, to) {
		return nil, newError(KindInvalidState, op, "cannot move a %s session to %s", sess.Status, to)
	}

	var out *store.Session
	now := e.now().UTC()
	err = e.sessions.WithinSession(context.WithoutCancel(ctx), sess.ID, func(ctx context.Context, tx store.SessionTx) error {
		cur := tx.Session()
		if !CanTransition(cur.Status, to) {
			return newError(KindInvalidState, op, "cannot move a %s session to %s", cur.Status, to)
		}
		cur.Status = to
		cur.LastActivityAt = now
		if err := tx.UpdateSession(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	var kind activity.Kind
	var outcome string
	switch to {
	case store.StatusPaused:
		kind, outcome = activity.KindSessionPaused, metrics.SessionPaused
	case store.StatusActive:
		kind, outcome = activity.KindSessionResumed, metrics.SessionResumed
	case store.StatusAbandoned:
		kind, outcome = activity.KindSessionAbandoned, metrics.SessionAbandoned
		if err := e.guided.Delete(ctx, out.ID, out.CurrentStep); err != nil {
			e.logger.Warn("failed to clear guided questioning", "session_id", out.ID, "error", err)
		}
	}
	e.metrics.ObserveSession(outcome)
	e.log(ctx, kind, out, map[string]any{"from": string(sess.Status)})
	e.logger.Info("session status changed", "session_id", out.ID, "from", sess.Status, "to", to)
	return out, nil
}
