// Package session is the problem-solving session engine. It owns the
// session and step lifecycle and, for every submitted response, runs the
// analyzer, guided questioning, remediation and scaffolding pipeline before
// persisting the outcome as one unit of work.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/stepwise/internal/activity"
	"github.com/abhisek/stepwise/internal/analysis"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/metrics"
	"github.com/abhisek/stepwise/internal/problem"
	"github.com/abhisek/stepwise/internal/questioning"
	"github.com/abhisek/stepwise/internal/scaffold"
	"github.com/abhisek/stepwise/internal/store"
)

// Deps are the collaborators of an Engine. Templates and Sessions are
// required; everything else has an offline default.
type Deps struct {
	Templates  store.TemplateRepo
	Sessions   store.SessionRepo
	Analyzer   *analysis.Analyzer
	Questions  *questioning.Generator
	Dispatcher *scaffold.Dispatcher
	Guided     guided.Store
	Activity   activity.Logger
	Metrics    *metrics.Engine
	Logger     *slog.Logger
}

// Engine runs problem sessions.
type Engine struct {
	templates  store.TemplateRepo
	sessions   store.SessionRepo
	analyzer   *analysis.Analyzer
	questions  *questioning.Generator
	dispatcher *scaffold.Dispatcher
	guided     guided.Store
	activity   activity.Logger
	metrics    *metrics.Engine
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates an Engine.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		templates:  d.Templates,
		sessions:   d.Sessions,
		analyzer:   d.Analyzer,
		questions:  d.Questions,
		dispatcher: d.Dispatcher,
		guided:     d.Guided,
		activity:   d.Activity,
		metrics:    d.Metrics,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if e.analyzer == nil {
		e.analyzer = analysis.New(nil, nil, nil, logger)
	}
	if e.questions == nil {
		e.questions = questioning.NewGenerator(nil, logger)
	}
	if e.dispatcher == nil {
		e.dispatcher = scaffold.New(nil, logger)
	}
	if e.guided == nil {
		e.guided = guided.NewMemoryStore(guided.DefaultTTL)
	}
	if e.activity == nil {
		e.activity = activity.Nop{}
	}
	return e
}

// StartSession creates a session for studentID on an active template and
// logs the introductory guidance for step 1.
func (e *Engine) StartSession(ctx context.Context, studentID, templateID string) (*State, error) {
	const op = "start session"
	if strings.TrimSpace(studentID) == "" {
		return nil, newError(KindValidation, op, "student id is required")
	}
	if strings.TrimSpace(templateID) == "" {
		return nil, newError(KindValidation, op, "template id is required")
	}

	tmpl, err := e.templates.GetTemplate(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, op, "template %q not found", templateID)
	}
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, Message: "load template", Err: err}
	}
	if !tmpl.Active {
		return nil, newError(KindNotFound, op, "template %q is not active", templateID)
	}
	if len(tmpl.Steps) == 0 {
		return nil, newError(KindValidation, op, "template %q has no steps", templateID)
	}

	now := e.now().UTC()
	sess := &store.Session{
		ID:             e.newID(),
		StudentID:      studentID,
		TemplateID:     tmpl.ID,
		CurrentStep:    1,
		TotalSteps:     len(tmpl.Steps),
		Status:         store.StatusActive,
		EmotionalState: EmotionNeutral,
		StartedAt:      now,
		LastActivityAt: now,
	}
	steps := make([]*store.Step, len(tmpl.Steps))
	for i, st := range tmpl.Steps {
		steps[i] = &store.Step{
			Number:           i + 1,
			Title:            st.Title,
			Prompt:           st.Prompt,
			ExpectedResponse: st.ExpectedResponse,
			Type:             string(st.Type),
			Keywords:         st.Keywords,
		}
	}

	iv := e.dispatcher.IntroduceStep(ctx, scaffoldContext(sess, tmpl, steps[0], ""))
	intro := interventionRecord(iv, 1, now)

	if err := e.sessions.CreateSession(context.WithoutCancel(ctx), sess, steps, intro); err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, Message: "create session", Err: err}
	}

	e.logger.Info("session started", "session_id", sess.ID, "student_id", studentID, "template_id", tmpl.ID, "steps", sess.TotalSteps)
	e.metrics.ObserveSession(metrics.SessionStarted)
	e.metrics.ObserveIntervention(string(iv.Type), string(iv.Trigger))
	e.log(ctx, activity.KindSessionStarted, sess, map[string]any{"template_id": tmpl.ID, "total_steps": sess.TotalSteps})

	return &State{
		Session:       sess,
		Steps:         steps,
		Interventions: []*store.Intervention{intro},
		Summary:       BuildSummary(sess, steps, nil, now),
	}, nil
}

// GetSessionState returns the session, its steps, recent interventions,
// mistakes and the live guided-questioning dialogue if there is one.
func (e *Engine) GetSessionState(ctx context.Context, sessionID, studentID string) (*State, error) {
	const op = "get session state"
	sess, err := e.loadOwned(ctx, op, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	steps, err := e.sessions.ListSteps(ctx, sess.ID)
	if err != nil {
		return nil, storeError(op, err)
	}
	ivs, err := e.sessions.RecentInterventions(ctx, sess.ID, RecentInterventionLimit)
	if err != nil {
		return nil, storeError(op, err)
	}
	mistakes, err := e.sessions.ListMistakes(ctx, sess.ID)
	if err != nil {
		return nil, storeError(op, err)
	}

	st := &State{
		Session:       sess,
		Steps:         steps,
		Interventions: ivs,
		Mistakes:      mistakes,
		Summary:       BuildSummary(sess, steps, mistakes, e.now().UTC()),
	}
	if sess.Status == store.StatusActive || sess.Status == store.StatusPaused {
		g, err := e.guided.Get(ctx, sess.ID, sess.CurrentStep)
		switch {
		case err == nil:
			st.Guided = g
		case !errors.Is(err, guided.ErrNotFound):
			e.logger.Warn("failed to load guided questioning", "session_id", sess.ID, "error", err)
		}
	}
	return st, nil
}

// loadOwned reads a session and checks that studentID owns it.
func (e *Engine) loadOwned(ctx context.Context, op, sessionID, studentID string) (*store.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, newError(KindValidation, op, "session id is required")
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, newError(KindValidation, op, "student id is required")
	}
	sess, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if sess.StudentID != studentID {
		return nil, newError(KindAccessDenied, op, "session %s does not belong to student %s", sessionID, studentID)
	}
	return sess, nil
}

// loadTemplate returns the session's template. A missing template only
// loses prompt context, so it is logged rather than returned.
func (e *Engine) loadTemplate(ctx context.Context, sess *store.Session) *problem.Template {
	tmpl, err := e.templates.GetTemplate(ctx, sess.TemplateID)
	if err != nil {
		e.logger.Warn("failed to load template for session", "session_id", sess.ID, "template_id", sess.TemplateID, "error", err)
		return &problem.Template{ID: sess.TemplateID}
	}
	return tmpl
}

func (e *Engine) log(ctx context.Context, kind activity.Kind, sess *store.Session, detail map[string]any) {
	e.activity.Log(ctx, activity.Event{
		Kind:      kind,
		SessionID: sess.ID,
		StudentID: sess.StudentID,
		Detail:    detail,
		At:        e.now().UTC(),
	})
}

func scaffoldContext(sess *store.Session, tmpl *problem.Template, step *store.Step, response string) scaffold.SessionContext {
	sc := scaffold.SessionContext{
		SessionID:      sess.ID,
		Subject:        tmpl.Subject,
		TemplateTitle:  tmpl.Title,
		TotalSteps:     sess.TotalSteps,
		Response:       response,
		HintsRequested: sess.HintsRequested,
		MistakesMade:   sess.MistakesMade,
	}
	if step != nil {
		sc.StepNumber = step.Number
		sc.StepTitle = step.Title
		sc.Prompt = step.Prompt
		sc.Keywords = step.Keywords
	}
	return sc
}

func interventionRecord(iv *scaffold.Intervention, step int, at time.Time) *store.Intervention {
	return &store.Intervention{
		StepNumber:    step,
		Type:          string(iv.Type),
		Content:       iv.Content,
		TriggerReason: string(iv.Trigger),
		Style:         string(iv.Style),
		Confidence:    iv.Confidence,
		Strategy:      string(iv.Strategy),
		CreatedAt:     at,
	}
}
