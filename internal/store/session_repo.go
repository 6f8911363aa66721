package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type sessionRepo struct {
	drv   dialect.Driver
	locks *keyedMutex
}

func (r *sessionRepo) CreateSession(ctx context.Context, sess *Session, steps []*Step, intro *Intervention) error {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := createSession(ctx, tx, sess, steps, intro); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func createSession(ctx context.Context, eq dialect.ExecQuerier, sess *Session, steps []*Step, intro *Intervention) error {
	if sess.Version == 0 {
		sess.Version = 1
	}
	_, err := execB(ctx, eq, sqlite().Insert(SessionsTable.Name).
		Columns(sessionColumns...).
		Values(
			sess.ID, sess.StudentID, sess.TemplateID, sess.CurrentStep, sess.TotalSteps,
			string(sess.Status), sess.StepsCompleted, sess.HintsRequested, sess.MistakesMade,
			sess.Accuracy, sess.EmotionalState, sess.StartedAt.UTC(), sess.LastActivityAt.UTC(),
			nullTime(sess.CompletedAt), sess.CompletionSecs, sess.Version,
		))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, st := range steps {
		st.SessionID = sess.ID
		res, err := execB(ctx, eq, sqlite().Insert(StepsTable.Name).
			Columns(
				"session_id", "step_number", "title", "prompt", "expected_response",
				"step_type", "keywords", "attempts", "completed", "misconceptions",
			).
			Values(
				st.SessionID, st.Number, st.Title, st.Prompt, st.ExpectedResponse,
				st.Type, encodeList(st.Keywords), st.Attempts, st.Completed, encodeList(st.Misconceptions),
			))
		if err != nil {
			return fmt.Errorf("insert step %d: %w", st.Number, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			st.ID = int(id)
		}
	}

	if intro != nil {
		intro.SessionID = sess.ID
		if err := appendIntervention(ctx, eq, intro); err != nil {
			return err
		}
	}
	return nil
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*Session, error) {
	return getSession(ctx, r.drv, id)
}

func (r *sessionRepo) ListSteps(ctx context.Context, sessionID string) ([]*Step, error) {
	return listSteps(ctx, r.drv, sessionID)
}

func (r *sessionRepo) RecentInterventions(ctx context.Context, sessionID string, limit int) ([]*Intervention, error) {
	sel := sqlite().Select(interventionColumns...).
		From(entsql.Table(InterventionsTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}

	var out []*Intervention
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		iv := &Intervention{}
		if err := rows.Scan(
			&iv.ID, &iv.SessionID, &iv.StepNumber, &iv.Type, &iv.Content,
			&iv.TriggerReason, &iv.Style, &iv.Confidence, &iv.Strategy, &iv.CreatedAt,
		); err != nil {
			return err
		}
		out = append(out, iv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent interventions: %w", err)
	}
	return out, nil
}

func (r *sessionRepo) ListMistakes(ctx context.Context, sessionID string) ([]*Mistake, error) {
	sel := sqlite().Select(
		"id", "session_id", "step_number", "primary_type", "severity", "confidence",
		"root_causes", "indicators", "misconceptions", "corrected", "created_at",
	).
		From(entsql.Table(MistakesTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("id")

	var out []*Mistake
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			m                           Mistake
			causes, indicators, miscons string
			err                         error
		)
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.StepNumber, &m.PrimaryType, &m.Severity, &m.Confidence,
			&causes, &indicators, &miscons, &m.Corrected, &m.CreatedAt,
		); err != nil {
			return err
		}
		if m.RootCauses, err = decodeList(causes); err != nil {
			return err
		}
		if m.Indicators, err = decodeList(indicators); err != nil {
			return err
		}
		if m.Misconceptions, err = decodeList(miscons); err != nil {
			return err
		}
		out = append(out, &m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list mistakes: %w", err)
	}
	return out, nil
}

// WithinSession locks sessionID in-process, opens a transaction and loads
// the session row before handing control to fn.
func (r *sessionRepo) WithinSession(ctx context.Context, sessionID string, fn func(ctx context.Context, tx SessionTx) error) (err error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	sess, err := getSession(ctx, tx, sessionID)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := fn(ctx, &sessionTx{eq: tx, sess: sess}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type sessionTx struct {
	eq   dialect.ExecQuerier
	sess *Session
}

func (t *sessionTx) Session() *Session {
	cp := *t.sess
	return &cp
}

func (t *sessionTx) Steps(ctx context.Context) ([]*Step, error) {
	return listSteps(ctx, t.eq, t.sess.ID)
}

// UpdateSession writes every mutable column when the stored version still
// matches sess.Version, then bumps the version on both sides.
func (t *sessionTx) UpdateSession(ctx context.Context, sess *Session) error {
	upd := sqlite().Update(SessionsTable.Name).
		Set("current_step", sess.CurrentStep).
		Set("status", string(sess.Status)).
		Set("steps_completed", sess.StepsCompleted).
		Set("hints_requested", sess.HintsRequested).
		Set("mistakes_made", sess.MistakesMade).
		Set("accuracy", sess.Accuracy).
		Set("emotional_state", sess.EmotionalState).
		Set("last_activity_at", sess.LastActivityAt.UTC()).
		Set("completion_secs", sess.CompletionSecs).
		Add("version", 1).
		Where(entsql.And(
			entsql.EQ("id", sess.ID),
			entsql.EQ("version", sess.Version),
		))
	if sess.CompletedAt != nil {
		upd = upd.Set("completed_at", sess.CompletedAt.UTC())
	} else {
		upd = upd.SetNull("completed_at")
	}

	res, err := execB(ctx, t.eq, upd)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	sess.Version++
	*t.sess = *sess
	return nil
}

func (t *sessionTx) UpdateStep(ctx context.Context, st *Step) error {
	upd := sqlite().Update(StepsTable.Name).
		Set("attempts", st.Attempts).
		Set("completed", st.Completed).
		Set("quality", st.Quality).
		Set("accuracy", st.Accuracy).
		Set("understanding", st.Understanding).
		Set("feedback", st.Feedback).
		Set("misconceptions", encodeList(st.Misconceptions)).
		Where(entsql.And(
			entsql.EQ("session_id", t.sess.ID),
			entsql.EQ("step_number", st.Number),
		))
	if st.StudentResponse != nil {
		upd = upd.Set("student_response", *st.StudentResponse)
	}
	if st.CompletedAt != nil {
		upd = upd.Set("completed_at", st.CompletedAt.UTC())
	}

	res, err := execB(ctx, t.eq, upd)
	if err != nil {
		return fmt.Errorf("update step %d: %w", st.Number, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update step %d: %w", st.Number, ErrNotFound)
	}
	return nil
}

func (t *sessionTx) AppendIntervention(ctx context.Context, iv *Intervention) error {
	iv.SessionID = t.sess.ID
	return appendIntervention(ctx, t.eq, iv)
}

func (t *sessionTx) AppendMistake(ctx context.Context, m *Mistake) error {
	m.SessionID = t.sess.ID
	res, err := execB(ctx, t.eq, sqlite().Insert(MistakesTable.Name).
		Columns(
			"session_id", "step_number", "primary_type", "severity", "confidence",
			"root_causes", "indicators", "misconceptions", "corrected", "created_at",
		).
		Values(
			m.SessionID, m.StepNumber, m.PrimaryType, m.Severity, m.Confidence,
			encodeList(m.RootCauses), encodeList(m.Indicators), encodeList(m.Misconceptions),
			m.Corrected, m.CreatedAt.UTC(),
		))
	if err != nil {
		return fmt.Errorf("insert mistake: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = int(id)
	}
	return nil
}

func (t *sessionTx) MarkMistakesCorrected(ctx context.Context, stepNumber int) error {
	_, err := execB(ctx, t.eq, sqlite().Update(MistakesTable.Name).
		Set("corrected", true).
		Where(entsql.And(
			entsql.EQ("session_id", t.sess.ID),
			entsql.EQ("step_number", stepNumber),
		)))
	if err != nil {
		return fmt.Errorf("mark mistakes corrected: %w", err)
	}
	return nil
}

var sessionColumns = []string{
	"id", "student_id", "template_id", "current_step", "total_steps", "status",
	"steps_completed", "hints_requested", "mistakes_made", "accuracy", "emotional_state",
	"started_at", "last_activity_at", "completed_at", "completion_secs", "version",
}

var stepColumns = []string{
	"id", "session_id", "step_number", "title", "prompt", "expected_response", "step_type",
	"keywords", "student_response", "attempts", "completed", "quality", "accuracy",
	"understanding", "feedback", "misconceptions", "completed_at",
}

var interventionColumns = []string{
	"id", "session_id", "step_number", "type", "content", "trigger_reason",
	"style", "confidence", "strategy", "created_at",
}

func getSession(ctx context.Context, eq dialect.ExecQuerier, id string) (*Session, error) {
	sel := sqlite().Select(sessionColumns...).
		From(entsql.Table(SessionsTable.Name)).
		Where(entsql.EQ("id", id))

	var out *Session
	err := queryB(ctx, eq, sel, func(rows *entsql.Rows) error {
		var (
			s         Session
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(
			&s.ID, &s.StudentID, &s.TemplateID, &s.CurrentStep, &s.TotalSteps, &status,
			&s.StepsCompleted, &s.HintsRequested, &s.MistakesMade, &s.Accuracy, &s.EmotionalState,
			&s.StartedAt, &s.LastActivityAt, &completed, &s.CompletionSecs, &s.Version,
		); err != nil {
			return err
		}
		s.Status = SessionStatus(status)
		s.CompletedAt = timePtr(completed)
		out = &s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func listSteps(ctx context.Context, eq dialect.ExecQuerier, sessionID string) ([]*Step, error) {
	sel := sqlite().Select(stepColumns...).
		From(entsql.Table(StepsTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("step_number")

	var out []*Step
	err := queryB(ctx, eq, sel, func(rows *entsql.Rows) error {
		var (
			st                Step
			keywords, miscons string
			response          sql.NullString
			completedAt       sql.NullTime
			err               error
		)
		if err := rows.Scan(
			&st.ID, &st.SessionID, &st.Number, &st.Title, &st.Prompt, &st.ExpectedResponse, &st.Type,
			&keywords, &response, &st.Attempts, &st.Completed, &st.Quality, &st.Accuracy,
			&st.Understanding, &st.Feedback, &miscons, &completedAt,
		); err != nil {
			return err
		}
		if st.Keywords, err = decodeList(keywords); err != nil {
			return err
		}
		if st.Misconceptions, err = decodeList(miscons); err != nil {
			return err
		}
		st.StudentResponse = stringPtr(response)
		st.CompletedAt = timePtr(completedAt)
		out = append(out, &st)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return out, nil
}

func appendIntervention(ctx context.Context, eq dialect.ExecQuerier, iv *Intervention) error {
	res, err := execB(ctx, eq, sqlite().Insert(InterventionsTable.Name).
		Columns(interventionColumns[1:]...).
		Values(
			iv.SessionID, iv.StepNumber, iv.Type, iv.Content, iv.TriggerReason,
			iv.Style, iv.Confidence, iv.Strategy, iv.CreatedAt.UTC(),
		))
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		iv.ID = int(id)
	}
	return nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
