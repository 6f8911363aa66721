package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/stepwise/internal/problem"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenFile(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTemplate() *problem.Template {
	return &problem.Template{
		ID:     "fractions-1",
		Title:  "Adding fractions",
		Active: true,
		Steps: []problem.Step{
			{Title: "Common denominator", Prompt: "Find a common denominator for 1/3 and 1/4.", ExpectedResponse: "12", Type: problem.StepCalculation},
			{Title: "Rewrite", Prompt: "Rewrite both fractions over 12.", Type: problem.StepFreeResponse},
		},
	}
}

func seedSession(t *testing.T, s *Store, id string) *Session {
	t.Helper()
	ctx := context.Background()
	tmpl := testTemplate()
	if err := s.TemplateRepo().SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("save template: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	sess := &Session{
		ID:             id,
		StudentID:      "student-1",
		TemplateID:     tmpl.ID,
		CurrentStep:    1,
		TotalSteps:     len(tmpl.Steps),
		Status:         StatusActive,
		EmotionalState: "neutral",
		StartedAt:      now,
		LastActivityAt: now,
	}
	var steps []*Step
	for i, st := range tmpl.Steps {
		steps = append(steps, &Step{
			Number:           i + 1,
			Title:            st.Title,
			Prompt:           st.Prompt,
			ExpectedResponse: st.ExpectedResponse,
			Type:             string(st.Type),
			Keywords:         st.Keywords,
		})
	}
	intro := &Intervention{StepNumber: 1, Type: "guidance", Content: "Let's begin.", TriggerReason: "session_start", CreatedAt: now}
	if err := s.SessionRepo().CreateSession(ctx, sess, steps, intro); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, tbl := range Tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tbl.Name,
		).Scan(&name)
		if err != nil {
			t.Fatalf("query sqlite_master for %s: %v", tbl.Name, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestTemplateSaveGetList(t *testing.T) {
	s := openTestStore(t)
	repo := s.TemplateRepo()
	ctx := context.Background()

	if _, err := repo.GetTemplate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}

	tmpl := testTemplate()
	if err := repo.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("save: %v", err)
	}
	tmpl.Title = "Adding fractions (revised)"
	if err := repo.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := repo.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != tmpl.Title {
		t.Errorf("title = %q, want %q", got.Title, tmpl.Title)
	}
	if len(got.Steps) != 2 || got.Steps[0].ExpectedResponse != "12" {
		t.Errorf("steps = %+v", got.Steps)
	}

	all, err := repo.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(templates) = %d, want 1", len(all))
	}
}

func TestSaveTemplateRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	repo := s.TemplateRepo()
	ctx := context.Background()

	err := repo.SaveTemplate(ctx, &problem.Template{ID: "empty-0", Title: "Empty", Active: true})
	var verr *problem.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("save empty template = %v, want *problem.ValidationError", err)
	}
	if verr.Field != "steps" {
		t.Errorf("field = %q, want steps", verr.Field)
	}
	if _, err := repo.GetTemplate(ctx, "empty-0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get rejected template = %v, want ErrNotFound", err)
	}
}

func TestCreateSessionWritesStepsAndIntro(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	seedSession(t, s, "sess-1")

	got, err := repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != StatusActive || got.CurrentStep != 1 || got.TotalSteps != 2 || got.Version != 1 {
		t.Errorf("session = %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("expected nil completed_at")
	}

	steps, err := repo.ListSteps(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}
	if steps[0].Number != 1 || steps[1].Number != 2 {
		t.Errorf("step numbers = %d, %d", steps[0].Number, steps[1].Number)
	}
	if steps[0].StudentResponse != nil {
		t.Error("expected nil student response on a fresh step")
	}

	ivs, err := repo.RecentInterventions(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("recent interventions: %v", err)
	}
	if len(ivs) != 1 || ivs[0].Type != "guidance" {
		t.Errorf("interventions = %+v", ivs)
	}

	if _, err := repo.GetSession(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("get missing session = %v, want ErrNotFound", err)
	}
}

func TestWithinSessionCommits(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	seedSession(t, s, "sess-1")

	err := repo.WithinSession(ctx, "sess-1", func(ctx context.Context, tx SessionTx) error {
		sess := tx.Session()
		steps, err := tx.Steps(ctx)
		if err != nil {
			return err
		}
		step := steps[0]
		resp := "12"
		step.StudentResponse = &resp
		step.Attempts++
		step.Completed = true
		step.Quality = "excellent"
		now := time.Now().UTC()
		step.CompletedAt = &now
		if err := tx.UpdateStep(ctx, step); err != nil {
			return err
		}
		if err := tx.AppendMistake(ctx, &Mistake{StepNumber: 1, PrimaryType: "procedural", Severity: "low", RootCauses: []string{"skipped step"}, CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.MarkMistakesCorrected(ctx, 1); err != nil {
			return err
		}
		sess.CurrentStep = 2
		sess.StepsCompleted = 1
		sess.MistakesMade = 1
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		t.Fatalf("within session: %v", err)
	}

	got, _ := repo.GetSession(ctx, "sess-1")
	if got.CurrentStep != 2 || got.StepsCompleted != 1 || got.Version != 2 {
		t.Errorf("session after commit = %+v", got)
	}
	steps, _ := repo.ListSteps(ctx, "sess-1")
	if steps[0].StudentResponse == nil || *steps[0].StudentResponse != "12" || !steps[0].Completed {
		t.Errorf("step after commit = %+v", steps[0])
	}
	mistakes, err := repo.ListMistakes(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list mistakes: %v", err)
	}
	if len(mistakes) != 1 || !mistakes[0].Corrected || mistakes[0].RootCauses[0] != "skipped step" {
		t.Errorf("mistakes = %+v", mistakes)
	}
}

func TestWithinSessionRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	seedSession(t, s, "sess-1")

	boom := errors.New("boom")
	err := repo.WithinSession(ctx, "sess-1", func(ctx context.Context, tx SessionTx) error {
		sess := tx.Session()
		sess.HintsRequested = 5
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		if err := tx.AppendIntervention(ctx, &Intervention{StepNumber: 1, Type: "hint", Content: "x", TriggerReason: "hint_request", CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, _ := repo.GetSession(ctx, "sess-1")
	if got.HintsRequested != 0 || got.Version != 1 {
		t.Errorf("session after rollback = %+v", got)
	}
	ivs, _ := repo.RecentInterventions(ctx, "sess-1", 0)
	if len(ivs) != 1 {
		t.Errorf("len(interventions) = %d, want 1", len(ivs))
	}
}

func TestUpdateSessionStaleVersionConflicts(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	seedSession(t, s, "sess-1")

	err := repo.WithinSession(ctx, "sess-1", func(ctx context.Context, tx SessionTx) error {
		stale := tx.Session()
		stale.Version = 99
		return tx.UpdateSession(ctx, stale)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestWithinSessionSerializesSameSession(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	seedSession(t, s, "sess-1")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.WithinSession(ctx, "sess-1", func(ctx context.Context, tx SessionTx) error {
				sess := tx.Session()
				sess.HintsRequested++
				return tx.UpdateSession(ctx, sess)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("within session: %v", err)
		}
	}

	got, _ := repo.GetSession(ctx, "sess-1")
	if got.HintsRequested != n {
		t.Errorf("hints_requested = %d, want %d", got.HintsRequested, n)
	}
}

func TestRecentInterventionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	seedSession(t, s, "sess-1")

	err := repo.WithinSession(ctx, "sess-1", func(ctx context.Context, tx SessionTx) error {
		for _, typ := range []string{"hint", "encouragement", "clarification"} {
			if err := tx.AppendIntervention(ctx, &Intervention{StepNumber: 1, Type: typ, Content: typ, TriggerReason: "test", CreatedAt: time.Now()}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	ivs, err := repo.RecentInterventions(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ivs) != 2 {
		t.Fatalf("len = %d, want 2", len(ivs))
	}
	if ivs[0].Type != "clarification" || ivs[1].Type != "encouragement" {
		t.Errorf("order = %s, %s", ivs[0].Type, ivs[1].Type)
	}
}

func TestLLMEventsAndUsage(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-sonnet-4", Purpose: "scaffold-hint", InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true},
		{Provider: "anthropic", Model: "claude-sonnet-4", Purpose: "scaffold-hint", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "openai", Model: "gpt-4o", Purpose: "safety-check", InputTokens: 30, OutputTokens: 5, LatencyMs: 50, Success: false, ErrorMessage: "rate limit"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Sequence <= got[1].Sequence {
		t.Errorf("expected newest first, got seq %d then %d", got[0].Sequence, got[1].Sequence)
	}

	one, err := repo.GetLLMEvent(ctx, got[0].ID)
	if err != nil || one == nil || one.ErrorMessage != "rate limit" {
		t.Errorf("get event = %+v, %v", one, err)
	}
	missing, err := repo.GetLLMEvent(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("get missing = %+v, %v", missing, err)
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("len(byPurpose) = %d, want 2", len(byPurpose))
	}
	hint := byPurpose[1] // ordered by purpose
	if hint.Purpose != "scaffold-hint" || hint.Requests != 2 || hint.InputTokens != 150 || hint.OutputTokens != 30 {
		t.Errorf("scaffold-hint usage = %+v", hint)
	}
	if hint.Failures != 0 || hint.AvgLatencyMs() != 200 {
		t.Errorf("scaffold-hint failures = %d, avg latency = %d", hint.Failures, hint.AvgLatencyMs())
	}
	if check := byPurpose[0]; check.Purpose != "safety-check" || check.Failures != 1 {
		t.Errorf("safety-check usage = %+v", check)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 {
		t.Errorf("len(byModel) = %d, want 2", len(byModel))
	}
}

func TestActivityEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, kind := range []string{"session_started", "response_submitted"} {
		err := repo.AppendActivity(ctx, ActivityEventData{
			Kind: kind, SessionID: "sess-1", StudentID: "student-1",
			Detail: map[string]any{"step": 1},
		})
		if err != nil {
			t.Fatalf("append %s: %v", kind, err)
		}
	}
	if err := repo.AppendActivity(ctx, ActivityEventData{Kind: "session_started", SessionID: "sess-2"}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	got, err := repo.QueryActivity(ctx, "sess-1", QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Kind != "session_started" || got[1].Kind != "response_submitted" {
		t.Errorf("kinds = %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[0].Detail["step"] != float64(1) {
		t.Errorf("detail = %v", got[0].Detail)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	if len(k.locks) != 0 {
		t.Errorf("len(locks) = %d, want 0", len(k.locks))
	}
}
