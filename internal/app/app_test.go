package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/stepwise/internal/config"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/problem"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DB:          filepath.Join(dir, "nested", "stepwise.db"),
		LogLevel:    "info",
		LogFormat:   "text",
		MetricsFile: filepath.Join(dir, "stepwise.prom"),
		GuidedTTL:   guided.DefaultTTL,
		LLM:         llm.Config{Provider: "none"},
	}
}

func TestOpenWiresOfflineEngine(t *testing.T) {
	cfg := testConfig(t)
	a, err := Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, a.Provider)
	require.NotNil(t, a.Engine)

	ctx := context.Background()
	tmpl := &problem.Template{
		ID: "t1", Title: "Warm up", Subject: "math", Active: true,
		Steps: []problem.Step{{Title: "Sum", Prompt: "What is 2 + 2?", ExpectedResponse: "four", Type: problem.StepShortAnswer}},
	}
	require.NoError(t, a.Store.TemplateRepo().SaveTemplate(ctx, tmpl))

	st, err := a.Engine.StartSession(ctx, "s1", "t1")
	require.NoError(t, err)
	out, err := a.Engine.SubmitStepResponse(ctx, session.SubmitInput{
		SessionID: st.Session.ID, StudentID: "s1", StepNumber: 1, Response: "four",
	})
	require.NoError(t, err)
	assert.True(t, out.Completed)

	events, err := a.Store.EventRepo().QueryActivity(ctx, st.Session.ID, store.QueryOpts{})
	require.NoError(t, err)
	assert.NotEmpty(t, events, "activity is persisted through the store sink")

	require.NoError(t, a.Close())
	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `stepwise_sessions_total{outcome="completed"} 1`)
}

func TestOpenRejectsBadRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Open(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classification rules")
}
