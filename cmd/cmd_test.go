package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/stepwise/internal/store"
)

const templateYAML = `
id: warmup
title: Warm up
subject: math
difficulty: easy
steps:
  - title: Add
    prompt: What is 2 + 2?
    expected_response: four
    type: short_answer
  - title: Explain
    prompt: How do you know?
    type: explanation
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) (db string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STEPWISE_LLM_PROVIDER", "none")
	return filepath.Join(dir, "cli.db")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stepwise")
}

func TestTemplateImportAndList(t *testing.T) {
	db := setup(t)
	path := filepath.Join(t.TempDir(), "warmup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(templateYAML), 0o600))

	out, err := run(t, "template", "import", "--db", db, "--log-level", "error", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported warmup (2 steps)")

	out, err = run(t, "template", "list", "--db", db, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "warmup")
	assert.Contains(t, out, "Warm up")
}

func TestStartRequiresStudent(t *testing.T) {
	db := setup(t)
	t.Setenv("STEPWISE_STUDENT", "")
	_, err := run(t, "start", "--db", db, "--student", "", "warmup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student")
}

func TestStartUnknownTemplate(t *testing.T) {
	db := setup(t)
	_, err := run(t, "start", "--db", db, "--student", "s1", "--log-level", "error", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStartRendersFirstStep(t *testing.T) {
	db := setup(t)
	path := filepath.Join(t.TempDir(), "warmup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(templateYAML), 0o600))
	_, err := run(t, "template", "import", "--db", db, "--log-level", "error", path)
	require.NoError(t, err)

	out, err := run(t, "start", "--db", db, "--student", "s1", "--log-level", "error", "warmup")
	require.NoError(t, err)
	assert.Contains(t, out, "What is 2 + 2?")
	assert.Contains(t, out, "Step 1 of 2")
}

func TestPreviewWalksTemplate(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "warmup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(templateYAML), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(bytes.NewBufferString("four\n/hint 2\nFirst I counted two, then two more because that makes four.\n"))
	t.Cleanup(func() { rootCmd.SetIn(nil) })
	rootCmd.SetArgs([]string{"preview", "--log-level", "error", path})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "On to step 2 of 2.")
	assert.Contains(t, out.String(), "Problem complete!")
}

func TestLLMStatsGroupsByComponent(t *testing.T) {
	db := setup(t)
	s, err := store.OpenFile(db)
	require.NoError(t, err)
	for _, e := range []store.LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-sonnet-4", Purpose: "scaffold-hint", InputTokens: 100, OutputTokens: 20, LatencyMs: 200, Success: true},
		{Provider: "anthropic", Model: "claude-sonnet-4", Purpose: "scaffold-intro", InputTokens: 80, OutputTokens: 10, LatencyMs: 100, Success: false, ErrorMessage: "timeout"},
		{Provider: "anthropic", Model: "claude-sonnet-4", Purpose: "safety-check", InputTokens: 30, OutputTokens: 5, LatencyMs: 50, Success: true},
	} {
		require.NoError(t, s.EventRepo().AppendLLMRequest(context.Background(), e))
	}
	require.NoError(t, s.Close())

	out, err := run(t, "llm", "stats", "--db", db, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "scaffolding")
	assert.Contains(t, out, "safety gate")
	assert.NotContains(t, out, "guided questions")
	assert.Contains(t, out, "1 scaffold-intro → static fallback text")

	out, err = run(t, "llm", "list", "--db", db, "--log-level", "error", "--failed")
	require.NoError(t, err)
	assert.Contains(t, out, "scaffold-intro")
	assert.NotContains(t, out, "safety-check")
}
