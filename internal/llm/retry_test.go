package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/stepwise/internal/store"
)

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	mock := NewMockProvider(MockText("hint"))
	p := WithRetry(mock, retryConfig(), quietLogger())

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "hint" {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockError(&ErrProviderUnavailable{Err: errors.New("down")}),
		MockText("hint"),
	)
	p := WithRetry(mock, retryConfig(), quietLogger())

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.CallCount())
	}
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	mock := NewMockProvider()
	p := WithRetry(mock, retryConfig(), quietLogger())

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount())
	}
}

func TestRetry_ZeroAttemptsStillCallsOnce(t *testing.T) {
	mock := NewMockProvider(MockText("hint"))
	p := WithRetry(mock, RetryConfig{}, quietLogger())

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestRetry_MaxTokensNotRetried(t *testing.T) {
	mock := NewMockProvider(MockError(&ErrMaxTokensExceeded{}))
	p := WithRetry(mock, retryConfig(), quietLogger())

	_, err := p.Generate(context.Background(), Request{})
	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) {
		t.Fatalf("expected ErrMaxTokensExceeded, got: %T", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.CallCount())
	}
}

func TestRetry_InvalidResponseRetriedOnce(t *testing.T) {
	bad := &ErrInvalidResponse{Err: errors.New("bad")}
	mock := NewMockProvider(MockError(bad), MockError(bad), MockText("never reached"))
	p := WithRetry(mock, retryConfig(), quietLogger())

	if _, err := p.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.CallCount())
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	mock := NewMockProvider(
		MockError(&ErrProviderUnavailable{Err: errors.New("down")}),
		MockText("never reached"),
	)
	p := WithRetry(mock, RetryConfig{MaxAttempts: 3, InitialWait: time.Second, MaxWait: time.Second, Multiplier: 1}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_RateLimitRespectsRetryAfter(t *testing.T) {
	mock := NewMockProvider(
		MockError(&ErrRateLimit{RetryAfter: 1 * time.Millisecond, Err: errors.New("429")}),
		MockText("hint"),
	)
	p := WithRetry(mock, retryConfig(), quietLogger())

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.CallCount())
	}
}

type recordingEvents struct {
	store.EventRepo
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEvents) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

type recordingRecorder struct {
	purposes []string
	success  []bool
}

func (r *recordingRecorder) ObserveLLMRequest(purpose string, success bool, _ time.Duration) {
	r.purposes = append(r.purposes, purpose)
	r.success = append(r.success, success)
}

func TestLogging_RecordsSuccessAndFailure(t *testing.T) {
	events := &recordingEvents{}
	rec := &recordingRecorder{}
	mock := NewMockProvider(MockResponse{Content: []byte("hint"), Usage: Usage{InputTokens: 12, OutputTokens: 3}})
	p := WithLogging(mock, events, rec, quietLogger())

	ctx := WithPurpose(context.Background(), PurposeHint)
	if _, err := p.Generate(ctx, Request{System: "tutor", Messages: []Message{{Role: RoleUser, Content: "help"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected error from empty queue")
	}

	if len(events.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events.events))
	}
	ok := events.events[0]
	if !ok.Success || ok.Purpose != PurposeHint || ok.Provider != "mock" || ok.InputTokens != 12 || ok.ResponseBody != "hint" {
		t.Errorf("success event = %+v", ok)
	}
	failed := events.events[1]
	if failed.Success || failed.ErrorMessage == "" {
		t.Errorf("failure event = %+v", failed)
	}
	if len(rec.success) != 2 || !rec.success[0] || rec.success[1] {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestLogging_EventWriteFailureDoesNotFailRequest(t *testing.T) {
	events := &recordingEvents{err: errors.New("disk full")}
	p := WithLogging(NewMockProvider(MockText("hint")), events, nil, quietLogger())

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSerializeRequest(t *testing.T) {
	got := serializeRequest(Request{
		System:   "You are a patient tutor.",
		Messages: []Message{{Role: RoleUser, Content: "Give a hint."}},
		Schema:   &Schema{Name: "verdict", Definition: map[string]any{"type": "object"}},
	})
	want := "[system]\nYou are a patient tutor.\n\n[user]\nGive a hint.\n\n[schema: verdict]\n{\"type\":\"object\"}\n"
	if got != want {
		t.Fatalf("serializeRequest =\n%q\nwant\n%q", got, want)
	}
}
