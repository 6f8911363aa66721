package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"is_safe":true}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockText("What do you already know about the denominators?"),
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp1.Content) != `{"is_safe":true}` {
		t.Fatalf("unexpected content %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp2.Text() != "What do you already know about the denominators?" {
		t.Fatalf("unexpected text %q", resp2.Text())
	}
	if mock.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d pending", mock.Pending())
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(MockText("ok"))

	req := Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" {
		t.Fatalf("expected system 'sys', got %q", mock.Calls[0].System)
	}
}

func TestMockProvider_ValidatesAgainstSchema(t *testing.T) {
	mock := NewMockProvider(MockJSON(map[string]any{"name": "Ada"}))

	_, err := mock.Generate(context.Background(), Request{Schema: testSchema()})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse for missing required field, got %v", err)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(MockError(&ErrRateLimit{RetryAfter: 0}))

	_, err := mock.Generate(context.Background(), Request{})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"  plain hint  ", "plain hint"},
		{`"quoted hint"`, "quoted hint"},
		{`"not closed`, `"not closed`},
		{"", ""},
	}
	for _, tt := range tests {
		r := &Response{Content: json.RawMessage(tt.content)}
		if got := r.Text(); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}

	var nilResp *Response
	if nilResp.Text() != "" {
		t.Error("nil response should have empty text")
	}
}

func TestResponseDecode(t *testing.T) {
	r := &Response{Content: json.RawMessage(`{"is_safe":false,"reason":"insult"}`)}
	var v struct {
		IsSafe bool   `json:"is_safe"`
		Reason string `json:"reason"`
	}
	if err := r.Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.IsSafe || v.Reason != "insult" {
		t.Fatalf("decoded %+v", v)
	}

	bad := &Response{Content: json.RawMessage(`not json`)}
	var inv *ErrInvalidResponse
	if err := bad.Decode(&v); !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	mock := NewMockProvider(MockText("Try listing the multiples of 4."), MockText("   "))

	got, err := Complete(context.Background(), mock, "tutor", "give a hint", 100)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "Try listing the multiples of 4." {
		t.Fatalf("got %q", got)
	}
	if mock.Calls[0].MaxTokens != 100 || mock.Calls[0].Messages[0].Content != "give a hint" {
		t.Fatalf("unexpected request %+v", mock.Calls[0])
	}

	if _, err := Complete(context.Background(), mock, "tutor", "again", 100); err == nil {
		t.Fatal("expected error for blank completion")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &ErrRateLimit{}, true},
		{"unavailable", &ErrProviderUnavailable{}, true},
		{"canceled", context.Canceled, false},
		{"max tokens", &ErrMaxTokensExceeded{}, false},
		{"invalid", &ErrInvalidResponse{Err: errors.New("x")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}
	if s := SessionFrom(ctx); s != "" {
		t.Fatalf("expected empty session, got %q", s)
	}

	ctx = WithSession(WithPurpose(ctx, PurposeHint), "sess-1")
	if p := PurposeFrom(ctx); p != PurposeHint {
		t.Fatalf("expected %q, got %q", PurposeHint, p)
	}
	if s := SessionFrom(ctx); s != "sess-1" {
		t.Fatalf("expected sess-1, got %q", s)
	}
}

func TestComponent(t *testing.T) {
	tests := []struct {
		purpose, component, outcome string
	}{
		{PurposeIntro, "scaffolding", "static fallback text"},
		{PurposeHint, "scaffolding", "static fallback text"},
		{PurposeSocratic, "guided questions", "template questions only"},
		{PurposeModeration, "safety gate", "response treated as unsafe"},
		{"unknown", "other", "error returned"},
	}
	for _, tt := range tests {
		if got := Component(tt.purpose); got != tt.component {
			t.Errorf("Component(%q) = %q, want %q", tt.purpose, got, tt.component)
		}
		if got := FailureOutcome(tt.purpose); got != tt.outcome {
			t.Errorf("FailureOutcome(%q) = %q, want %q", tt.purpose, got, tt.outcome)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}, false},
		{"openai without key", Config{Provider: "openai"}, true},
		{"gemini with key", Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "g"}}, false},
		{"openrouter without key", Config{Provider: "openrouter"}, true},
		{"mock needs no key", Config{Provider: "mock"}, false},
		{"none needs no key", Config{Provider: "none"}, false},
		{"unknown provider", Config{Provider: "unknown"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	if _, ok := DiscoverConfig(); ok {
		t.Fatal("expected no config without keys")
	}

	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	cfg, ok := DiscoverConfig()
	if !ok || cfg.Provider != "openai" || cfg.OpenAI.APIKey != "o-key" {
		t.Fatalf("DiscoverConfig = %+v, %v", cfg, ok)
	}
}

func TestNewProvider_MockAndNone(t *testing.T) {
	for _, name := range []string{"mock", "none"} {
		p, err := NewProvider(context.Background(), Config{Provider: name}, Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, err := p.Generate(context.Background(), Request{}); err == nil {
			t.Fatalf("%s: expected unavailable error", name)
		}
	}

	if _, err := NewProvider(context.Background(), Config{Provider: "bogus"}, Options{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestTimeoutProvider(t *testing.T) {
	slow := providerFunc(func(ctx context.Context, _ Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := WithTimeout(slow, 10*time.Millisecond)

	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// providerFunc adapts a function to Provider.
type providerFunc func(ctx context.Context, req Request) (*Response, error)

func (f providerFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

func (f providerFunc) ModelID() string { return "func" }
