package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	sessionKey contextKey = "llm_session"
)

// Purpose labels recorded with every logged request.
const (
	PurposeIntro      = "scaffold-intro"
	PurposeScaffold   = "scaffold-intervention"
	PurposeHint       = "scaffold-hint"
	PurposeSocratic   = "socratic-questions"
	PurposeModeration = "safety-check"
)

// Component names the engine part that issues requests for purpose.
func Component(purpose string) string {
	switch purpose {
	case PurposeIntro, PurposeScaffold, PurposeHint:
		return "scaffolding"
	case PurposeSocratic:
		return "guided questions"
	case PurposeModeration:
		return "safety gate"
	}
	return "other"
}

// FailureOutcome describes what the engine does when a request for purpose
// fails.
func FailureOutcome(purpose string) string {
	switch Component(purpose) {
	case "scaffolding":
		return "static fallback text"
	case "guided questions":
		return "template questions only"
	case "safety gate":
		return "response treated as unsafe"
	}
	return "error returned"
}

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithSession tags the context with the problem session a request serves.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// SessionFrom returns the session tag, or "" when none was set.
func SessionFrom(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey).(string)
	return v
}
