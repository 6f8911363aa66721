package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/stepwise/internal/problem"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a version-guarded update lost a race.
	ErrConflict = errors.New("store: concurrent modification")
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// SessionStatus is the lifecycle status of a problem session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
	StatusPaused    SessionStatus = "paused"
)

// Session is one student's attempt at one template.
type Session struct {
	ID             string
	StudentID      string
	TemplateID     string
	CurrentStep    int
	TotalSteps     int
	Status         SessionStatus
	StepsCompleted int
	HintsRequested int
	MistakesMade   int
	Accuracy       float64
	EmotionalState string
	StartedAt      time.Time
	LastActivityAt time.Time
	CompletedAt    *time.Time
	CompletionSecs int

	// Version guards UpdateSession against lost updates.
	Version int
}

// Step is one step instance within a session.
type Step struct {
	ID               int
	SessionID        string
	Number           int
	Title            string
	Prompt           string
	ExpectedResponse string
	Type             string
	Keywords         []string
	StudentResponse  *string
	Attempts         int
	Completed        bool
	Quality          string
	Accuracy         float64
	Understanding    string
	Feedback         string
	Misconceptions   []string
	CompletedAt      *time.Time
}

// Intervention is a single piece of scaffolding surfaced to the student.
type Intervention struct {
	ID            int
	SessionID     string
	StepNumber    int
	Type          string
	Content       string
	TriggerReason string
	Style         string
	Confidence    float64
	Strategy      string
	CreatedAt     time.Time
}

// Mistake is a classified error logged against a step.
type Mistake struct {
	ID             int
	SessionID      string
	StepNumber     int
	PrimaryType    string
	Severity       string
	Confidence     float64
	RootCauses     []string
	Indicators     []string
	Misconceptions []string
	Corrected      bool
	CreatedAt      time.Time
}

// TemplateRepo stores authored problem templates.
type TemplateRepo interface {
	SaveTemplate(ctx context.Context, t *problem.Template) error

	// GetTemplate returns ErrNotFound when the template does not exist.
	GetTemplate(ctx context.Context, id string) (*problem.Template, error)

	ListTemplates(ctx context.Context) ([]*problem.Template, error)
}

// SessionRepo persists sessions and their child rows.
type SessionRepo interface {
	// CreateSession inserts the session, all of its steps and the
	// introductory intervention in one transaction.
	CreateSession(ctx context.Context, sess *Session, steps []*Step, intro *Intervention) error

	// GetSession returns ErrNotFound when the session does not exist.
	GetSession(ctx context.Context, id string) (*Session, error)

	ListSteps(ctx context.Context, sessionID string) ([]*Step, error)
	RecentInterventions(ctx context.Context, sessionID string, limit int) ([]*Intervention, error)
	ListMistakes(ctx context.Context, sessionID string) ([]*Mistake, error)

	// WithinSession runs fn as one unit of work: same-session callers are
	// serialized, and every write made through the SessionTx commits or
	// rolls back together.
	WithinSession(ctx context.Context, sessionID string, fn func(ctx context.Context, tx SessionTx) error) error
}

// SessionTx is the write surface available inside WithinSession.
type SessionTx interface {
	// Session is the session row as read at the start of the unit of work.
	Session() *Session

	Steps(ctx context.Context) ([]*Step, error)
	UpdateSession(ctx context.Context, sess *Session) error
	UpdateStep(ctx context.Context, step *Step) error
	AppendIntervention(ctx context.Context, iv *Intervention) error
	AppendMistake(ctx context.Context, m *Mistake) error
	MarkMistakesCorrected(ctx context.Context, stepNumber int) error
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a persisted LLM request event.
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates requests, failures, tokens and latency per
// purpose.
type LLMUsageStats struct {
	Purpose        string
	Requests       int
	Failures       int
	InputTokens    int
	OutputTokens   int
	TotalLatencyMs int64
}

// AvgLatencyMs is the mean request latency, 0 without requests.
func (u LLMUsageStats) AvgLatencyMs() int64 {
	if u.Requests == 0 {
		return 0
	}
	return u.TotalLatencyMs / int64(u.Requests)
}

// LLMModelUsage aggregates token usage per model.
type LLMModelUsage struct {
	Model        string
	Requests     int
	InputTokens  int
	OutputTokens int
}

// ActivityEventData is an audit event emitted by the engine.
type ActivityEventData struct {
	Kind      string
	SessionID string
	StudentID string
	Detail    map[string]any
}

// ActivityEventRecord is a persisted activity event.
type ActivityEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	ActivityEventData
}

// EventRepo provides append and query access to logged events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns nil, nil when the event does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)

	AppendActivity(ctx context.Context, data ActivityEventData) error
	QueryActivity(ctx context.Context, sessionID string, opts QueryOpts) ([]ActivityEventRecord, error)
}
