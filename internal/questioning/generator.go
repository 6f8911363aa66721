// Package questioning turns a mistake classification into an ordered set
// of guiding questions.
package questioning

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"
	"text/template"

	"github.com/abhisek/stepwise/internal/diagnosis"
	"github.com/abhisek/stepwise/internal/llm"
)

// Kind says where a question came from.
type Kind string

const (
	KindDiagnostic    Kind = "diagnostic"
	KindProbing       Kind = "mistake_specific"
	KindSocratic      Kind = "socratic"
	KindMetacognitive Kind = "metacognitive"
)

// Priority orders questions within a plan.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// Strategy is the overall questioning approach.
type Strategy string

const (
	StrategyIntensiveSupport    Strategy = "intensive_support"
	StrategyGuidedDiscovery     Strategy = "guided_discovery"
	StrategySocraticQuestioning Strategy = "socratic_questioning"
	StrategySupportive          Strategy = "supportive"
)

// StrategyFor picks the questioning strategy from severity alone.
func StrategyFor(s diagnosis.Severity) Strategy {
	switch s {
	case diagnosis.SeverityCritical:
		return StrategyIntensiveSupport
	case diagnosis.SeverityHigh:
		return StrategyGuidedDiscovery
	case diagnosis.SeverityMedium:
		return StrategySocraticQuestioning
	}
	return StrategySupportive
}

// Question is one guiding question.
type Question struct {
	Text     string   `json:"text"`
	Kind     Kind     `json:"kind"`
	Purpose  string   `json:"purpose,omitempty"`
	Priority Priority `json:"priority"`
}

// Bucket sizes.
const (
	ImmediateSize = 2
	FollowUpSize  = 3
)

// Plan is the sequenced question set for one mistake.
type Plan struct {
	Immediate  []Question `json:"immediate"`
	FollowUp   []Question `json:"follow_up"`
	Reflection []Question `json:"reflection"`
	Strategy   Strategy   `json:"strategy"`
}

// All returns every question in order.
func (p *Plan) All() []Question {
	out := make([]Question, 0, len(p.Immediate)+len(p.FollowUp)+len(p.Reflection))
	out = append(out, p.Immediate...)
	out = append(out, p.FollowUp...)
	return append(out, p.Reflection...)
}

// Context is the step the questions are about.
type Context struct {
	Prompt     string
	Response   string
	Subject    string
	StepNumber int
}

// Generator builds question plans. The provider is optional; without it no
// Socratic questions are added.
type Generator struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewGenerator creates a question generator.
func NewGenerator(provider llm.Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, logger: logger}
}

// Generate builds the plan for a classification.
func (g *Generator) Generate(ctx context.Context, c *diagnosis.Classification, qc Context) *Plan {
	var qs []Question
	for _, t := range diagnosticTemplates(c.PrimaryType) {
		qs = append(qs, Question{Text: t.text, Kind: KindDiagnostic, Purpose: t.purpose, Priority: PriorityHigh})
	}
	if p := probingQuestion(c.PrimaryType); p.text != "" {
		qs = append(qs, Question{Text: p.text, Kind: KindProbing, Purpose: p.purpose, Priority: PriorityMedium})
	}
	for _, s := range g.socratic(ctx, c, qc) {
		qs = append(qs, Question{Text: s, Kind: KindSocratic, Purpose: "lead the student to self-correct", Priority: PriorityMedium})
	}
	qs = append(qs,
		Question{Text: reflectLearned.text, Kind: KindMetacognitive, Purpose: reflectLearned.purpose, Priority: PriorityLow},
		Question{Text: reflectDifferent.text, Kind: KindMetacognitive, Purpose: reflectDifferent.purpose, Priority: PriorityLow},
	)
	if c.Severity == diagnosis.SeverityHigh || c.Severity == diagnosis.SeverityCritical {
		qs = append(qs, Question{Text: selfMonitoring.text, Kind: KindMetacognitive, Purpose: selfMonitoring.purpose, Priority: PriorityMedium})
	}

	plan := Sequence(qs)
	plan.Strategy = StrategyFor(c.Severity)
	return plan
}

// Sequence deduplicates questions, sorts them by priority keeping the
// original order among equals, and splits them into buckets.
func Sequence(qs []Question) *Plan {
	seen := make(map[string]struct{}, len(qs))
	uniq := make([]Question, 0, len(qs))
	for _, q := range qs {
		key := normalize(q.Text)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, q)
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		return uniq[i].Priority.rank() > uniq[j].Priority.rank()
	})

	plan := &Plan{Immediate: []Question{}, FollowUp: []Question{}, Reflection: []Question{}}
	for i, q := range uniq {
		switch {
		case i < ImmediateSize:
			plan.Immediate = append(plan.Immediate, q)
		case i < ImmediateSize+FollowUpSize:
			plan.FollowUp = append(plan.FollowUp, q)
		default:
			plan.Reflection = append(plan.Reflection, q)
		}
	}
	return plan
}

const maxSocratic = 3

func (g *Generator) socratic(ctx context.Context, c *diagnosis.Classification, qc Context) []string {
	if g.provider == nil {
		return nil
	}
	prompt, err := buildSocraticPrompt(c, qc)
	if err != nil {
		g.logger.Warn("build socratic prompt", "error", err)
		return nil
	}
	text, err := llm.Complete(llm.WithPurpose(ctx, llm.PurposeSocratic), g.provider, socraticSystemPrompt, prompt, 256)
	if err != nil {
		g.logger.Debug("socratic questions unavailable", "error", err)
		return nil
	}
	qs := ExtractQuestions(text)
	if len(qs) > maxSocratic {
		qs = qs[:maxSocratic]
	}
	return qs
}

// ExtractQuestions splits text into sentences and keeps the ones that
// contain a question mark.
func ExtractQuestions(text string) []string {
	var out []string
	start := 0
	flush := func(end int) {
		s := cleanSentence(text[start:end])
		if strings.Contains(s, "?") {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range text {
		switch r {
		case '?', '!', '.', '\n':
			flush(i + 1)
		}
	}
	if start < len(text) {
		flush(len(text))
	}
	return out
}

func cleanSentence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•0123456789) ")
	return strings.TrimSpace(s)
}

func normalize(s string) string {
	return strings.Join(diagnosis.Words(s), " ")
}

const socraticSystemPrompt = `You are a patient tutor who never gives away answers.
Ask short Socratic questions that help the student notice their own mistake.
Reply with two or three questions, one per line, and nothing else.`

var socraticTemplate = template.Must(template.New("socratic").Parse(`Subject: {{.Subject}}
Step {{.StepNumber}}: {{.Prompt}}
Student's answer: {{.Response}}
Likely mistake: {{.Type}} ({{.Severity}})
{{- if .Misconceptions}}
Possible misconceptions:
{{range .Misconceptions}}- {{.}}
{{end}}{{end}}`))

func buildSocraticPrompt(c *diagnosis.Classification, qc Context) (string, error) {
	var buf bytes.Buffer
	err := socraticTemplate.Execute(&buf, map[string]any{
		"Subject":        qc.Subject,
		"StepNumber":     qc.StepNumber,
		"Prompt":         qc.Prompt,
		"Response":       qc.Response,
		"Type":           c.PrimaryType,
		"Severity":       c.Severity,
		"Misconceptions": c.Misconceptions,
	})
	return buf.String(), err
}
