// Package scaffold decides whether a response needs an intervention and
// phrases it.
package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/abhisek/stepwise/internal/analysis"
	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/questioning"
)

// Type is the kind of help surfaced to the student.
type Type string

const (
	TypeHint              Type = "hint"
	TypeCorrection        Type = "correction"
	TypeClarification     Type = "clarification"
	TypeGuidance          Type = "guidance"
	TypeGuidedQuestioning Type = "guided_questioning"
)

// CountsAsHint reports whether an intervention of type t increments the
// session's hint counter.
func CountsAsHint(t Type) bool {
	return t == TypeHint || t == TypeGuidedQuestioning
}

// Trigger is why an intervention was produced.
type Trigger string

const (
	TriggerStudentRequested  Trigger = "student_requested"
	TriggerMistakeDetected   Trigger = "mistake_detected"
	TriggerConfusionDetected Trigger = "confusion_detected"
	TriggerInappropriate     Trigger = "inappropriate_content"
	TriggerStepIntroduction  Trigger = "step_introduction"
	TriggerHintRequested     Trigger = "hint_requested"
)

// Style describes the tone of an intervention.
type Style string

const (
	StyleSupportive Style = "supportive"
	StyleSocratic   Style = "socratic"
	StyleDirective  Style = "directive"
)

// Intervention is one piece of scaffolding ready to be logged.
type Intervention struct {
	Type       Type
	Content    string
	Trigger    Trigger
	Style      Style
	Confidence float64
	Strategy   questioning.Strategy
	// Generated is true when the content came from the LLM.
	Generated bool
}

// SessionContext is what the dispatcher knows about where the student is.
type SessionContext struct {
	SessionID      string
	Subject        string
	TemplateTitle  string
	StepNumber     int
	TotalSteps     int
	StepTitle      string
	Prompt         string
	Keywords       []string
	Response       string
	HintsRequested int
	MistakesMade   int
}

// FallbackMessage is used whenever scaffolding generation fails.
const FallbackMessage = "Take a moment to reread the step and think about what it is asking. You're doing fine, and we'll work through it together."

const clarificationMessage = "Let's keep our conversation focused on the problem. Could you try answering this step again in your own words?"

// Decide applies the decision table to an analysis result. It returns false
// when no intervention is needed.
func Decide(res *analysis.Result) (Trigger, bool) {
	switch {
	case res.Quality == analysis.QualityInappropriate:
		return TriggerInappropriate, true
	case res.HelpRequested:
		return TriggerStudentRequested, true
	case res.Quality == analysis.QualityIncorrect:
		return TriggerMistakeDetected, true
	case res.Understanding == analysis.UnderstandingConfused:
		return TriggerConfusionDetected, true
	}
	return "", false
}

func typeForTrigger(t Trigger) Type {
	switch t {
	case TriggerStudentRequested, TriggerHintRequested:
		return TypeHint
	case TriggerMistakeDetected:
		return TypeCorrection
	case TriggerConfusionDetected, TriggerInappropriate:
		return TypeClarification
	case TriggerStepIntroduction:
		return TypeGuidance
	}
	return TypeHint
}

// Dispatcher produces interventions. The provider is optional; without it
// every message is a static fallback.
type Dispatcher struct {
	provider llm.Provider
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(provider llm.Provider, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{provider: provider, logger: logger}
}

// Dispatch returns the intervention for an analysed response, or nil when
// none is needed. It never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, res *analysis.Result, plan *questioning.Plan, sc SessionContext) *Intervention {
	trigger, ok := Decide(res)
	if !ok {
		return nil
	}

	if trigger == TriggerInappropriate {
		return &Intervention{
			Type:       TypeClarification,
			Content:    clarificationMessage,
			Trigger:    trigger,
			Style:      StyleDirective,
			Confidence: 1,
		}
	}

	if plan != nil && len(plan.Immediate) > 0 {
		return &Intervention{
			Type:       TypeGuidedQuestioning,
			Content:    plan.Immediate[0].Text,
			Trigger:    trigger,
			Style:      StyleSocratic,
			Confidence: 0.75,
			Strategy:   plan.Strategy,
		}
	}

	iv := &Intervention{
		Type:    typeForTrigger(trigger),
		Trigger: trigger,
		Style:   StyleSupportive,
	}
	text, err := d.generate(ctx, llm.PurposeScaffold, scaffoldSystemPrompt, scaffoldTemplate, promptData{
		SessionContext: sc,
		Trigger:        trigger,
		Quality:        res.Quality,
		Feedback:       res.Feedback,
	})
	if err != nil {
		d.logger.Warn("scaffolding generation failed, using fallback", "trigger", trigger, "error", err)
		iv.Content, iv.Confidence = FallbackMessage, 0.5
		return iv
	}
	iv.Content, iv.Confidence, iv.Generated = text, 0.8, true
	return iv
}

// IntroduceStep returns the guidance shown when a step becomes current.
func (d *Dispatcher) IntroduceStep(ctx context.Context, sc SessionContext) *Intervention {
	iv := &Intervention{
		Type:    TypeGuidance,
		Trigger: TriggerStepIntroduction,
		Style:   StyleSupportive,
	}
	text, err := d.generate(ctx, llm.PurposeIntro, introSystemPrompt, introTemplate, promptData{SessionContext: sc})
	if err != nil {
		d.logger.Debug("intro generation failed, using fallback", "step", sc.StepNumber, "error", err)
		iv.Content, iv.Confidence = introFallback(sc), 0.5
		return iv
	}
	iv.Content, iv.Confidence, iv.Generated = text, 0.8, true
	return iv
}

// Hint levels, from a gentle nudge to a near-worked step.
const (
	MinHintLevel = 1
	MaxHintLevel = 3
)

// Hint returns an on-demand hint at the given level. Levels outside 1..3
// are clamped.
func (d *Dispatcher) Hint(ctx context.Context, sc SessionContext, level int) *Intervention {
	level = max(MinHintLevel, min(MaxHintLevel, level))
	iv := &Intervention{
		Type:    TypeHint,
		Trigger: TriggerHintRequested,
		Style:   hintStyle(level),
	}
	text, err := d.generate(ctx, llm.PurposeHint, hintSystemPrompt, hintTemplate, promptData{SessionContext: sc, Level: level})
	if err != nil {
		d.logger.Debug("hint generation failed, using fallback", "level", level, "error", err)
		iv.Content, iv.Confidence = hintFallback(sc, level), 0.5
		return iv
	}
	iv.Content, iv.Confidence, iv.Generated = text, 0.8, true
	return iv
}

func hintStyle(level int) Style {
	if level >= MaxHintLevel {
		return StyleDirective
	}
	return StyleSocratic
}

type promptData struct {
	SessionContext
	Trigger  Trigger
	Quality  analysis.Quality
	Feedback string
	Level    int
}

func (d *Dispatcher) generate(ctx context.Context, purpose, system string, tmpl *template.Template, data promptData) (string, error) {
	if d.provider == nil {
		return "", &llm.ErrProviderUnavailable{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	ctx = llm.WithPurpose(ctx, purpose)
	if data.SessionID != "" {
		ctx = llm.WithSession(ctx, data.SessionID)
	}
	return llm.Complete(ctx, d.provider, system, buf.String(), 200)
}

func introFallback(sc SessionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d of %d", sc.StepNumber, sc.TotalSteps)
	if sc.StepTitle != "" {
		fmt.Fprintf(&b, ": %s", sc.StepTitle)
	}
	b.WriteString(". Read the prompt carefully and take it one piece at a time.")
	return b.String()
}

func hintFallback(sc SessionContext, level int) string {
	switch level {
	case 1:
		return "Start by asking yourself what this step wants you to find."
	case 2:
		if len(sc.Keywords) > 0 {
			return fmt.Sprintf("Focus on the key ideas here: %s. How do they connect to the question?", strings.Join(sc.Keywords, ", "))
		}
		return "Look again at the information the prompt gives you. Which parts do you actually need?"
	default:
		return "Break the step into smaller parts and solve just the first part. Write down what you know before you calculate anything."
	}
}
