// Package analysis scores a single step response for quality, accuracy and
// understanding.
package analysis

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abhisek/stepwise/internal/diagnosis"
	"github.com/abhisek/stepwise/internal/safety"
)

// Quality is the overall judgement of a response.
type Quality string

const (
	QualityExcellent        Quality = "excellent"
	QualityGood             Quality = "good"
	QualityNeedsImprovement Quality = "needs_improvement"
	QualityIncorrect        Quality = "incorrect"
	QualityInappropriate    Quality = "inappropriate"
	QualityUnknown          Quality = "unknown"
)

// Passing reports whether the quality completes a step.
func (q Quality) Passing() bool {
	return q == QualityExcellent || q == QualityGood
}

// Understanding is the inferred confidence of the student.
type Understanding string

const (
	UnderstandingConfident Understanding = "confident"
	UnderstandingPartial   Understanding = "partial"
	UnderstandingConfused  Understanding = "confused"
)

// Input is one response plus the step it answers.
type Input struct {
	Response    string
	Expected    string
	Prompt      string
	Keywords    []string
	Subject     string
	Difficulty  int
	StepType    string
	RequestHelp bool
}

// Result is the analyzer's verdict on one response.
type Result struct {
	Quality        Quality
	Accuracy       float64
	Understanding  Understanding
	Feedback       string
	Misconceptions []string
	Mistakes       []*diagnosis.Classification
	Similarity     float64
	HelpRequested  bool
	// Scored is the text that was actually scored; it differs from the
	// submitted response when the validator cleaned it up.
	Scored string
	// SafetyReason is set when the gate rejected the response.
	SafetyReason string
}

// HelpPath reports whether the result calls for an intervention.
func (r *Result) HelpPath() bool {
	return r.HelpRequested || r.Quality == QualityIncorrect || r.Understanding == UnderstandingConfused
}

// Analyzer runs the safety gate, validator and scoring for a response.
type Analyzer struct {
	gate       safety.Gate
	validator  safety.Validator
	classifier *diagnosis.Classifier
	logger     *slog.Logger
}

// New creates an analyzer. A nil gate uses the default rule gate, a nil
// validator skips validation and a nil classifier uses the embedded rules.
func New(gate safety.Gate, validator safety.Validator, classifier *diagnosis.Classifier, logger *slog.Logger) *Analyzer {
	if gate == nil {
		gate, _ = safety.NewRuleGate()
	}
	if classifier == nil {
		classifier = diagnosis.NewClassifier(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gate: gate, validator: validator, classifier: classifier, logger: logger}
}

// Analyze scores a response. It never fails: a safety gate error is scored
// as inappropriate.
func (a *Analyzer) Analyze(ctx context.Context, in Input) *Result {
	res := &Result{
		HelpRequested: in.RequestHelp,
		Scored:        in.Response,
	}

	verdict, err := a.gate.CheckContent(ctx, in.Response)
	if err != nil || !verdict.Safe {
		if err != nil {
			a.logger.Warn("safety gate failed, treating response as unsafe", "gate", verdict.Gate, "error", err)
			res.SafetyReason = "safety check unavailable"
		} else {
			res.SafetyReason = verdict.Reason
		}
		res.HelpRequested = res.HelpRequested || RequestsHelp(in.Response)
		res.Quality = QualityInappropriate
		res.Accuracy = 0
		res.Understanding = UnderstandingConfused
		res.Feedback = feedbackFor(QualityInappropriate)
		return res
	}

	var notes []string
	if a.validator != nil {
		vr, err := a.validator.ValidateResponse(ctx, in.Response, safety.ValidationContext{
			Subject:  in.Subject,
			StepType: in.StepType,
			Prompt:   in.Prompt,
		})
		switch {
		case err != nil:
			a.logger.Warn("response validation failed", "error", err)
		case vr.HasViolations():
			notes = append(notes, validationNote(vr))
			if vr.Improved != "" {
				res.Scored = vr.Improved
			}
		}
	}

	if strings.TrimSpace(in.Expected) != "" {
		a.scoreAgainstExpected(in, res)
	} else {
		a.scoreHeuristically(in, res)
	}
	// A response that matches the expected answer is an answer, even when
	// it reads like a request; the flag always counts.
	if !res.HelpRequested && !(res.Quality.Passing() && res.Similarity > 0.6) {
		res.HelpRequested = RequestsHelp(in.Response)
	}

	for _, m := range res.Mistakes {
		res.Misconceptions = append(res.Misconceptions, m.Misconceptions...)
	}
	res.Feedback = strings.Join(append([]string{feedbackFor(res.Quality)}, notes...), " ")
	return res
}

func (a *Analyzer) scoreAgainstExpected(in Input, res *Result) {
	sim := Similarity(res.Scored, in.Expected)
	res.Similarity = sim
	switch {
	case sim > 0.8:
		res.Quality, res.Accuracy, res.Understanding = QualityExcellent, sim, UnderstandingConfident
		return
	case sim > 0.6:
		res.Quality, res.Accuracy, res.Understanding = QualityGood, sim, UnderstandingConfident
		return
	}

	if c := a.classify(in, res.Scored); c != nil {
		res.Mistakes = append(res.Mistakes, c)
		res.Quality = QualityForType(c.PrimaryType)
		res.Accuracy = AccuracyForSeverity(c.Severity)
		res.Understanding = UnderstandingForSeverity(c.Severity)
		return
	}

	res.Accuracy = sim
	if sim > 0.3 {
		res.Quality, res.Understanding = QualityNeedsImprovement, UnderstandingPartial
	} else {
		res.Quality, res.Understanding = QualityIncorrect, UnderstandingConfused
	}
}

var sequencingWords = regexp.MustCompile(`(?i)\b(first|then|because|therefore)\b`)

func (a *Analyzer) scoreHeuristically(in Input, res *Result) {
	text := strings.TrimSpace(res.Scored)
	n := utf8.RuneCountInString(text)
	switch {
	case n < 10:
		res.Quality, res.Understanding, res.Accuracy = QualityIncorrect, UnderstandingConfused, 0.2
		if c := a.classify(in, res.Scored); c != nil {
			res.Mistakes = append(res.Mistakes, c)
			res.Accuracy = AccuracyForSeverity(c.Severity)
		}
	case n >= 30 && sequencingWords.MatchString(text):
		res.Quality, res.Understanding, res.Accuracy = QualityGood, UnderstandingConfident, 0.75
	default:
		res.Quality, res.Understanding, res.Accuracy = QualityNeedsImprovement, UnderstandingPartial, 0.5
	}
}

func (a *Analyzer) classify(in Input, text string) *diagnosis.Classification {
	return a.classifier.Classify(&diagnosis.Input{
		Response:   text,
		Expected:   in.Expected,
		Prompt:     in.Prompt,
		Keywords:   in.Keywords,
		Subject:    in.Subject,
		Difficulty: in.Difficulty,
	})
}

// QualityForType maps a mistake type to response quality.
func QualityForType(t diagnosis.MistakeType) Quality {
	switch t {
	case diagnosis.Conceptual, diagnosis.Prerequisite:
		return QualityIncorrect
	case diagnosis.Procedural, diagnosis.Computational, diagnosis.Strategic,
		diagnosis.Careless, diagnosis.Communication, diagnosis.Metacognitive:
		return QualityNeedsImprovement
	}
	return QualityUnknown
}

// AccuracyForSeverity maps mistake severity to an accuracy score.
func AccuracyForSeverity(s diagnosis.Severity) float64 {
	switch s {
	case diagnosis.SeverityLow:
		return 0.6
	case diagnosis.SeverityMedium:
		return 0.4
	case diagnosis.SeverityHigh:
		return 0.2
	case diagnosis.SeverityCritical:
		return 0.1
	}
	return 0
}

// UnderstandingForSeverity maps mistake severity to understanding.
func UnderstandingForSeverity(s diagnosis.Severity) Understanding {
	if s == diagnosis.SeverityLow {
		return UnderstandingPartial
	}
	return UnderstandingConfused
}

var helpRequests = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\W*(help|hint)s?(\s+(me|please|pls))?\W*$`),
	regexp.MustCompile(`(?i)\bhelp\s+me\b`),
	regexp.MustCompile(`(?i)\b(can|could|would|will)\s+(you|someone|somebody|anyone)\s+(please\s+)?help\b`),
	regexp.MustCompile(`(?i)\b(need|want|get|give\s+me|have|use)\s+(some\s+|a\s+|any\s+|another\s+|more\s+)?(help|hints?)\b`),
	regexp.MustCompile(`(?i)\bany\s+hints?\b`),
}

// RequestsHelp reports whether a response is phrased as a request for help
// ("help me", "I need a hint", "can you help"). Mentioning the words in an
// answer does not count.
func RequestsHelp(text string) bool {
	for _, re := range helpRequests {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func feedbackFor(q Quality) string {
	switch q {
	case QualityExcellent:
		return "Excellent work! Your answer covers everything this step asks for."
	case QualityGood:
		return "Good job. You have the main idea."
	case QualityNeedsImprovement:
		return "You're on the right track, but your answer is missing some pieces."
	case QualityIncorrect:
		return "That's not quite right yet. Let's work through it together."
	case QualityInappropriate:
		return "Let's keep our conversation focused on the problem."
	}
	return "Thanks for your answer."
}

func validationNote(vr *safety.ValidationResult) string {
	rules := make([]string, len(vr.Violations))
	for i, v := range vr.Violations {
		rules[i] = v.Rule
	}
	return "(Your response was tidied before checking: " + strings.Join(rules, ", ") + ".)"
}
