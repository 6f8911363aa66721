package diagnosis

import (
	"regexp"
	"strings"
)

// Analyzer is one independent pass over a response. It returns nil when it
// has nothing to say.
type Analyzer interface {
	Name() string
	Analyze(in *Input) *Evidence
}

// PatternAnalyzer matches the subject's rule table against the response.
type PatternAnalyzer struct {
	Rules *RuleSet
}

func (a *PatternAnalyzer) Name() string { return "pattern" }

func (a *PatternAnalyzer) Analyze(in *Input) *Evidence {
	ev := &Evidence{}
	for _, r := range a.Rules.For(FamilyOf(in.Subject)) {
		if !r.Matches(in.Response) {
			continue
		}
		ev.Votes = append(ev.Votes, Vote{Type: r.Type, Confidence: r.Confidence, Source: "pattern:" + r.Name})
		ev.Indicators = append(ev.Indicators, r.Indicators...)
		if r.Misconception != "" {
			ev.Misconceptions = append(ev.Misconceptions, r.Misconception)
		}
		if r.Confidence > ev.Confidence {
			ev.Confidence = r.Confidence
		}
	}
	if ev.empty() {
		return nil
	}
	return ev
}

// ContentAnalyzer measures the response against the expected answer and the
// step's declared keywords.
type ContentAnalyzer struct{}

func (a *ContentAnalyzer) Name() string { return "content" }

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

func (a *ContentAnalyzer) Analyze(in *Input) *Evidence {
	ev := &Evidence{}
	words := Words(in.Response)
	expected := Words(in.Expected)

	// Length and completeness against the expected answer.
	if len(expected) > 0 {
		ratio := float64(len(words)) / float64(len(expected))
		switch {
		case ratio < 0.3:
			ev.Indicators = append(ev.Indicators, "incomplete_response", "major_error")
		case ratio < 0.6:
			ev.Indicators = append(ev.Indicators, "incomplete_response")
		case ratio > 3:
			ev.Indicators = append(ev.Indicators, "unfocused_response")
		}
		if len(words) >= 3 && overlap(words, expected) == 0 {
			ev.Indicators = append(ev.Indicators, "fundamental_misunderstanding")
		}
	}

	// Keyword coverage.
	if len(in.Keywords) > 0 {
		lower := strings.ToLower(in.Response)
		hit := 0
		for _, k := range in.Keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				hit++
			}
		}
		coverage := float64(hit) / float64(len(in.Keywords))
		switch {
		case coverage == 0:
			ev.Indicators = append(ev.Indicators, "conceptual_gap")
		case coverage < 0.5:
			ev.Indicators = append(ev.Indicators, "partial_keyword_coverage")
		}
	}

	// Structure and coherence.
	sentences := countSentences(in.Response)
	if len(words) > 15 && !sentenceEnd.MatchString(in.Response) {
		ev.Indicators = append(ev.Indicators, "unstructured_response")
	}
	if len(words) > 40 && sentences <= 1 {
		ev.Indicators = append(ev.Indicators, "run_on_response")
	}

	if len(ev.Indicators) == 0 {
		return nil
	}
	ev.Confidence = min(1, 0.2+0.2*float64(len(ev.Indicators)))
	return ev
}

func countSentences(s string) int {
	n := 0
	for _, part := range sentenceEnd.Split(s, -1) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// Words lower-cases s, strips punctuation and splits on whitespace.
func Words(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '\t', r == '\n':
			b.WriteRune(r)
		case r > 127 && !isPunct(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func isPunct(r rune) bool {
	return strings.ContainsRune("‘’“”–—…«»¿¡·", r)
}

func overlap(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	n := 0
	seen := make(map[string]struct{}, len(a))
	for _, w := range a {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}
