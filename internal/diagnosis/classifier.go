package diagnosis

import (
	"sort"
	"strings"
)

// Classifier combines the pattern, content and subject analyses into a
// single Classification.
type Classifier struct {
	analyzers []Analyzer
}

// NewClassifier creates a classifier over the given rule table. A nil rule
// set uses the embedded defaults.
func NewClassifier(rules *RuleSet) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{
		analyzers: []Analyzer{
			&PatternAnalyzer{Rules: rules},
			&ContentAnalyzer{},
			&SubjectAnalyzer{},
		},
	}
}

// Classify diagnoses a response. Returns nil when no analysis found any
// evidence of a mistake.
func (c *Classifier) Classify(in *Input) *Classification {
	var (
		votes          []Vote
		indicators     []string
		misconceptions []string
		confSum        float64
		found          bool
	)
	for _, a := range c.analyzers {
		ev := a.Analyze(in)
		if ev.empty() {
			continue
		}
		found = true
		votes = append(votes, ev.Votes...)
		indicators = append(indicators, ev.Indicators...)
		misconceptions = append(misconceptions, ev.Misconceptions...)
		confSum += ev.Confidence
	}
	if !found {
		return nil
	}

	primary := primaryType(votes)
	return &Classification{
		PrimaryType:    primary,
		Severity:       SeverityFor(indicators),
		Confidence:     confSum / float64(len(c.analyzers)),
		Indicators:     dedupe(indicators),
		Misconceptions: dedupe(misconceptions),
		RootCauses:     []string{RootCause(primary)},
	}
}

// primaryType returns the type with the highest summed vote confidence.
// Ties go to the type declared first; no votes means Conceptual.
func primaryType(votes []Vote) MistakeType {
	totals := voteTotals(votes)
	if len(totals) == 0 {
		return Conceptual
	}
	return totals[0].Type
}

// severityKeywords maps indicator keywords to severity, most severe first.
var severityKeywords = []struct {
	keyword  string
	severity Severity
}{
	{"fundamental_misunderstanding", SeverityCritical},
	{"major_error", SeverityHigh},
	{"conceptual_gap", SeverityHigh},
	{"procedural_error", SeverityMedium},
	{"incomplete_response", SeverityMedium},
}

// SeverityFor derives severity from the union of indicators.
func SeverityFor(indicators []string) Severity {
	sev := SeverityLow
	for _, ind := range indicators {
		for _, k := range severityKeywords {
			if strings.Contains(ind, k.keyword) && k.severity.Rank() > sev.Rank() {
				sev = k.severity
			}
		}
	}
	return sev
}

// RootCause is the one-line explanation attached to a mistake type.
func RootCause(t MistakeType) string {
	switch t {
	case Conceptual:
		return "incomplete understanding of the underlying concept"
	case Procedural:
		return "unfamiliarity with problem-solving procedures"
	case Computational:
		return "arithmetic slip while carrying out the calculation"
	case Strategic:
		return "chose an approach that does not fit the problem"
	case Careless:
		return "lapse in attention rather than a gap in understanding"
	case Communication:
		return "difficulty expressing reasoning clearly"
	case Prerequisite:
		return "gap in knowledge this step builds on"
	case Metacognitive:
		return "not monitoring or checking own reasoning"
	}
	return "unknown"
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// voteTotals returns summed vote confidence per type, heaviest first.
func voteTotals(votes []Vote) []Vote {
	sums := make(map[MistakeType]float64)
	for _, v := range votes {
		sums[v.Type] += v.Confidence
	}
	out := make([]Vote, 0, len(sums))
	for _, t := range AllMistakeTypes {
		if s, ok := sums[t]; ok {
			out = append(out, Vote{Type: t, Confidence: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
