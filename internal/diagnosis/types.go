package diagnosis

import "fmt"

// MistakeType classifies why a response was wrong.
type MistakeType string

const (
	Conceptual    MistakeType = "conceptual"
	Procedural    MistakeType = "procedural"
	Computational MistakeType = "computational"
	Strategic     MistakeType = "strategic"
	Careless      MistakeType = "careless"
	Communication MistakeType = "communication"
	Prerequisite  MistakeType = "prerequisite"
	Metacognitive MistakeType = "metacognitive"
)

// AllMistakeTypes lists every mistake type in declaration order.
var AllMistakeTypes = []MistakeType{
	Conceptual, Procedural, Computational, Strategic,
	Careless, Communication, Prerequisite, Metacognitive,
}

// ParseMistakeType converts a string into a MistakeType.
func ParseMistakeType(s string) (MistakeType, error) {
	for _, t := range AllMistakeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown mistake type %q", s)
}

// UnmarshalText lets rule files name types as plain strings.
func (t *MistakeType) UnmarshalText(b []byte) error {
	v, err := ParseMistakeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Severity is an ordinal measure of how fundamental a mistake is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from 0 (low) to 3 (critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Input is everything the classifier looks at for one response.
type Input struct {
	Response   string
	Expected   string
	Prompt     string
	Keywords   []string
	Subject    string
	Difficulty int
}

// Classification is the structured diagnosis of a wrong response.
type Classification struct {
	PrimaryType    MistakeType `json:"primary_type"`
	Severity       Severity    `json:"severity"`
	Confidence     float64     `json:"confidence"`
	Indicators     []string    `json:"indicators"`
	Misconceptions []string    `json:"misconceptions"`
	RootCauses     []string    `json:"root_causes"`
}

// Vote is one piece of evidence for a mistake type.
type Vote struct {
	Type       MistakeType
	Confidence float64
	Source     string
}

// Evidence is the output of a single analysis pass.
type Evidence struct {
	Votes          []Vote
	Indicators     []string
	Misconceptions []string
	Confidence     float64
}

func (e *Evidence) empty() bool {
	return e == nil || (len(e.Votes) == 0 && len(e.Indicators) == 0)
}
