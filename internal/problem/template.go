package problem

import "strings"

// StepType describes the kind of response a step expects.
type StepType string

const (
	StepFreeResponse StepType = "free_response"
	StepCalculation  StepType = "calculation"
	StepExplanation  StepType = "explanation"
	StepShortAnswer  StepType = "short_answer"
)

// Template is authored problem content. The engine treats it as read-only.
type Template struct {
	ID         string `yaml:"id" json:"id"`
	Title      string `yaml:"title" json:"title"`
	Subject    string `yaml:"subject" json:"subject"`
	Difficulty string `yaml:"difficulty" json:"difficulty"`
	Active     bool   `yaml:"active" json:"active"`
	Steps      []Step `yaml:"steps" json:"steps"`
}

// Step is one authored step definition inside a template.
type Step struct {
	Title            string   `yaml:"title" json:"title"`
	Prompt           string   `yaml:"prompt" json:"prompt"`
	ExpectedResponse string   `yaml:"expected_response,omitempty" json:"expected_response,omitempty"`
	Type             StepType `yaml:"type" json:"type"`
	Keywords         []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// Level maps the authored difficulty to 1 (easy) through 3 (hard). Unknown
// or empty difficulties are 0.
func (t *Template) Level() int {
	switch strings.ToLower(strings.TrimSpace(t.Difficulty)) {
	case "easy", "beginner", "1":
		return 1
	case "medium", "intermediate", "2":
		return 2
	case "hard", "advanced", "3":
		return 3
	}
	return 0
}

// StepAt returns the 1-based step definition, or nil when out of range.
func (t *Template) StepAt(n int) *Step {
	if n < 1 || n > len(t.Steps) {
		return nil
	}
	return &t.Steps[n-1]
}
