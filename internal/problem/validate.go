package problem

import "fmt"

// ValidationError describes why a template was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template %s: %s", e.Field, e.Message)
}

var validStepTypes = map[StepType]bool{
	StepFreeResponse: true,
	StepCalculation:  true,
	StepExplanation:  true,
	StepShortAnswer:  true,
}

// Validate checks required fields and length limits.
func Validate(t *Template) error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Message: "is empty"}
	}
	if t.Title == "" {
		return &ValidationError{Field: "title", Message: "is empty"}
	}
	if len(t.Steps) == 0 {
		return &ValidationError{Field: "steps", Message: "must contain at least one step"}
	}
	for i, s := range t.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if s.Prompt == "" {
			return &ValidationError{Field: field + ".prompt", Message: "is empty"}
		}
		if len(s.Prompt) > 2000 {
			return &ValidationError{Field: field + ".prompt", Message: "exceeds 2000 characters"}
		}
		if !validStepTypes[s.Type] {
			return &ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown step type %q", s.Type)}
		}
	}
	return nil
}
