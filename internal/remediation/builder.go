// Package remediation builds deterministic action plans for a classified
// mistake.
package remediation

import (
	"fmt"

	"github.com/abhisek/stepwise/internal/diagnosis"
)

// Immediate holds what to do right now.
type Immediate struct {
	Actions      []string `json:"actions"`
	Explanations []string `json:"explanations"`
	Examples     []string `json:"examples"`
}

// ShortTerm holds what to work on in the next sessions.
type ShortTerm struct {
	Practice []string `json:"practice"`
	Concepts []string `json:"concepts"`
	Skills   []string `json:"skills"`
}

// LongTerm holds ongoing recommendations.
type LongTerm struct {
	Recommendations []string `json:"recommendations"`
	Resources       []string `json:"resources"`
	Monitoring      []string `json:"monitoring"`
}

// Plan is the full remediation strategy for one mistake.
type Plan struct {
	PrimaryType   diagnosis.MistakeType `json:"primary_type"`
	Severity      diagnosis.Severity    `json:"severity"`
	Immediate     Immediate             `json:"immediate"`
	ShortTerm     ShortTerm             `json:"short_term"`
	LongTerm      LongTerm              `json:"long_term"`
	Modifications []string              `json:"modifications"`
}

// Context is the step and session the mistake happened in.
type Context struct {
	Subject       string
	StepTitle     string
	StepNumber    int
	TotalSteps    int
	MistakesSoFar int
}

// Build returns the remediation plan for c. It never returns empty buckets.
func Build(c *diagnosis.Classification, rc Context) *Plan {
	t := templateFor(c.PrimaryType)
	subject := rc.Subject
	if subject == "" {
		subject = "this topic"
	}

	p := &Plan{
		PrimaryType: c.PrimaryType,
		Severity:    c.Severity,
		Immediate: Immediate{
			Actions:      clone(t.actions),
			Explanations: clone(t.explanations),
			Examples:     clone(t.examples),
		},
		ShortTerm: ShortTerm{
			Practice: []string{fmt.Sprintf(t.practice, subject)},
			Concepts: clone(t.concepts),
			Skills:   clone(t.skills),
		},
		LongTerm: LongTerm{
			Recommendations: clone(t.recommendations),
			Resources:       clone(t.resources),
			Monitoring:      []string{fmt.Sprintf("Track %s mistakes across the next sessions", c.PrimaryType)},
		},
		Modifications: clone(t.modifications),
	}

	if len(c.Misconceptions) > 0 {
		p.Immediate.Explanations = append(p.Immediate.Explanations,
			fmt.Sprintf("Address the misconception directly: %s", c.Misconceptions[0]))
	}
	if rc.StepTitle != "" {
		p.ShortTerm.Practice = append(p.ShortTerm.Practice,
			fmt.Sprintf("Repeat a problem like %q with different numbers", rc.StepTitle))
	}

	switch c.Severity {
	case diagnosis.SeverityCritical:
		p.Modifications = append(p.Modifications,
			"Pause new material and rebuild the foundation first",
			"Provide a fully worked example before the next attempt")
		p.LongTerm.Monitoring = append(p.LongTerm.Monitoring, "Schedule a check-in with the teacher")
	case diagnosis.SeverityHigh:
		p.Modifications = append(p.Modifications, "Provide a partially worked example")
	case diagnosis.SeverityMedium, diagnosis.SeverityLow:
	}
	if rc.MistakesSoFar >= 3 {
		p.Modifications = append(p.Modifications, "Slow the pace and revisit the previous step before continuing")
	}
	if rc.TotalSteps > 0 && rc.StepNumber == rc.TotalSteps {
		p.LongTerm.Recommendations = append(p.LongTerm.Recommendations, "Review the whole problem once the final step is done")
	}
	return p
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
