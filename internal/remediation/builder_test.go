package remediation

import (
	"reflect"
	"slices"
	"testing"

	"github.com/abhisek/stepwise/internal/diagnosis"
)

func TestBuild_AllBucketsPopulated(t *testing.T) {
	for _, mt := range diagnosis.AllMistakeTypes {
		p := Build(&diagnosis.Classification{PrimaryType: mt, Severity: diagnosis.SeverityLow}, Context{})

		if p.PrimaryType != mt {
			t.Errorf("%s: primary type = %s", mt, p.PrimaryType)
		}
		buckets := map[string][]string{
			"immediate actions":         p.Immediate.Actions,
			"immediate explanations":    p.Immediate.Explanations,
			"immediate examples":        p.Immediate.Examples,
			"short-term practice":       p.ShortTerm.Practice,
			"short-term concepts":       p.ShortTerm.Concepts,
			"short-term skills":         p.ShortTerm.Skills,
			"long-term recommendations": p.LongTerm.Recommendations,
			"long-term resources":       p.LongTerm.Resources,
			"long-term monitoring":      p.LongTerm.Monitoring,
			"modifications":             p.Modifications,
		}
		for name, items := range buckets {
			if len(items) == 0 {
				t.Errorf("%s: %s is empty", mt, name)
			}
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	c := &diagnosis.Classification{PrimaryType: diagnosis.Procedural, Severity: diagnosis.SeverityHigh}
	rc := Context{Subject: "math", StepTitle: "Find a common denominator", StepNumber: 2, TotalSteps: 4}
	if a, b := Build(c, rc), Build(c, rc); !reflect.DeepEqual(a, b) {
		t.Errorf("Build is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestBuild_ContextAndSeverity(t *testing.T) {
	c := &diagnosis.Classification{
		PrimaryType:    diagnosis.Procedural,
		Severity:       diagnosis.SeverityCritical,
		Misconceptions: []string{"operations applied left to right"},
	}
	p := Build(c, Context{Subject: "algebra", StepTitle: "Simplify", StepNumber: 3, TotalSteps: 3, MistakesSoFar: 4})

	tests := []struct {
		bucket string
		items  []string
		want   string
	}{
		{"modifications", p.Modifications, "Break into smaller steps"},
		{"modifications", p.Modifications, "Provide a fully worked example before the next attempt"},
		{"modifications", p.Modifications, "Slow the pace and revisit the previous step before continuing"},
		{"practice", p.ShortTerm.Practice, "Step-by-step drills in algebra"},
		{"practice", p.ShortTerm.Practice, `Repeat a problem like "Simplify" with different numbers`},
		{"explanations", p.Immediate.Explanations, "Address the misconception directly: operations applied left to right"},
		{"recommendations", p.LongTerm.Recommendations, "Review the whole problem once the final step is done"},
	}
	for _, tt := range tests {
		if !slices.Contains(tt.items, tt.want) {
			t.Errorf("%s missing %q: %v", tt.bucket, tt.want, tt.items)
		}
	}
}

func TestBuild_DoesNotShareTemplateSlices(t *testing.T) {
	c := &diagnosis.Classification{PrimaryType: diagnosis.Careless, Severity: diagnosis.SeverityHigh}
	p := Build(c, Context{})
	p.Modifications[0] = "mutated"

	again := Build(c, Context{})
	if got := again.Modifications[0]; got != "Add a review prompt before submission" {
		t.Errorf("modifications[0] = %q after mutating an earlier plan", got)
	}
}
