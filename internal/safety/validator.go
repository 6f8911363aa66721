package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ValidationContext describes where a response was given.
type ValidationContext struct {
	Subject  string
	StepType string
	Prompt   string
}

// Violation is one rule a response broke.
type Violation struct {
	Rule    string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// ValidationResult is the outcome of validating a response. Improved is
// empty when no cleaned-up version could be produced.
type ValidationResult struct {
	Violations []Violation
	Improved   string
}

// HasViolations reports whether any rule was broken.
func (r *ValidationResult) HasViolations() bool {
	return r != nil && len(r.Violations) > 0
}

// Validator checks a student response for formatting problems that would
// skew analysis and may offer a cleaned-up version.
type Validator interface {
	ValidateResponse(ctx context.Context, text string, vc ValidationContext) (*ValidationResult, error)
}

// MaxResponseChars bounds the text that reaches the analyzer.
const MaxResponseChars = 2000

var controlRun = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]+`)

// maxRun is the longest run of one non-space character left untouched.
const maxRun = 5

// StructuralValidator applies cheap text rules: control characters, runs of
// a repeated character, excessive length, and shouting in all caps.
type StructuralValidator struct{}

func (v *StructuralValidator) ValidateResponse(_ context.Context, text string, _ ValidationContext) (*ValidationResult, error) {
	res := &ValidationResult{}
	improved := text

	if controlRun.MatchString(improved) {
		res.Violations = append(res.Violations, Violation{Rule: "control-characters", Message: "response contains control characters"})
		improved = controlRun.ReplaceAllString(improved, "")
	}
	if collapsed, changed := collapseRuns(improved); changed {
		res.Violations = append(res.Violations, Violation{Rule: "repeated-characters", Message: "response contains long runs of one character"})
		improved = collapsed
	}
	if len(improved) > MaxResponseChars {
		res.Violations = append(res.Violations, Violation{
			Rule:    "too-long",
			Message: fmt.Sprintf("response exceeds %d characters", MaxResponseChars),
		})
		improved = truncateRunes(improved, MaxResponseChars)
	}
	if isShouting(improved) {
		res.Violations = append(res.Violations, Violation{Rule: "all-caps", Message: "response is written in capitals"})
		improved = strings.ToLower(improved)
	}

	if res.HasViolations() {
		res.Improved = strings.TrimSpace(improved)
	}
	return res, nil
}

func isShouting(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 12 && upper == letters
}

// collapseRuns shortens every run of more than maxRun identical non-space
// runes to three.
func collapseRuns(s string) (string, bool) {
	var b strings.Builder
	changed := false
	runes := []rune(s)
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		n := j - i
		if n > maxRun && !unicode.IsSpace(runes[i]) {
			n = 3
			changed = true
		}
		for k := 0; k < n; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String(), changed
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
