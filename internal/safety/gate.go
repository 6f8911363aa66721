package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of screening one piece of student text.
type Verdict struct {
	Safe   bool
	Reason string
	// Gate names the gate that produced the verdict.
	Gate string
}

// Gate pre-screens student text before any analysis runs. An error means
// the gate could not decide; callers must treat that as unsafe.
type Gate interface {
	CheckContent(ctx context.Context, text string) (Verdict, error)
}

// Rule is a single blocked-content pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Reason  string
}

// RuleGate blocks text matching any of a fixed set of patterns. It needs no
// network access and is the default gate.
type RuleGate struct {
	rules []Rule
}

// defaultRules covers content a tutoring exchange should never carry.
var defaultRules = []struct {
	name, pattern, reason string
}{
	{"self-harm", `(?i)\b(kill|hurt|harm)\s+(my\s*self|myself)\b|\bsuicid`, "possible self-harm language"},
	{"violence", `(?i)\b(i('ll| will)|gonna)\s+(kill|shoot|stab)\b`, "threat of violence"},
	{"profanity", `(?i)\b(fuck\w*|shit\w*|bitch\w*|cunt\w*)\b`, "profanity"},
	{"contact-info", `(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}|\b\d{3}[\s.\-]?\d{3}[\s.\-]?\d{4}\b`, "personal contact information"},
	{"prompt-injection", `(?i)\bignore (all |the )?(previous|prior|above) (instructions|prompts?)\b`, "attempt to override tutor instructions"},
}

// NewRuleGate compiles the default rules plus any extra patterns. Extra
// patterns are named "custom-N".
func NewRuleGate(extra ...string) (*RuleGate, error) {
	g := &RuleGate{}
	for _, r := range defaultRules {
		g.rules = append(g.rules, Rule{Name: r.name, Pattern: regexp.MustCompile(r.pattern), Reason: r.reason})
	}
	for i, p := range extra {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile blocked pattern %q: %w", p, err)
		}
		g.rules = append(g.rules, Rule{
			Name:    fmt.Sprintf("custom-%d", i+1),
			Pattern: re,
			Reason:  "blocked by configured pattern",
		})
	}
	return g, nil
}

func (g *RuleGate) CheckContent(_ context.Context, text string) (Verdict, error) {
	text = normalizeForScreening(text)
	for _, r := range g.rules {
		if r.Pattern.MatchString(text) {
			return Verdict{Safe: false, Reason: r.Reason, Gate: "rules:" + r.Name}, nil
		}
	}
	return Verdict{Safe: true, Gate: "rules"}, nil
}

// ChainGate runs gates in order and stops at the first unsafe verdict or
// error.
type ChainGate []Gate

func (c ChainGate) CheckContent(ctx context.Context, text string) (Verdict, error) {
	last := Verdict{Safe: true, Gate: "chain"}
	for _, g := range c {
		v, err := g.CheckContent(ctx, text)
		if err != nil {
			return Verdict{Safe: false, Reason: "safety check failed", Gate: v.Gate}, err
		}
		if !v.Safe {
			return v, nil
		}
		last = v
	}
	return last, nil
}

// AllowAll approves everything. Used in tests and when screening is
// disabled by configuration.
type AllowAll struct{}

func (AllowAll) CheckContent(context.Context, string) (Verdict, error) {
	return Verdict{Safe: true, Gate: "allow-all"}, nil
}

// normalizeForScreening trims and collapses whitespace so patterns do not
// have to deal with layout tricks.
func normalizeForScreening(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
