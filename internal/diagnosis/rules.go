package diagnosis

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Family groups subjects that share analysis rules.
type Family string

const (
	FamilyMath    Family = "math"
	FamilyScience Family = "science"
	FamilyWriting Family = "writing"
	FamilyGeneral Family = "general"
)

// FamilyOf maps a free-form subject name to its family.
func FamilyOf(subject string) Family {
	s := strings.ToLower(strings.TrimSpace(subject))
	switch {
	case containsAny(s, "math", "algebra", "geometry", "arithmetic", "calculus", "statistic", "fraction"):
		return FamilyMath
	case containsAny(s, "science", "physics", "chemistry", "biology"):
		return FamilyScience
	case containsAny(s, "writing", "english", "language arts", "literature", "essay", "grammar"):
		return FamilyWriting
	}
	return FamilyGeneral
}

// PatternRule is one declarative entry of the rule table.
type PatternRule struct {
	Name          string      `yaml:"name"`
	Pattern       string      `yaml:"pattern"`
	Absent        bool        `yaml:"absent"`
	MinWords      int         `yaml:"min_words"`
	Type          MistakeType `yaml:"type"`
	Confidence    float64     `yaml:"confidence"`
	Indicators    []string    `yaml:"indicators"`
	Misconception string      `yaml:"misconception"`

	re *regexp.Regexp
}

// Matches reports whether the rule fires for response.
func (r *PatternRule) Matches(response string) bool {
	if r.MinWords > 0 && len(strings.Fields(response)) < r.MinWords {
		return false
	}
	return r.re.MatchString(response) != r.Absent
}

// RuleSet is the compiled rule table, keyed by subject family.
type RuleSet struct {
	rules map[Family][]*PatternRule
}

// For returns the rules that apply to a family: the family's own rules
// followed by the general ones.
func (rs *RuleSet) For(f Family) []*PatternRule {
	if f == FamilyGeneral {
		return rs.rules[FamilyGeneral]
	}
	out := make([]*PatternRule, 0, len(rs.rules[f])+len(rs.rules[FamilyGeneral]))
	out = append(out, rs.rules[f]...)
	return append(out, rs.rules[FamilyGeneral]...)
}

// Len returns the total number of rules.
func (rs *RuleSet) Len() int {
	n := 0
	for _, rules := range rs.rules {
		n += len(rules)
	}
	return n
}

// ParseRules decodes and compiles a YAML rule table.
func ParseRules(data []byte) (*RuleSet, error) {
	var raw map[Family][]*PatternRule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rs := &RuleSet{rules: make(map[Family][]*PatternRule, len(raw))}
	for family, rules := range raw {
		switch family {
		case FamilyMath, FamilyScience, FamilyWriting, FamilyGeneral:
		default:
			return nil, fmt.Errorf("rules: unknown subject family %q", family)
		}
		for i, r := range rules {
			if r.Name == "" {
				return nil, fmt.Errorf("rules: %s[%d] has no name", family, i)
			}
			if r.Type == "" {
				return nil, fmt.Errorf("rules: %s/%s has no type", family, r.Name)
			}
			if r.Confidence <= 0 || r.Confidence > 1 {
				return nil, fmt.Errorf("rules: %s/%s confidence %v out of range (0,1]", family, r.Name, r.Confidence)
			}
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rules: %s/%s: %w", family, r.Name, err)
			}
			r.re = re
		}
		rs.rules[family] = rules
	}
	return rs, nil
}

// DefaultRules returns the embedded rule table.
func DefaultRules() *RuleSet {
	rs, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(err)
	}
	return rs
}

// LoadRules reads a rule table from path, or returns the embedded table when
// path is empty.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
