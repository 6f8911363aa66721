package diagnosis

import (
	"regexp"
	"strconv"
	"strings"
)

// SubjectAnalyzer runs checks specific to the subject family.
type SubjectAnalyzer struct{}

func (a *SubjectAnalyzer) Name() string { return "subject" }

func (a *SubjectAnalyzer) Analyze(in *Input) *Evidence {
	var ev *Evidence
	switch FamilyOf(in.Subject) {
	case FamilyMath:
		ev = analyzeMath(in)
	case FamilyScience:
		ev = analyzeScience(in)
	case FamilyWriting:
		ev = analyzeWriting(in)
	case FamilyGeneral:
		ev = analyzeGeneral(in)
	}
	if ev.empty() {
		return nil
	}
	return ev
}

var (
	// a op b = c
	binaryEq = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*([-+*/x×÷])\s*(-?\d+(?:\.\d+)?)\s*=\s*(-?\d+(?:\.\d+)?)`)
	// a op b op c = d
	ternaryEq = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*([-+*/x×÷])\s*(-?\d+(?:\.\d+)?)\s*([-+*/x×÷])\s*(-?\d+(?:\.\d+)?)\s*=\s*(-?\d+(?:\.\d+)?)`)
)

func analyzeMath(in *Input) *Evidence {
	ev := &Evidence{}

	// Order of operations: a + b * c written with the left-to-right result.
	ternaries := ternaryEq.FindAllStringSubmatch(in.Response, -1)
	for _, m := range ternaries {
		a, b, c, got := num(m[1]), num(m[3]), num(m[5]), num(m[6])
		op1, op2 := m[2], m[4]
		correct, ok1 := evalPrecedence(a, op1, b, op2, c)
		leftToRight, ok2 := apply(a, op1, b)
		if ok2 {
			leftToRight, ok2 = apply(leftToRight, op2, c)
		}
		if !ok1 || !ok2 || approxEqual(got, correct) {
			continue
		}
		if approxEqual(got, leftToRight) {
			ev.Votes = append(ev.Votes, Vote{Type: Procedural, Confidence: 0.8, Source: "subject:order-of-operations"})
			ev.Indicators = append(ev.Indicators, "procedural_error")
			ev.Misconceptions = append(ev.Misconceptions, "operations applied left to right instead of by precedence")
			ev.Confidence = max(ev.Confidence, 0.8)
		} else {
			ev.Votes = append(ev.Votes, Vote{Type: Computational, Confidence: 0.6, Source: "subject:arithmetic"})
			ev.Indicators = append(ev.Indicators, "computational_error")
			ev.Confidence = max(ev.Confidence, 0.6)
		}
	}

	// Simple a op b = c statements that do not hold.
	if len(ternaries) == 0 {
		for _, m := range binaryEq.FindAllStringSubmatch(in.Response, -1) {
			want, ok := apply(num(m[1]), m[2], num(m[3]))
			if !ok || approxEqual(want, num(m[4])) {
				continue
			}
			ev.Votes = append(ev.Votes, Vote{Type: Computational, Confidence: 0.7, Source: "subject:arithmetic"})
			ev.Indicators = append(ev.Indicators, "computational_error")
			ev.Confidence = max(ev.Confidence, 0.7)
		}
	}
	return ev
}

var (
	numberWithUnit = regexp.MustCompile(`(?i)\d(?:\.\d+)?\s*(m/s²|m/s\^?2|m/s|km/h|kg|km|cm|mm|mol|°c|°f|ml|[mgsnjkl]|w|v|pa|hz)\b`)
	bareNumber     = regexp.MustCompile(`\d`)
)

func analyzeScience(in *Input) *Evidence {
	ev := &Evidence{}
	if numberWithUnit.MatchString(in.Expected) && bareNumber.MatchString(in.Response) && !numberWithUnit.MatchString(in.Response) {
		ev.Votes = append(ev.Votes, Vote{Type: Careless, Confidence: 0.6, Source: "subject:missing-units"})
		ev.Indicators = append(ev.Indicators, "missing_units")
		ev.Confidence = 0.6
	}
	lower := strings.ToLower(in.Response)
	if strings.Contains(lower, "correlat") && strings.Contains(lower, "cause") {
		ev.Votes = append(ev.Votes, Vote{Type: Conceptual, Confidence: 0.5, Source: "subject:correlation-causation"})
		ev.Indicators = append(ev.Indicators, "conceptual_gap")
		ev.Misconceptions = append(ev.Misconceptions, "correlation read as causation")
		ev.Confidence = max(ev.Confidence, 0.5)
	}
	return ev
}

var transitionWords = regexp.MustCompile(`(?i)\b(however|therefore|because|first|second|finally|in addition|for example|as a result|moreover|then|also)\b`)

func analyzeWriting(in *Input) *Evidence {
	ev := &Evidence{}
	if countSentences(in.Response) >= 3 && !transitionWords.MatchString(in.Response) {
		ev.Votes = append(ev.Votes, Vote{Type: Communication, Confidence: 0.5, Source: "subject:missing-transitions"})
		ev.Indicators = append(ev.Indicators, "missing_transitions")
		ev.Confidence = 0.5
	}
	words := Words(in.Response)
	if len(words) >= 20 {
		seen := make(map[string]int)
		for _, w := range words {
			if len(w) > 3 {
				seen[w]++
			}
		}
		for _, n := range seen {
			if n*5 > len(words) {
				ev.Votes = append(ev.Votes, Vote{Type: Communication, Confidence: 0.3, Source: "subject:repetition"})
				ev.Indicators = append(ev.Indicators, "repetitive_wording")
				ev.Confidence = max(ev.Confidence, 0.3)
				break
			}
		}
	}
	return ev
}

func analyzeGeneral(in *Input) *Evidence {
	ev := &Evidence{}
	if in.Prompt != "" && len(Words(in.Response)) >= 4 {
		// Copying the prompt back is not an answer.
		if strings.EqualFold(strings.TrimSpace(in.Response), strings.TrimSpace(in.Prompt)) {
			ev.Votes = append(ev.Votes, Vote{Type: Metacognitive, Confidence: 0.6, Source: "subject:restated-prompt"})
			ev.Indicators = append(ev.Indicators, "incomplete_response")
			ev.Confidence = 0.6
		}
	}
	return ev
}

func num(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func apply(a float64, op string, b float64) (float64, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*", "x", "×":
		return a * b, true
	case "/", "÷":
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}

func isMulDiv(op string) bool {
	return op == "*" || op == "x" || op == "×" || op == "/" || op == "÷"
}

func evalPrecedence(a float64, op1 string, b float64, op2 string, c float64) (float64, bool) {
	if isMulDiv(op2) && !isMulDiv(op1) {
		bc, ok := apply(b, op2, c)
		if !ok {
			return 0, false
		}
		return apply(a, op1, bc)
	}
	ab, ok := apply(a, op1, b)
	if !ok {
		return 0, false
	}
	return apply(ab, op2, c)
}

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
