package remediation

import "github.com/abhisek/stepwise/internal/diagnosis"

type strategyTemplate struct {
	actions         []string
	explanations    []string
	examples        []string
	practice        string // formatted with the subject
	concepts        []string
	skills          []string
	recommendations []string
	resources       []string
	modifications   []string
}

func templateFor(t diagnosis.MistakeType) strategyTemplate {
	switch t {
	case diagnosis.Conceptual:
		return strategyTemplate{
			actions:         []string{"Revisit the core idea behind this step", "Ask the student to restate the idea in their own words"},
			explanations:    []string{"Explain the concept with a concrete, everyday analogy"},
			examples:        []string{"Show a simple example and a non-example side by side"},
			practice:        "Short concept-check questions in %s",
			concepts:        []string{"The underlying concept of this step"},
			skills:          []string{"Explaining why a rule works"},
			recommendations: []string{"Use multiple representations (words, pictures, symbols)"},
			resources:       []string{"Visual explainer for the concept"},
			modifications:   []string{"Use concrete examples before abstract ones"},
		}
	case diagnosis.Procedural:
		return strategyTemplate{
			actions:         []string{"Break the procedure into numbered steps", "Have the student redo the problem one step at a time"},
			explanations:    []string{"Explain what each step of the procedure accomplishes"},
			examples:        []string{"Walk through a worked example, pausing after each step"},
			practice:        "Step-by-step drills in %s",
			concepts:        []string{"Why the steps happen in this order"},
			skills:          []string{"Following and checking a multi-step procedure"},
			recommendations: []string{"Keep a procedure checklist the student can refer to"},
			resources:       []string{"Worked-example library"},
			modifications:   []string{"Break into smaller steps"},
		}
	case diagnosis.Computational:
		return strategyTemplate{
			actions:         []string{"Recompute the calculation together", "Estimate the answer before calculating"},
			explanations:    []string{"Point out where the arithmetic went off track"},
			examples:        []string{"Show the same calculation laid out vertically"},
			practice:        "Timed-free calculation practice in %s",
			concepts:        []string{"Estimation as a check on exact answers"},
			skills:          []string{"Accurate arithmetic", "Checking with inverse operations"},
			recommendations: []string{"Build a habit of checking answers by estimation"},
			resources:       []string{"Arithmetic fluency exercises"},
			modifications:   []string{"Allow scratch work to be shown"},
		}
	case diagnosis.Strategic:
		return strategyTemplate{
			actions:         []string{"Discuss what the problem is asking before solving", "Compare two possible approaches"},
			explanations:    []string{"Explain why a different approach fits this problem better"},
			examples:        []string{"Show the same problem solved with two strategies"},
			practice:        "Problems in %s that reward choosing a strategy first",
			concepts:        []string{"Matching strategies to problem types"},
			skills:          []string{"Planning before solving"},
			recommendations: []string{"Ask for a plan before every multi-step problem"},
			resources:       []string{"Problem-solving strategy cards"},
			modifications:   []string{"Ask for a plan before the first step"},
		}
	case diagnosis.Careless:
		return strategyTemplate{
			actions:         []string{"Ask the student to reread the answer", "Highlight the part that needs a second look"},
			explanations:    []string{"Reassure that the understanding is there and only the details slipped"},
			examples:        []string{"Show a checklist applied to the answer"},
			practice:        "Accuracy-focused review exercises in %s",
			concepts:        []string{"Reviewing work before submitting"},
			skills:          []string{"Attention to detail"},
			recommendations: []string{"Make a final-check routine part of every answer"},
			resources:       []string{"Self-check checklist"},
			modifications:   []string{"Add a review prompt before submission"},
		}
	case diagnosis.Communication:
		return strategyTemplate{
			actions:         []string{"Ask the student to explain the answer aloud or in full sentences", "Model a clear explanation"},
			explanations:    []string{"Explain what a complete answer includes"},
			examples:        []string{"Show a strong and a weak explanation of the same idea"},
			practice:        "Explain-your-reasoning prompts in %s",
			concepts:        []string{"Precise vocabulary for this topic"},
			skills:          []string{"Structuring a written explanation"},
			recommendations: []string{"Use sentence starters for explanations"},
			resources:       []string{"Vocabulary and sentence-starter sheet"},
			modifications:   []string{"Offer sentence starters"},
		}
	case diagnosis.Prerequisite:
		return strategyTemplate{
			actions:         []string{"Identify the missing prerequisite skill", "Review the prerequisite with a quick example"},
			explanations:    []string{"Connect the prerequisite to the current step"},
			examples:        []string{"Solve a simpler problem that uses only the prerequisite"},
			practice:        "Foundational review in %s",
			concepts:        []string{"The prerequisite concept"},
			skills:          []string{"The earlier skill this step builds on"},
			recommendations: []string{"Sequence future problems so prerequisites come first"},
			resources:       []string{"Prerequisite review module"},
			modifications:   []string{"Insert a review step before continuing"},
		}
	case diagnosis.Metacognitive:
		return strategyTemplate{
			actions:         []string{"Ask the student how confident they are and why", "Model checking an answer out loud"},
			explanations:    []string{"Explain how to tell when an answer might be wrong"},
			examples:        []string{"Show a think-aloud of solving and checking"},
			practice:        "Self-assessment exercises in %s",
			concepts:        []string{"Monitoring one's own understanding"},
			skills:          []string{"Self-checking", "Asking for help at the right time"},
			recommendations: []string{"End each problem with a short reflection"},
			resources:       []string{"Reflection journal prompts"},
			modifications:   []string{"Add reflection prompts after each step"},
		}
	}
	return strategyTemplate{
		actions:         []string{"Review the step together"},
		explanations:    []string{"Explain the goal of the step"},
		examples:        []string{"Show a worked example"},
		practice:        "Additional practice in %s",
		concepts:        []string{"The main idea of this step"},
		skills:          []string{"Working through problems step by step"},
		recommendations: []string{"Continue regular practice"},
		resources:       []string{"General practice set"},
		modifications:   []string{"Break into smaller steps"},
	}
}
