package questioning

import "github.com/abhisek/stepwise/internal/diagnosis"

type questionTemplate struct {
	text    string
	purpose string
}

// diagnosticTemplates returns the two diagnostic questions for a type.
func diagnosticTemplates(t diagnosis.MistakeType) []questionTemplate {
	switch t {
	case diagnosis.Conceptual:
		return []questionTemplate{
			{"Can you explain in your own words what this step is asking you to find?", "surface the student's mental model"},
			{"Which idea or rule do you think applies here, and why?", "check which concept is being applied"},
		}
	case diagnosis.Procedural:
		return []questionTemplate{
			{"Can you walk me through the steps you took, one at a time?", "locate the step where the procedure broke"},
			{"Which step did you do first, and what made you start there?", "check the order of operations"},
		}
	case diagnosis.Computational:
		return []questionTemplate{
			{"Can you show me how you calculated that number?", "expose the calculation"},
			{"If you estimate the answer roughly, is your result close?", "build an estimation check"},
		}
	case diagnosis.Strategic:
		return []questionTemplate{
			{"What was your plan before you started working?", "make the chosen strategy explicit"},
			{"Is there another way you could approach this problem?", "open alternative strategies"},
		}
	case diagnosis.Careless:
		return []questionTemplate{
			{"Can you read your answer again and check each part?", "prompt self-review"},
			{"Does your answer match exactly what the question asked for?", "compare answer against the question"},
		}
	case diagnosis.Communication:
		return []questionTemplate{
			{"Can you explain your thinking in a full sentence or two?", "elicit the reasoning behind the answer"},
			{"How would you explain this to a classmate who missed the lesson?", "practice clear explanation"},
		}
	case diagnosis.Prerequisite:
		return []questionTemplate{
			{"What do you already know that might help with this step?", "activate prior knowledge"},
			{"Is there a term or idea in the question that feels unfamiliar?", "find the missing prerequisite"},
		}
	case diagnosis.Metacognitive:
		return []questionTemplate{
			{"How sure are you about your answer, and why?", "calibrate confidence"},
			{"How could you check whether your answer makes sense?", "introduce a verification habit"},
		}
	}
	return nil
}

// probingQuestion is the single canned probe for a mistake type.
func probingQuestion(t diagnosis.MistakeType) questionTemplate {
	switch t {
	case diagnosis.Conceptual:
		return questionTemplate{"What would change if the key idea in this step worked differently?", "test the concept from another angle"}
	case diagnosis.Procedural:
		return questionTemplate{"What should the very next step be after setting up the problem?", "rebuild the procedure"}
	case diagnosis.Computational:
		return questionTemplate{"Let's double-check this calculation step by step. What do you get for the first part?", "recompute carefully"}
	case diagnosis.Strategic:
		return questionTemplate{"Could drawing a picture or making a table make this easier?", "suggest a representation"}
	case diagnosis.Careless:
		return questionTemplate{"Which part of your answer would you double-check first?", "target the slip"}
	case diagnosis.Communication:
		return questionTemplate{"Which word or symbol in your answer carries the most meaning?", "sharpen precision"}
	case diagnosis.Prerequisite:
		return questionTemplate{"Can you solve a simpler version of this problem first?", "bridge the prerequisite"}
	case diagnosis.Metacognitive:
		return questionTemplate{"What is one sign that tells you an answer might be wrong?", "notice warning signs"}
	}
	return questionTemplate{}
}

var (
	reflectLearned   = questionTemplate{"What did you learn from working through this step?", "consolidate learning"}
	reflectDifferent = questionTemplate{"How will you approach a problem like this differently next time?", "transfer to future problems"}
	selfMonitoring   = questionTemplate{"How could you check your work before moving on to the next step?", "build self-monitoring"}
)
