package scaffold

import "text/template"

const scaffoldSystemPrompt = `You are a warm, patient tutor helping a student work through a multi-step problem.
Never give the final answer. Reply with two or three short sentences that help the student take the next step on their own.`

const introSystemPrompt = `You are a warm, patient tutor. Introduce the next step of a problem in one or two sentences.
Encourage the student and point them at what to think about first. Do not solve the step.`

const hintSystemPrompt = `You are a patient tutor giving a hint. Level 1 is a gentle nudge, level 2 points at the key idea, level 3 walks through the first part of the step.
Never state the final answer. Reply with at most three sentences.`

var scaffoldTemplate = template.Must(template.New("scaffold").Parse(`{{if .TemplateTitle}}Problem: {{.TemplateTitle}}
{{end}}Subject: {{.Subject}}
Step {{.StepNumber}} of {{.TotalSteps}}: {{.Prompt}}
Student's answer: {{.Response}}
Assessment: {{.Quality}}
Reason for help: {{.Trigger}}
Hints so far: {{.HintsRequested}}, mistakes so far: {{.MistakesMade}}`))

var introTemplate = template.Must(template.New("intro").Parse(`{{if .TemplateTitle}}Problem: {{.TemplateTitle}}
{{end}}Subject: {{.Subject}}
Step {{.StepNumber}} of {{.TotalSteps}}{{if .StepTitle}} ({{.StepTitle}}){{end}}: {{.Prompt}}`))

var hintTemplate = template.Must(template.New("hint").Parse(`Subject: {{.Subject}}
Step {{.StepNumber}} of {{.TotalSteps}}: {{.Prompt}}
{{- if .Keywords}}
Key ideas: {{range $i, $k := .Keywords}}{{if $i}}, {{end}}{{$k}}{{end}}
{{- end}}
Hint level: {{.Level}}
Hints so far: {{.HintsRequested}}`))
