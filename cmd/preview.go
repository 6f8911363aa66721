package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/app"
	"github.com/abhisek/stepwise/internal/problem"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/ui/theme"
)

var previewCmd = &cobra.Command{
	Use:   "preview <template-file>",
	Short: "Work through a template interactively (scratch database)",
	Long: `Load a template file and work through it from the terminal.

This is an authoring tool: the session lives in a throwaway database, so
nothing is written to the configured one. Type a response to submit it, or:

  /help           ask for help on the current step
  /hint [1-3]     request a hint
  /answer <text>  reply to the open guided question
  /state          show progress
  /quit           stop`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	tmpl, err := problem.LoadFile(args[0])
	if err != nil {
		return err
	}
	tmpl.Active = true

	dir, err := os.MkdirTemp("", "stepwise-preview-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scratch := *cfg
	scratch.DB = filepath.Join(dir, "preview.db")
	scratch.AMQPURL = ""
	a, err := app.Open(cmd.Context(), &scratch, logger)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmd.Context()
	if err := a.Store.TemplateRepo().SaveTemplate(ctx, tmpl); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	const student = "preview"
	st, err := a.Engine.StartSession(ctx, student, tmpl.ID)
	if err != nil {
		return err
	}
	id := st.Session.ID
	w := cmd.OutOrStdout()
	renderState(w, st)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(w, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(w, "\n(input closed)")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var cmdErr error
		switch verb, rest, _ := strings.Cut(line, " "); verb {
		case "/quit":
			return nil
		case "/state":
			st, cmdErr = a.Engine.GetSessionState(ctx, id, student)
			if cmdErr == nil {
				renderState(w, st)
			}
		case "/hint":
			level := 1
			if rest != "" {
				if level, cmdErr = strconv.Atoi(rest); cmdErr != nil {
					cmdErr = fmt.Errorf("hint level %q is not a number", rest)
					break
				}
			}
			var out *session.HintResult
			if out, cmdErr = a.Engine.RequestHint(ctx, id, student, level); cmdErr == nil {
				renderIntervention(w, out.Intervention)
			}
		case "/answer":
			var out *session.GuidedAnswer
			if out, cmdErr = a.Engine.AnswerGuidedQuestion(ctx, id, student, rest); cmdErr == nil {
				if out.Done {
					lipgloss.Fprintln(w, theme.Correct.Render("That's all the questions. Try the step again."))
				} else {
					lipgloss.Fprintln(w, theme.Question.Render("? "+out.Next.Text))
				}
			}
		default:
			in := session.SubmitInput{SessionID: id, StudentID: student, Response: line}
			if verb == "/help" {
				in.Response, in.RequestHelp = rest, true
			}
			cmdErr = previewSubmit(cmd, a, &in)
			if cmdErr == nil && in.StepNumber == 0 {
				return nil
			}
		}
		if cmdErr != nil {
			lipgloss.Fprintln(w, theme.Incorrect.Render("✗ "+cmdErr.Error()))
		}
	}
}

// previewSubmit submits in against the current step. It clears
// in.StepNumber once the session is over.
func previewSubmit(cmd *cobra.Command, a *app.App, in *session.SubmitInput) error {
	ctx := cmd.Context()
	st, err := a.Engine.GetSessionState(ctx, in.SessionID, in.StudentID)
	if err != nil {
		return err
	}
	in.StepNumber = st.Session.CurrentStep
	out, err := a.Engine.SubmitStepResponse(ctx, *in)
	if err != nil {
		return err
	}
	renderSubmit(cmd.OutOrStdout(), out)
	if out.Session.Status == store.StatusCompleted {
		in.StepNumber = 0
	}
	return nil
}
