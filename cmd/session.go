package cmd

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/ui/theme"
)

var startCmd = &cobra.Command{
	Use:   "start <template-id>",
	Short: "Start a problem session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := studentID()
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		st, err := a.Engine.StartSession(cmd.Context(), student, args[0])
		if err != nil {
			return err
		}
		renderState(cmd.OutOrStdout(), st)
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <session-id> [response...]",
	Short: "Submit a response to the current step",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step, _ := cmd.Flags().GetInt("step")
		askHelp, _ := cmd.Flags().GetBool("ask-help")
		student, err := studentID()
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		ctx := cmd.Context()
		if step == 0 {
			st, err := a.Engine.GetSessionState(ctx, args[0], student)
			if err != nil {
				return err
			}
			step = st.Session.CurrentStep
		}

		out, err := a.Engine.SubmitStepResponse(ctx, session.SubmitInput{
			SessionID:   args[0],
			StudentID:   student,
			StepNumber:  step,
			Response:    strings.Join(args[1:], " "),
			RequestHelp: askHelp,
		})
		if err != nil {
			return err
		}
		renderSubmit(cmd.OutOrStdout(), out)
		return nil
	},
}

var hintCmd = &cobra.Command{
	Use:   "hint <session-id>",
	Short: "Ask for a hint on the current step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetInt("level")
		student, err := studentID()
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		out, err := a.Engine.RequestHint(cmd.Context(), args[0], student, level)
		if err != nil {
			return err
		}
		renderIntervention(cmd.OutOrStdout(), out.Intervention)
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <session-id> <reply...>",
	Short: "Answer the open guided question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := studentID()
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		out, err := a.Engine.AnswerGuidedQuestion(cmd.Context(), args[0], student, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if out.Done {
			lipgloss.Fprintln(w, theme.Correct.Render("That's all the questions. Try the step again."))
			return nil
		}
		lipgloss.Fprintln(w, theme.Question.Render("? "+out.Next.Text))
		lipgloss.Fprintln(w, theme.Hint.Render(fmt.Sprintf("%s · %d left", strings.ReplaceAll(string(out.Phase), "_", " "), out.Remaining)))
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <session-id>",
	Short: "Show a session's progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := studentID()
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		st, err := a.Engine.GetSessionState(cmd.Context(), args[0], student)
		if err != nil {
			return err
		}
		renderState(cmd.OutOrStdout(), st)
		return nil
	},
}

func lifecycleCmd(use, short string, run func(e *session.Engine, cmd *cobra.Command, id, student string) (*store.Session, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := studentID()
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			sess, err := run(a.Engine, cmd, args[0], student)
			if err != nil {
				return err
			}
			renderSessionHeader(cmd.OutOrStdout(), sess)
			return nil
		},
	}
}

var (
	pauseCmd = lifecycleCmd("pause", "Pause an active session", func(e *session.Engine, cmd *cobra.Command, id, student string) (*store.Session, error) {
		return e.PauseSession(cmd.Context(), id, student)
	})
	resumeCmd = lifecycleCmd("resume", "Resume a paused session", func(e *session.Engine, cmd *cobra.Command, id, student string) (*store.Session, error) {
		return e.ResumeSession(cmd.Context(), id, student)
	})
	abandonCmd = lifecycleCmd("abandon", "Abandon a session", func(e *session.Engine, cmd *cobra.Command, id, student string) (*store.Session, error) {
		return e.AbandonSession(cmd.Context(), id, student)
	})
)

func init() {
	submitCmd.Flags().Int("step", 0, "Step number being answered (default: the current step)")
	submitCmd.Flags().Bool("ask-help", false, "Ask for help with this response")
	hintCmd.Flags().IntP("level", "l", 1, "Hint level: 1 gentle, 2 specific, 3 directive")
}
