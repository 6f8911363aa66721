package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/problem"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage problem templates",
}

var templateImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import problem templates from YAML or JSON files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inactive, _ := cmd.Flags().GetBool("inactive")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		for _, path := range args {
			tmpl, err := problem.LoadFile(path)
			if err != nil {
				return err
			}
			if inactive {
				tmpl.Active = false
			}
			if err := s.TemplateRepo().SaveTemplate(ctx, tmpl); err != nil {
				return fmt.Errorf("save template %s: %w", tmpl.ID, err)
			}
			logger.Info("imported template", "path", path, "id", tmpl.ID, "steps", len(tmpl.Steps))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d steps)\n", tmpl.ID, len(tmpl.Steps))
		}
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List problem templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		templates, err := s.TemplateRepo().ListTemplates(cmd.Context())
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(templates) == 0 {
			fmt.Fprintln(out, "No templates found.")
			return nil
		}

		fmt.Fprintf(out, "%-24s  %-36s  %-10s  %-12s  %5s  %s\n",
			"ID", "Title", "Subject", "Difficulty", "Steps", "Active")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, t := range templates {
			active := "✓"
			if !t.Active {
				active = "✗"
			}
			fmt.Fprintf(out, "%-24s  %-36s  %-10s  %-12s  %5d  %s\n",
				truncate(t.ID, 24), truncate(t.Title, 36), t.Subject, t.Difficulty, len(t.Steps), active)
		}
		return nil
	},
}

func init() {
	templateImportCmd.Flags().Bool("inactive", false, "Import templates as inactive")

	templateCmd.AddCommand(templateImportCmd)
	templateCmd.AddCommand(templateListCmd)
}
