package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gordyrad/green-refactor/internal/analysis"
)

var guidelinesCmd = &cobra.Command{
	Use:   "guidelines",
	Short: "Manage team guidelines added to the audit instructions",
	Long: `Manage the team guidelines appended to the instructions sent with every audit,
for example house rules on allocation or I/O. The response format is not
affected.

Use subcommands to show, set, or clear the guidelines.`,
}

var guidelinesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current guidelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		content, err := analysis.LoadGuidelines(cfg.Guidelines)
		if err != nil {
			return err
		}
		if content == "" {
			fmt.Fprintln(out, "No guidelines set.")
			fmt.Fprintf(out, "  Guidelines file: %s (not found)\n", cfg.Guidelines)
			fmt.Fprintln(out, "\nUse 'green-refactor guidelines set' to add some.")
			return nil
		}

		fmt.Fprintf(out, "Guidelines (%s):\n\n", cfg.Guidelines)
		fmt.Fprintln(out, content)
		return nil
	},
}

var (
	guidelinesSetFile string
	guidelinesSetText string
)

var guidelinesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set guidelines from a file or string",
	Long: `Sets the team guidelines from a file (--file) or an inline string (--text).

Examples:
  green-refactor guidelines set --file GREEN.md
  green-refactor guidelines set --text "Prefer generators over materialized lists"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		content, err := guidelinesInput(guidelinesSetFile, guidelinesSetText)
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}
		if err := analysis.SaveGuidelines(cfg.Guidelines, content); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Guidelines saved to: %s\n", cfg.Guidelines)
		return nil
	},
}

var guidelinesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the guidelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		if err := analysis.ClearGuidelines(cfg.Guidelines); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Guidelines cleared.")
		return nil
	},
}

// guidelinesInput returns the content given by exactly one of file or text.
func guidelinesInput(file, text string) (string, error) {
	switch {
	case file == "" && text == "":
		return "", errors.New("either --file or --text must be specified")
	case file != "" && text != "":
		return "", errors.New("--file and --text are mutually exclusive")
	case text != "":
		return text, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading file %q: %w", file, err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("file %q is empty", file)
	}
	return content, nil
}

func init() {
	guidelinesSetCmd.Flags().StringVar(&guidelinesSetFile, "file", "", "Read guidelines from this file")
	guidelinesSetCmd.Flags().StringVar(&guidelinesSetText, "text", "", "Guidelines as an inline string")

	guidelinesCmd.AddCommand(guidelinesShowCmd)
	guidelinesCmd.AddCommand(guidelinesSetCmd)
	guidelinesCmd.AddCommand(guidelinesClearCmd)

	rootCmd.AddCommand(guidelinesCmd)
}
