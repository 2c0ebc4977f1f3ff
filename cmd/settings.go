package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gordyrad/green-refactor/internal/config"
)

// settingKeys are the keys accepted by `settings set`.
var settingKeys = []string{
	"provider", "model", "api-key", "base-url", "max-tokens", "temperature",
	"db-path", "output-dir", "report-format", "ui", "web-addr", "diff-tool", "guidelines-file", "timeout",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change persistent settings",
	Long: `Manage the YAML settings file read at startup. Flags and GREEN_* environment
variables override the file; the provider API key can also come from
MISTRAL_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY.

Use subcommands to show the effective settings, set a value, or print the path
of the settings file.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgErr != nil {
			return &ExitError{Code: 3, Err: fmt.Errorf("configuration error: %w", cfgErr)}
		}
		printSettings(cmd.OutOrStdout(), cfg, settingsFile())
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a value in the settings file",
	Long: `Writes KEY=VALUE to the settings file, creating it when needed. The file is
only written when the resulting settings are valid.

Keys: ` + strings.Join(settingKeys, ", ") + `

Examples:
  green-refactor settings set api-key sk-...
  green-refactor settings set provider openai
  green-refactor settings set report-format markdown`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := settingsFile()
		if err := writeSetting(path, args[0], args[1]); err != nil {
			return &ExitError{Code: 3, Err: err}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to: %s\n", args[0], path)
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), settingsFile())
		return nil
	},
}

func settingsFile() string {
	if f := viper.GetString("config"); f != "" {
		return f
	}
	return config.DefaultFile()
}

// writeSetting sets key in the YAML file at path. The file keeps owner-only
// permissions since it may hold an API key.
func writeSetting(path, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(settingKeys, key) {
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(settingKeys, ", "))
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetConfigPermissions(0o600)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading settings file: %w", err)
	}
	v.Set(key, value)

	candidate, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("invalid setting: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

func printSettings(w io.Writer, c *config.Config, file string) {
	fmt.Fprintf(w, "Settings file: %s\n\n", file)
	fmt.Fprintf(w, "  provider:      %s\n", c.LLM.Provider)
	fmt.Fprintf(w, "  model:         %s\n", c.LLM.Model)
	fmt.Fprintf(w, "  api-key:       %s\n", maskSecret(c.LLM.APIKey))
	if c.LLM.BaseURL != "" {
		fmt.Fprintf(w, "  base-url:      %s\n", c.LLM.BaseURL)
	}
	fmt.Fprintf(w, "  max-tokens:    %d\n", c.LLM.MaxTokens)
	fmt.Fprintf(w, "  temperature:   %g\n", c.LLM.Temperature)
	fmt.Fprintf(w, "  db-path:       %s\n", c.DBPath)
	fmt.Fprintf(w, "  report-format: %s\n", c.ReportFormat)
	fmt.Fprintf(w, "  output-dir:    %s\n", c.OutputDir)
	fmt.Fprintf(w, "  ui:            %s\n", c.UI)
	if c.UI == "web" {
		fmt.Fprintf(w, "  web-addr:      %s\n", c.WebAddr)
	}
	if c.DiffTool != "" {
		fmt.Fprintf(w, "  diff-tool:     %s\n", c.DiffTool)
	}
	fmt.Fprintf(w, "  guidelines:    %s\n", c.Guidelines)
	fmt.Fprintf(w, "  timeout:       %s\n", c.Timeout)

	if c.LLM.APIKey == "" {
		fmt.Fprintf(w, "\nNo API key set. Use 'green-refactor settings set api-key <key>' or set %s.\n",
			config.APIKeyEnv(c.LLM.Provider))
	}
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return strings.Repeat("*", len(s))
	default:
		return s[:4] + strings.Repeat("*", 4) + s[len(s)-4:]
	}
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsPathCmd)

	rootCmd.AddCommand(settingsCmd)
}
