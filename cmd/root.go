package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gordyrad/green-refactor/internal/config"
	"github.com/gordyrad/green-refactor/internal/log"
)

var (
	cfg    *config.Config
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "green-refactor",
	Short: "Energy-efficiency code audits powered by an LLM",
	Long: `A CLI tool that sends a selected piece of source code to an LLM for a Green IT
audit: eco scores, algorithmic complexity before and after, an explanation and a
rewritten version. The report can be compared against the original file or
applied in place, and every improving audit earns eco-points.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// persistentFlags are bound to viper under the same key.
var persistentFlags = []string{
	"provider", "model", "api-key", "base-url", "max-tokens", "temperature",
	"db-path", "output-dir", "report-format", "ui", "web-addr", "diff-tool",
	"guidelines-file", "timeout", "verbose", "quiet", "config",
}

func init() {
	cobra.OnInitialize(initConfig)

	d := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.String("provider", d.LLM.Provider, "LLM provider: mistral, openai, anthropic")
	pf.String("model", "", "LLM model (default depends on the provider)")
	pf.String("api-key", "", "API key for the LLM provider")
	pf.String("base-url", "", "Override the provider API base URL")
	pf.Int("max-tokens", d.LLM.MaxTokens, "Maximum tokens in the model response")
	pf.Float64("temperature", d.LLM.Temperature, "Sampling temperature")
	pf.String("db-path", d.DBPath, "SQLite database path (eco-points and history)")
	pf.String("output-dir", d.OutputDir, "Output directory for exported reports")
	pf.String("report-format", d.ReportFormat, "Report export format: markdown, json, none")
	pf.String("ui", d.UI, "Report panel: terminal, web")
	pf.String("web-addr", d.WebAddr, "Listen address of the web report panel")
	pf.String("diff-tool", "", "External diff command run as TOOL ORIGINAL PROPOSED")
	pf.String("guidelines-file", d.Guidelines, "Team guidelines appended to the audit instructions")
	pf.Duration("timeout", d.Timeout, "Timeout of the model call (0 disables)")
	pf.BoolP("verbose", "v", false, "Verbose logging")
	pf.BoolP("quiet", "q", false, "Only log warnings and errors")
	pf.String("config", "", "Path to YAML config file (default "+config.DefaultFile()+")")

	for _, f := range persistentFlags {
		_ = viper.BindPFlag(f, pf.Lookup(f))
	}
}

func initConfig() {
	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigFile(config.DefaultFile())
	}

	viper.SetEnvPrefix("GREEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if !missing || configFile != "" {
			cfgErr = fmt.Errorf("reading config file: %w", err)
		}
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		cfgErr = errors.Join(cfgErr, err)
		loaded = config.DefaultConfig()
	}
	cfg = loaded

	log.Setup(cfg.Verbose, cfg.Quiet)
	if cfg.ConfigFile != "" {
		slog.Debug("config: loaded", "file", cfg.ConfigFile)
	}
}

// requireConfig fails with exit code 3 when the configuration is unusable.
func requireConfig() error {
	if cfgErr != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("configuration error: %w", cfgErr)}
	}
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("configuration error: %w", err)}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}
