package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Provider names.
const (
	ProviderMistral   = "mistral"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	LLM LLMConfig

	DBPath       string        `mapstructure:"db-path" validate:"required"`
	OutputDir    string        `mapstructure:"output-dir" validate:"required_unless=ReportFormat none"`
	ReportFormat string        `mapstructure:"report-format" validate:"oneof=markdown json none"` // "markdown", "json" or "none"
	UI           string        `mapstructure:"ui" validate:"oneof=terminal web"`
	WebAddr      string        `mapstructure:"web-addr" validate:"required_if=UI web"`
	DiffTool     string        `mapstructure:"diff-tool"`
	Guidelines   string        `mapstructure:"guidelines-file"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Verbose      bool          `mapstructure:"verbose"`
	Quiet        bool          `mapstructure:"quiet"`
	ConfigFile   string        `mapstructure:"-"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" validate:"oneof=mistral openai anthropic"`
	Model       string  `mapstructure:"model" validate:"required"`
	APIKey      string  `mapstructure:"api-key"`
	BaseURL     string  `mapstructure:"base-url" validate:"omitempty,url"`
	MaxTokens   int     `mapstructure:"max-tokens" validate:"gte=1,lte=200000"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

var validate = validator.New()

// Dir returns the per-user configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "green-refactor")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "green-refactor")
}

// DefaultFile returns the default YAML config file path.
func DefaultFile() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DBPath:       filepath.Join(Dir(), "green-refactor.db"),
		OutputDir:    "./reports",
		ReportFormat: "none",
		UI:           "terminal",
		WebAddr:      "127.0.0.1:7777",
		Guidelines:   filepath.Join(Dir(), "guidelines.md"),
		Timeout:      2 * time.Minute,
		LLM: LLMConfig{
			Provider:    ProviderMistral,
			Model:       DefaultModel(ProviderMistral),
			MaxTokens:   4096,
			Temperature: 0.3,
		},
	}
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	default:
		return "mistral-large-latest"
	}
}

// APIKeyEnv returns the environment variable holding the key for provider.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "MISTRAL_API_KEY"
	}
}

// Load builds a Config from v. Keys missing from v keep their defaults, an
// unset model follows the provider and an unset API key falls back to the
// provider's environment variable.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	defaultProvider := cfg.LLM.Provider

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := v.Unmarshal(&cfg.LLM); err != nil {
		return nil, fmt.Errorf("decoding llm configuration: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if !v.IsSet("model") && cfg.LLM.Provider != defaultProvider {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(APIKeyEnv(cfg.LLM.Provider))
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	return cfg, nil
}

// Validate checks config for errors. A missing API key is not an error here;
// it is reported when an analysis is started.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		if c.Verbose && c.Quiet {
			return fmt.Errorf("verbose and quiet are mutually exclusive")
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	var errs []error
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	name := fe.Namespace()
	name = strings.TrimPrefix(name, "Config.")
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "required", "required_if", "required_unless":
		return fmt.Errorf("%s is required", name)
	case "url":
		return fmt.Errorf("%s must be a URL, got %q", name, fe.Value())
	case "gte", "lte":
		return fmt.Errorf("%s must be %s %s, got %v", name, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %q check", name, fe.Tag())
	}
}
