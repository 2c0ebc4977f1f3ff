package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.Provider != "mistral" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "mistral")
	}
	if cfg.LLM.Model != "mistral-large-latest" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "mistral-large-latest")
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM.MaxTokens = %d, want 4096", cfg.LLM.MaxTokens)
	}
	if cfg.ReportFormat != "none" {
		t.Errorf("ReportFormat = %q, want %q", cfg.ReportFormat, "none")
	}
	if cfg.UI != "terminal" {
		t.Errorf("UI = %q, want %q", cfg.UI, "terminal")
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
	if !strings.HasSuffix(cfg.DBPath, "green-refactor.db") {
		t.Errorf("DBPath = %q, want a green-refactor.db file", cfg.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestDefaultModel(t *testing.T) {
	tests := map[string]string{
		"mistral":   "mistral-large-latest",
		"openai":    "gpt-4o-mini",
		"anthropic": "claude-sonnet-4-20250514",
		"":          "mistral-large-latest",
	}
	for provider, want := range tests {
		if got := DefaultModel(provider); got != want {
			t.Errorf("DefaultModel(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestAPIKeyEnv(t *testing.T) {
	tests := map[string]string{
		"mistral":   "MISTRAL_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
	}
	for provider, want := range tests {
		if got := APIKeyEnv(provider); got != want {
			t.Errorf("APIKeyEnv(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			modify: func(c *Config) {},
		},
		{
			name:   "missing key is not a config error",
			modify: func(c *Config) { c.LLM.APIKey = "" },
		},
		{
			name:   "valid openai with base url",
			modify: func(c *Config) { c.LLM.Provider = "openai"; c.LLM.BaseURL = "http://localhost:8080/v1" },
		},
		{
			name:    "invalid provider",
			modify:  func(c *Config) { c.LLM.Provider = "gemini" },
			wantErr: "LLM.Provider must be one of",
		},
		{
			name:    "invalid report format",
			modify:  func(c *Config) { c.ReportFormat = "xml" },
			wantErr: "ReportFormat must be one of",
		},
		{
			name:    "invalid ui",
			modify:  func(c *Config) { c.UI = "gui" },
			wantErr: "UI must be one of",
		},
		{
			name:    "web ui needs address",
			modify:  func(c *Config) { c.UI = "web"; c.WebAddr = "" },
			wantErr: "WebAddr is required",
		},
		{
			name:   "terminal ui ignores address",
			modify: func(c *Config) { c.WebAddr = "" },
		},
		{
			name:    "export needs output dir",
			modify:  func(c *Config) { c.ReportFormat = "json"; c.OutputDir = "" },
			wantErr: "OutputDir is required",
		},
		{
			name:    "bad base url",
			modify:  func(c *Config) { c.LLM.BaseURL = "not a url" },
			wantErr: "LLM.BaseURL must be a URL",
		},
		{
			name:    "zero max tokens",
			modify:  func(c *Config) { c.LLM.MaxTokens = 0 },
			wantErr: "LLM.MaxTokens must be gte 1",
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.LLM.Temperature = 3 },
			wantErr: "LLM.Temperature must be lte 2",
		},
		{
			name:    "empty db path",
			modify:  func(c *Config) { c.DBPath = "" },
			wantErr: "DBPath is required",
		},
		{
			name:    "verbose and quiet",
			modify:  func(c *Config) { c.Verbose = true; c.Quiet = true },
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UI = "gui"
	cfg.ReportFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"UI must be", "ReportFormat must be"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	v := viper.New()
	v.Set("provider", "OpenAI")
	v.Set("timeout", "45s")
	v.Set("report-format", "json")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "openai")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want the openai default", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("LLM.APIKey = %q, want value from OPENAI_API_KEY", cfg.LLM.APIKey)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.ReportFormat != "json" {
		t.Errorf("ReportFormat = %q, want json", cfg.ReportFormat)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM.MaxTokens = %d, want default 4096", cfg.LLM.MaxTokens)
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "from-env")

	v := viper.New()
	v.Set("model", "codestral-latest")
	v.Set("api-key", "from-config")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.Model != "codestral-latest" {
		t.Errorf("LLM.Model = %q, want codestral-latest", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "from-config" {
		t.Errorf("LLM.APIKey = %q, want from-config", cfg.LLM.APIKey)
	}
}
