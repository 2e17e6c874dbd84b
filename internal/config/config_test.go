package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config must validate: %v", err)
	}

	if cfg.Analysis.MaxLines != 10000 {
		t.Errorf("Expected 10000 max lines, got %d", cfg.Analysis.MaxLines)
	}
	if cfg.Correlation.WindowMinutes != 5 {
		t.Errorf("Expected a 5 minute window, got %d", cfg.Correlation.WindowMinutes)
	}
	if cfg.LLM.Enabled {
		t.Error("Expected the LLM to be opt-in")
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Expected default provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.History.Enabled {
		t.Error("Expected history to be opt-in")
	}
	if cfg.Output.Format != "terminal" {
		t.Errorf("Expected terminal output, got %s", cfg.Output.Format)
	}
	if cfg.Analysis.Timeout != 2*time.Minute {
		t.Errorf("Expected a 2 minute analysis timeout, got %v", cfg.Analysis.Timeout)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero max lines",
			mutate:  func(c *Config) { c.Analysis.MaxLines = 0 },
			wantErr: "max_lines",
		},
		{
			name:    "inverted health weights",
			mutate:  func(c *Config) { c.Analysis.HealthErrorWeight = 1; c.Analysis.HealthWarningWeight = 5 },
			wantErr: "health_error_weight",
		},
		{
			name:    "fuzzy threshold above one",
			mutate:  func(c *Config) { c.Analysis.FuzzyThreshold = 1.5 },
			wantErr: "fuzzy_threshold",
		},
		{
			name:    "zero correlation window",
			mutate:  func(c *Config) { c.Correlation.WindowMinutes = 0 },
			wantErr: "window_minutes",
		},
		{
			name:    "zero bundle member cap",
			mutate:  func(c *Config) { c.Bundle.MaxMembers = 0 },
			wantErr: "max_members",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.Provider = "carrier-pigeon" },
			wantErr: "llm.provider",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.LLM.Temperature = 3 },
			wantErr: "temperature",
		},
		{
			name:    "history enabled without a path",
			mutate:  func(c *Config) { c.History.Enabled = true; c.History.Path = "" },
			wantErr: "history.path",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown output format",
			mutate:  func(c *Config) { c.Output.Format = "pdf" },
			wantErr: "output.format",
		},
		{
			name:    "unknown color mode",
			mutate:  func(c *Config) { c.Output.ColorMode = "sometimes" },
			wantErr: "color_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAcceptsEmptyOptionalFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = ""
	cfg.Logging.Level = ""
	cfg.Output.Format = ""
	cfg.Output.ColorMode = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected empty optional fields to pass validation, got %v", err)
	}
}
