package config

import (
	"fmt"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Version     string            `yaml:"version" json:"version"`
	Analysis    AnalysisConfig    `yaml:"analysis" json:"analysis"`
	Correlation CorrelationConfig `yaml:"correlation" json:"correlation"`
	Bundle      BundleConfig      `yaml:"bundle" json:"bundle"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	History     HistoryConfig     `yaml:"history" json:"history"`
	KB          KBConfig          `yaml:"kb" json:"kb"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Output      OutputConfig      `yaml:"output" json:"output"`
}

// AnalysisConfig configures the per-log-type analysis engines.
type AnalysisConfig struct {
	MaxLines            int           `yaml:"max_lines" json:"max_lines"`                         // lines read per file
	MaxEvents           int           `yaml:"max_events" json:"max_events"`                       // classified events retained per run
	MaxLineLength       int           `yaml:"max_line_length" json:"max_line_length"`             // scanner token limit
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`                             // per-analysis deadline
	HealthErrorWeight   float64       `yaml:"health_error_weight" json:"health_error_weight"`     // health penalty per error
	HealthWarningWeight float64       `yaml:"health_warning_weight" json:"health_warning_weight"` // health penalty per warning
	FuzzyThreshold      float64       `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`             // 0 disables fuzzy issue matching
	Heuristic           bool          `yaml:"heuristic" json:"heuristic"`                         // enable the feature scorer
}

// CorrelationConfig configures cross-log correlation.
type CorrelationConfig struct {
	WindowMinutes   int `yaml:"window_minutes" json:"window_minutes"`
	TimingWeight    int `yaml:"timing_weight" json:"timing_weight"`
	ComponentWeight int `yaml:"component_weight" json:"component_weight"`
}

// BundleConfig configures diagnostic package extraction.
type BundleConfig struct {
	MaxMemberSizeMB int    `yaml:"max_member_size_mb" json:"max_member_size_mb"`
	MaxMembers      int    `yaml:"max_members" json:"max_members"`
	WorkDir         string `yaml:"work_dir" json:"work_dir"` // empty means the system temp dir
}

// LLMConfig configures the optional model-backed summary and classifier.
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Provider    string        `yaml:"provider" json:"provider"` // ollama|openai|anthropic
	Model       string        `yaml:"model" json:"model"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl"` // 0 disables response caching
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Keep    int    `yaml:"keep" json:"keep"` // rows retained by prune
}

// KBConfig configures the runbook knowledge base.
type KBConfig struct {
	Path string `yaml:"path" json:"path"` // empty disables the knowledge base
}

// LoggingConfig configures the diagnostic log file.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"` // debug|info|warn|error
	Dir        string `yaml:"dir" json:"dir"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Console    bool   `yaml:"console" json:"console"` // mirror warnings to stderr
}

// OutputConfig configures result rendering.
type OutputConfig struct {
	Format       string `yaml:"format" json:"format"`         // terminal|json|markdown|csv
	ColorMode    string `yaml:"color_mode" json:"color_mode"` // auto|always|never
	Emoji        bool   `yaml:"emoji" json:"emoji"`
	ShowProgress bool   `yaml:"show_progress" json:"show_progress"`
}

// DefaultConfig returns a configuration with the shipped defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Analysis: AnalysisConfig{
			MaxLines:            10000,
			MaxEvents:           500,
			MaxLineLength:       1024 * 1024,
			Timeout:             2 * time.Minute,
			HealthErrorWeight:   10,
			HealthWarningWeight: 2,
			FuzzyThreshold:      0,
			Heuristic:           false,
		},
		Correlation: CorrelationConfig{
			WindowMinutes:   5,
			TimingWeight:    10,
			ComponentWeight: 15,
		},
		Bundle: BundleConfig{
			MaxMemberSizeMB: 64,
			MaxMembers:      256,
		},
		LLM: LLMConfig{
			Enabled:     false,
			Provider:    "ollama",
			Model:       "llama3.2",
			Endpoint:    "http://localhost:11434",
			MaxTokens:   1024,
			Temperature: 0.3,
			Timeout:     60 * time.Second,
			CacheTTL:    15 * time.Minute,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "~/.cache/dstriage/history.db",
			Keep:    200,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "logs",
			File:       "dstriage.jsonl",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Output: OutputConfig{
			Format:       "terminal",
			ColorMode:    "auto",
			Emoji:        true,
			ShowProgress: true,
		},
	}
}

// Validate checks the configuration section by section.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateCorrelation(); err != nil {
		return err
	}
	if err := c.validateBundle(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateOutput()
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MaxLines < 1 {
		return fmt.Errorf("analysis.max_lines must be greater than 0")
	}
	if c.Analysis.MaxEvents < 1 {
		return fmt.Errorf("analysis.max_events must be greater than 0")
	}
	if c.Analysis.MaxLineLength < 1 {
		return fmt.Errorf("analysis.max_line_length must be greater than 0")
	}
	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("analysis.timeout must be non-negative")
	}
	if c.Analysis.HealthErrorWeight <= 0 || c.Analysis.HealthWarningWeight <= 0 {
		return fmt.Errorf("analysis health weights must be positive")
	}
	if c.Analysis.HealthErrorWeight < c.Analysis.HealthWarningWeight {
		return fmt.Errorf("analysis.health_error_weight must be at least the warning weight")
	}
	if c.Analysis.FuzzyThreshold < 0 || c.Analysis.FuzzyThreshold > 1 {
		return fmt.Errorf("analysis.fuzzy_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateCorrelation() error {
	if c.Correlation.WindowMinutes < 1 {
		return fmt.Errorf("correlation.window_minutes must be greater than 0")
	}
	if c.Correlation.TimingWeight < 0 || c.Correlation.ComponentWeight < 0 {
		return fmt.Errorf("correlation weights must be non-negative")
	}
	return nil
}

func (c *Config) validateBundle() error {
	if c.Bundle.MaxMemberSizeMB < 1 {
		return fmt.Errorf("bundle.max_member_size_mb must be greater than 0")
	}
	if c.Bundle.MaxMembers < 1 {
		return fmt.Errorf("bundle.max_members must be greater than 0")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Provider != "" {
		valid := map[string]bool{
			"ollama":    true,
			"local":     true,
			"openai":    true,
			"anthropic": true,
		}
		if !valid[c.LLM.Provider] {
			return fmt.Errorf("invalid llm.provider: %s (must be one of: ollama, openai, anthropic)", c.LLM.Provider)
		}
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be non-negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.Level != "" {
		valid := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !valid[c.Logging.Level] {
			return fmt.Errorf("invalid logging.level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Format != "" {
		valid := map[string]bool{
			"terminal": true,
			"json":     true,
			"markdown": true,
			"csv":      true,
		}
		if !valid[c.Output.Format] {
			return fmt.Errorf("invalid output.format: %s (must be one of: terminal, json, markdown, csv)", c.Output.Format)
		}
	}
	if c.Output.ColorMode != "" {
		valid := map[string]bool{
			"auto":   true,
			"always": true,
			"never":  true,
		}
		if !valid[c.Output.ColorMode] {
			return fmt.Errorf("invalid output.color_mode: %s (must be one of: auto, always, never)", c.Output.ColorMode)
		}
	}
	return nil
}
