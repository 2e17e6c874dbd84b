package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order.
var ConfigPaths = []string{
	"./.dstriage.yaml",               // project config (highest priority)
	"~/.config/dstriage/config.yaml", // user config
	"/etc/dstriage/config.yaml",      // system config (lowest priority)
}

// Loader handles configuration loading with priority merging.
type Loader struct {
	configPaths []string
}

// NewLoader creates a config loader over the standard search paths.
func NewLoader() *Loader {
	return &Loader{configPaths: ConfigPaths}
}

// LoadConfig assembles the effective configuration. Sources, weakest
// first: built-in defaults, /etc, the user config, the project config,
// then DSTRIAGE_* environment variables. A custom path replaces the file
// search entirely. Flags stay with the CLI layer.
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	cfg := DefaultConfig()

	if customPath != "" {
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(cfg, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		for i := len(l.configPaths) - 1; i >= 0; i-- {
			path := expandPath(l.configPaths[i])
			if !fileExists(path) {
				continue
			}
			if err := l.loadFromFile(cfg, path); err != nil {
				// Logging is not configured yet at this point.
				fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", path, err)
			}
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is validated or comes from the fixed search list
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	mergeConfigs(cfg, &fileCfg)
	return nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	envMappings := map[string]func(string) error{
		// Analysis
		"DSTRIAGE_ANALYSIS_MAX_LINES":       func(v string) error { return parseInt(v, &cfg.Analysis.MaxLines) },
		"DSTRIAGE_ANALYSIS_MAX_EVENTS":      func(v string) error { return parseInt(v, &cfg.Analysis.MaxEvents) },
		"DSTRIAGE_ANALYSIS_MAX_LINE_LENGTH": func(v string) error { return parseInt(v, &cfg.Analysis.MaxLineLength) },
		"DSTRIAGE_ANALYSIS_TIMEOUT":         func(v string) error { return parseDuration(v, &cfg.Analysis.Timeout) },
		"DSTRIAGE_ANALYSIS_FUZZY_THRESHOLD": func(v string) error { return parseFloat(v, &cfg.Analysis.FuzzyThreshold) },
		"DSTRIAGE_ANALYSIS_HEURISTIC":       func(v string) error { return parseBool(v, &cfg.Analysis.Heuristic) },

		// Correlation
		"DSTRIAGE_CORRELATION_WINDOW_MINUTES": func(v string) error { return parseInt(v, &cfg.Correlation.WindowMinutes) },

		// Bundle
		"DSTRIAGE_BUNDLE_MAX_MEMBER_SIZE_MB": func(v string) error { return parseInt(v, &cfg.Bundle.MaxMemberSizeMB) },
		"DSTRIAGE_BUNDLE_MAX_MEMBERS":        func(v string) error { return parseInt(v, &cfg.Bundle.MaxMembers) },
		"DSTRIAGE_BUNDLE_WORK_DIR":           func(v string) error { cfg.Bundle.WorkDir = v; return nil },

		// LLM
		"DSTRIAGE_LLM_ENABLED":     func(v string) error { return parseBool(v, &cfg.LLM.Enabled) },
		"DSTRIAGE_LLM_PROVIDER":    func(v string) error { cfg.LLM.Provider = v; return nil },
		"DSTRIAGE_LLM_MODEL":       func(v string) error { cfg.LLM.Model = v; return nil },
		"DSTRIAGE_LLM_ENDPOINT":    func(v string) error { cfg.LLM.Endpoint = v; return nil },
		"DSTRIAGE_LLM_API_KEY":     func(v string) error { cfg.LLM.APIKey = v; return nil },
		"DSTRIAGE_LLM_MAX_TOKENS":  func(v string) error { return parseInt(v, &cfg.LLM.MaxTokens) },
		"DSTRIAGE_LLM_TEMPERATURE": func(v string) error { return parseFloat(v, &cfg.LLM.Temperature) },
		"DSTRIAGE_LLM_TIMEOUT":     func(v string) error { return parseDuration(v, &cfg.LLM.Timeout) },
		"DSTRIAGE_LLM_CACHE_TTL":   func(v string) error { return parseDuration(v, &cfg.LLM.CacheTTL) },

		// History
		"DSTRIAGE_HISTORY_ENABLED": func(v string) error { return parseBool(v, &cfg.History.Enabled) },
		"DSTRIAGE_HISTORY_PATH":    func(v string) error { cfg.History.Path = v; return nil },
		"DSTRIAGE_HISTORY_KEEP":    func(v string) error { return parseInt(v, &cfg.History.Keep) },

		// Knowledge base
		"DSTRIAGE_KB_PATH": func(v string) error { cfg.KB.Path = v; return nil },

		// Logging
		"DSTRIAGE_LOG_LEVEL":   func(v string) error { cfg.Logging.Level = v; return nil },
		"DSTRIAGE_LOG_DIR":     func(v string) error { cfg.Logging.Dir = v; return nil },
		"DSTRIAGE_LOG_FILE":    func(v string) error { cfg.Logging.File = v; return nil },
		"DSTRIAGE_LOG_CONSOLE": func(v string) error { return parseBool(v, &cfg.Logging.Console) },

		// Output
		"DSTRIAGE_OUTPUT_FORMAT":        func(v string) error { cfg.Output.Format = v; return nil },
		"DSTRIAGE_OUTPUT_COLOR_MODE":    func(v string) error { cfg.Output.ColorMode = v; return nil },
		"DSTRIAGE_OUTPUT_EMOJI":         func(v string) error { return parseBool(v, &cfg.Output.Emoji) },
		"DSTRIAGE_OUTPUT_SHOW_PROGRESS": func(v string) error { return parseBool(v, &cfg.Output.ShowProgress) },
	}

	for envVar, setter := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	return nil
}

// GetConfigPaths returns the expanded search paths.
func GetConfigPaths() []string {
	paths := make([]string, 0, len(ConfigPaths))
	for _, path := range ConfigPaths {
		paths = append(paths, expandPath(path))
	}
	return paths
}

// FindConfigFile finds the first existing config file in the search paths.
func FindConfigFile() (string, bool) {
	for _, path := range ConfigPaths {
		expanded := expandPath(path)
		if fileExists(expanded) {
			return expanded, true
		}
	}
	return "", false
}

// validateConfigPath rejects custom config paths that reach outside the
// expected shapes.
func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}

	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mergeConfigs overlays non-zero values from src onto dst, section by
// section. Booleans only merge when their section carries other signals,
// so the env layer is the reliable way to force a flag off.
func mergeConfigs(dst, src *Config) {
	if src.Version != "" {
		dst.Version = src.Version
	}
	mergeAnalysis(&dst.Analysis, &src.Analysis)
	mergeCorrelation(&dst.Correlation, &src.Correlation)
	mergeBundle(&dst.Bundle, &src.Bundle)
	mergeLLM(&dst.LLM, &src.LLM)
	mergeHistory(&dst.History, &src.History)
	if src.KB.Path != "" {
		dst.KB.Path = src.KB.Path
	}
	mergeLogging(&dst.Logging, &src.Logging)
	mergeOutput(&dst.Output, &src.Output)
}

func mergeAnalysis(dst, src *AnalysisConfig) {
	if src.MaxLines != 0 {
		dst.MaxLines = src.MaxLines
	}
	if src.MaxEvents != 0 {
		dst.MaxEvents = src.MaxEvents
	}
	if src.MaxLineLength != 0 {
		dst.MaxLineLength = src.MaxLineLength
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.HealthErrorWeight != 0 {
		dst.HealthErrorWeight = src.HealthErrorWeight
	}
	if src.HealthWarningWeight != 0 {
		dst.HealthWarningWeight = src.HealthWarningWeight
	}
	if src.FuzzyThreshold != 0 {
		dst.FuzzyThreshold = src.FuzzyThreshold
	}
	if src.Heuristic {
		dst.Heuristic = true
	}
}

func mergeCorrelation(dst, src *CorrelationConfig) {
	if src.WindowMinutes != 0 {
		dst.WindowMinutes = src.WindowMinutes
	}
	if src.TimingWeight != 0 {
		dst.TimingWeight = src.TimingWeight
	}
	if src.ComponentWeight != 0 {
		dst.ComponentWeight = src.ComponentWeight
	}
}

func mergeBundle(dst, src *BundleConfig) {
	if src.MaxMemberSizeMB != 0 {
		dst.MaxMemberSizeMB = src.MaxMemberSizeMB
	}
	if src.MaxMembers != 0 {
		dst.MaxMembers = src.MaxMembers
	}
	if src.WorkDir != "" {
		dst.WorkDir = src.WorkDir
	}
}

func mergeLLM(dst, src *LLMConfig) {
	if src.Enabled {
		dst.Enabled = true
	}
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Endpoint != "" {
		dst.Endpoint = src.Endpoint
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.MaxTokens != 0 {
		dst.MaxTokens = src.MaxTokens
	}
	if src.Temperature != 0 {
		dst.Temperature = src.Temperature
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.CacheTTL != 0 {
		dst.CacheTTL = src.CacheTTL
	}
}

func mergeHistory(dst, src *HistoryConfig) {
	if src.Enabled {
		dst.Enabled = true
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.Keep != 0 {
		dst.Keep = src.Keep
	}
}

func mergeLogging(dst, src *LoggingConfig) {
	if src.Level != "" {
		dst.Level = src.Level
	}
	if src.Dir != "" {
		dst.Dir = src.Dir
	}
	if src.File != "" {
		dst.File = src.File
	}
	if src.MaxSizeMB != 0 {
		dst.MaxSizeMB = src.MaxSizeMB
	}
	if src.MaxBackups != 0 {
		dst.MaxBackups = src.MaxBackups
	}
	if src.MaxAgeDays != 0 {
		dst.MaxAgeDays = src.MaxAgeDays
	}
	if src.Console {
		dst.Console = true
	}
}

func mergeOutput(dst, src *OutputConfig) {
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.ColorMode != "" {
		dst.ColorMode = src.ColorMode
	}
	// A zero-value merge cannot distinguish an explicit false from an
	// absent key, so true-default booleans only switch off through the
	// DSTRIAGE_* environment overrides or the CLI flags.
	if src.Emoji {
		dst.Emoji = true
	}
	if src.ShowProgress {
		dst.ShowProgress = true
	}
}

// Type conversion helpers.

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
