package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed embedded_tables.yaml
var embeddedTables []byte

// tableFile is the YAML document shape for pattern-table files.
type tableFile struct {
	Version string         `yaml:"version"`
	Tables  []PatternTable `yaml:"tables"`
}

// LoadDefaultTables parses the embedded pattern tables shipped with the
// binary. The returned map is keyed by log type and should be treated as
// read-only after this call.
func LoadDefaultTables() (map[LogType]*PatternTable, error) {
	return parseTables(embeddedTables)
}

// LoadTablesFromFile parses pattern tables from an external YAML file,
// letting deployments override the embedded defaults.
func LoadTablesFromFile(path string) (map[LogType]*PatternTable, error) {
	if err := validateTableFilePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern tables %s: %w", path, err)
	}
	return parseTables(data)
}

func parseTables(data []byte) (map[LogType]*PatternTable, error) {
	var doc tableFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		// Fall back to a bare table list without the version wrapper.
		var bare []PatternTable
		if err2 := yaml.Unmarshal(data, &bare); err2 != nil {
			return nil, fmt.Errorf("failed to parse pattern tables: %w", err)
		}
		doc.Tables = bare
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("pattern table document contains no tables")
	}

	tables := make(map[LogType]*PatternTable, len(doc.Tables))
	for i := range doc.Tables {
		t := doc.Tables[i]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("table %q: %w", t.LogType, err)
		}
		tables[t.LogType] = &t
	}
	return tables, nil
}

// Validate checks that the table is usable: a log type is set and every
// regex compiles. Called at load time so analysis never sees a bad pattern.
func (t *PatternTable) Validate() error {
	if t.LogType == "" {
		return fmt.Errorf("missing log_type")
	}
	for _, group := range [][]string{t.KnownCritical, t.Critical, t.Warning} {
		for _, expr := range group {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("invalid pattern %q: %w", expr, err)
			}
		}
	}
	for _, rule := range t.Components {
		if rule.Name == "" {
			return fmt.Errorf("component rule with empty name")
		}
		for _, expr := range rule.Patterns {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("component %q pattern %q: %w", rule.Name, expr, err)
			}
		}
	}
	for _, ki := range t.KnownIssues {
		if ki.Signature == "" {
			return fmt.Errorf("known issue with empty signature")
		}
		if ki.IssueType == "" {
			return fmt.Errorf("known issue %q missing issue_type", ki.Signature)
		}
	}
	return nil
}

// validateTableFilePath rejects traversal attempts and non-YAML files.
func validateTableFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty pattern table path")
	}
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return fmt.Errorf("invalid pattern table path: %s", path)
	}
	ext := strings.ToLower(filepath.Ext(clean))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("pattern table file must be .yaml or .yml: %s", path)
	}
	return nil
}
