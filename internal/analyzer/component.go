package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// fallbackComponent is used when a table names no default of its own.
const fallbackComponent = "Agent Core"

// ComponentIdentifier maps records to logical subsystem names. Rule order
// is significant: specific subsystems come before generic catch-alls, and
// the first rule with a matching pattern wins.
type ComponentIdentifier struct {
	rules    []compiledComponentRule
	fallback string
}

type compiledComponentRule struct {
	name     string
	patterns []*regexp.Regexp
}

// NewComponentIdentifier compiles the component rules of a table.
func NewComponentIdentifier(table *common.PatternTable) (*ComponentIdentifier, error) {
	ci := &ComponentIdentifier{
		fallback: table.ComponentDefault,
	}
	if ci.fallback == "" {
		ci.fallback = fallbackComponent
	}

	for _, rule := range table.Components {
		compiled := compiledComponentRule{name: rule.Name}
		for _, expr := range rule.Patterns {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("component %q pattern %q: %w", rule.Name, expr, err)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		ci.rules = append(ci.rules, compiled)
	}
	return ci, nil
}

// Identify returns the logical component for a parsed record. The search
// covers the message, the raw component token and the source location so a
// subsystem tag in any of them claims the record. Parsed records always get
// a real name, never "unknown", to keep aggregation meaningful.
func (ci *ComponentIdentifier) Identify(record *common.LogRecord) string {
	if record == nil || !record.Parsed {
		return ci.fallback
	}

	var sb strings.Builder
	sb.WriteString(record.Message)
	if record.Component != "" && record.Component != "unknown" {
		sb.WriteByte(' ')
		sb.WriteString(record.Component)
	}
	if record.Location != "" {
		sb.WriteByte(' ')
		sb.WriteString(record.Location)
	}
	text := sb.String()

	for _, rule := range ci.rules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				return rule.name
			}
		}
	}
	return ci.fallback
}
