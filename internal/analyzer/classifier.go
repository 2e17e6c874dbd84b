package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// Classifier maps a parsed record to a computed severity using the ordered
// rules of one pattern table. Classification never fails: when nothing
// matches, the table's default severity applies.
type Classifier struct {
	knownCritical []*regexp.Regexp
	critical      []*regexp.Regexp
	warning       []*regexp.Regexp
	defaultSev    common.Severity
}

// NewClassifier compiles the severity patterns of a table.
func NewClassifier(table *common.PatternTable) (*Classifier, error) {
	c := &Classifier{
		defaultSev: common.SeverityInfo,
	}
	if table.DefaultSeverity != "" {
		if sev := common.ParseSeverity(table.DefaultSeverity); sev != common.SeverityUnknown {
			c.defaultSev = sev
		}
	}

	var err error
	if c.knownCritical, err = compilePatterns(table.KnownCritical); err != nil {
		return nil, fmt.Errorf("known_critical: %w", err)
	}
	if c.critical, err = compilePatterns(table.Critical); err != nil {
		return nil, fmt.Errorf("critical: %w", err)
	}
	if c.warning, err = compilePatterns(table.Warning); err != nil {
		return nil, fmt.Errorf("warning: %w", err)
	}
	return c, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, expr := range patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", expr, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Classify computes the severity of one record. Evaluation order is fixed:
// hand-curated known-critical signatures, then the record's own level
// token, then the generic critical and warning tables, then the default.
func (c *Classifier) Classify(record *common.LogRecord) common.Severity {
	if record == nil || !record.Parsed {
		return common.SeverityUnknown
	}

	text := record.Message
	if text == "" {
		text = record.Raw
	}

	for _, re := range c.knownCritical {
		if re.MatchString(text) {
			return common.SeverityCritical
		}
	}

	if sev, ok := severityFromLevel(record.Level); ok {
		return sev
	}

	for _, re := range c.critical {
		if re.MatchString(text) {
			return common.SeverityCritical
		}
	}
	for _, re := range c.warning {
		if re.MatchString(text) {
			return common.SeverityWarning
		}
	}

	return c.defaultSev
}

// severityFromLevel maps the raw level token sets to severities. Numeric
// agent levels and vendor oddities fall through to the pattern tables.
func severityFromLevel(level string) (common.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "critical", "fatal":
		return common.SeverityCritical, true
	case "error", "err":
		return common.SeverityError, true
	case "warning", "warn":
		return common.SeverityWarning, true
	case "info", "information", "debug", "trace", "verbose":
		return common.SeverityInfo, true
	default:
		return common.SeverityUnknown, false
	}
}
