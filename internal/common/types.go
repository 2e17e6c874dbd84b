package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LogType identifies which vendor log family a file or record belongs to.
type LogType string

const (
	LogTypeAgent   LogType = "agent"
	LogTypeAMSP    LogType = "amsp"
	LogTypeProcess LogType = "process"
	LogTypeGeneric LogType = "generic"
	LogTypePackage LogType = "diagnostic_package"
)

// Severity is the computed severity of a classified event. It is distinct
// from the raw level token on the log line, which may disagree.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityNormal
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name to a Severity value.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "fatal":
		return SeverityCritical
	case "error":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info":
		return SeverityInfo
	case "normal":
		return SeverityNormal
	default:
		return SeverityUnknown
	}
}

// MarshalJSON encodes the severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its lowercase name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = ParseSeverity(name)
	return nil
}

// LogRecord is one parsed log line. Timestamp is kept as the raw string from
// the line; formats vary per log type and malformed values are preserved
// rather than repaired.
type LogRecord struct {
	Timestamp  string `json:"timestamp,omitempty"`
	Component  string `json:"component,omitempty"`
	Level      string `json:"level,omitempty"`
	Message    string `json:"message,omitempty"`
	Location   string `json:"location,omitempty"`
	Thread     string `json:"thread,omitempty"`
	LineNumber int    `json:"line_number"`
	Parsed     bool   `json:"parsed"`
	Raw        string `json:"raw,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

// Unparsed builds the record returned when no layout matched a line.
func Unparsed(line string, lineNumber int) *LogRecord {
	return &LogRecord{
		Raw:        line,
		LineNumber: lineNumber,
		Parsed:     false,
	}
}

// HasTimestamp reports whether the record carries a timestamp token.
func (r *LogRecord) HasTimestamp() bool {
	return r.Timestamp != ""
}

// timestampLayouts are tried in order when a raw timestamp string needs to
// become a time.Time (correlation windowing, time-of-day scoring).
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05.000",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"15:04:05.000",
	"15:04:05",
}

// ParseTimestamp converts a raw timestamp token to a time.Time on a
// best-effort basis. The boolean is false when no known layout matched.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	// Zone suffixes like "[+0200]" ride along after the timestamp in agent
	// logs; strip them before layout matching.
	if i := strings.Index(s, " ["); i > 0 {
		s = s[:i]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time returns the record timestamp as a time.Time when parseable.
func (r *LogRecord) Time() (time.Time, bool) {
	return ParseTimestamp(r.Timestamp)
}

// ClassifiedEvent is a LogRecord annotated by the classification pipeline.
type ClassifiedEvent struct {
	Record        *LogRecord       `json:"record"`
	Severity      Severity         `json:"severity"`
	ComponentName string           `json:"component_name"`
	KnownIssue    *KnownIssueMatch `json:"known_issue,omitempty"`
	Source        string           `json:"source,omitempty"`
}

// KnownIssue is one hand-curated signature in a pattern table.
type KnownIssue struct {
	Signature   string `yaml:"signature" json:"signature"`
	IssueType   string `yaml:"issue_type" json:"issue_type"`
	Severity    string `yaml:"severity" json:"severity"`
	Description string `yaml:"description" json:"description"`
	Resolution  string `yaml:"resolution" json:"resolution"`
	Impact      string `yaml:"impact" json:"impact"`
}

// KnownIssueMatch is the result of matching a record against the known-issue
// table (or one of the optional secondary matchers).
type KnownIssueMatch struct {
	IssueType   string  `json:"issue_type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Resolution  string  `json:"resolution"`
	Impact      string  `json:"impact"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
}

// Match sources.
const (
	MatchSourceStatic = "static_database"
	MatchSourceFuzzy  = "fuzzy_match"
	MatchSourceLLM    = "llm_classifier"
)

// ComponentRule maps a logical subsystem name to the regexes that claim a
// record for it. Rule order is significant: specific subsystems must precede
// generic ones.
type ComponentRule struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// PatternTable is the static per-log-type classification data: severity
// regexes, known-issue signatures, component rules, and heuristic weights.
// Tables are populated once at load time and must be treated as read-only
// during analysis.
type PatternTable struct {
	LogType          LogType            `yaml:"log_type"`
	KnownCritical    []string           `yaml:"known_critical"`
	Critical         []string           `yaml:"critical"`
	Warning          []string           `yaml:"warning"`
	DefaultSeverity  string             `yaml:"default_severity"`
	KnownIssues      []KnownIssue       `yaml:"known_issues"`
	Components       []ComponentRule    `yaml:"components"`
	ComponentDefault string             `yaml:"component_default"`
	Criticality      map[string]float64 `yaml:"criticality"`
}

// FileTypeError reports a whole-file log-type mismatch: a line carrying
// another log type's unmistakable signature was found, so the file was
// almost certainly uploaded as the wrong type. This is the escalated form
// of a format error; single-line parse misses stay in-band as Parsed=false.
type FileTypeError struct {
	Path     string
	Expected LogType
	Detected LogType
	Line     int
}

func (e *FileTypeError) Error() string {
	return fmt.Sprintf("file %s does not look like a %s log: line %d matches the %s format",
		e.Path, e.Expected, e.Line, e.Detected)
}

// ReadError reports an unreadable input file. It aborts a direct single-file
// analysis; bundle extraction handles its members leniently instead.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
