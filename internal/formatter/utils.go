package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yildizm/go-termfmt"

	"github.com/dstriage/dstriage/internal/common"
)

// formatNumber formats numbers with commas for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return addCommas(fmt.Sprintf("%d", n))
}

// addCommas adds commas to number strings
func addCommas(s string) string {
	if len(s) <= 3 {
		return s
	}
	return addCommas(s[:len(s)-3]) + "," + s[len(s)-3:]
}

// severityEmoji returns the marker for a rolled-up envelope severity
// using go-termfmt
func severityEmoji(severity string, opts *termfmt.TerminalOptions) string {
	switch severity {
	case common.RollupCritical, common.RollupHigh:
		return termfmt.GetEmoji("error", opts)
	case common.RollupMedium:
		return termfmt.GetEmoji("warning", opts)
	default:
		return termfmt.GetEmoji("info", opts)
	}
}

// sectionEmoji resolves a section marker with an explicit fallback for
// keys the emoji set may not carry.
func sectionEmoji(key, fallback string, opts *termfmt.TerminalOptions) string {
	if symbol := termfmt.GetEmoji(key, opts); symbol != "" && symbol != "[?]" {
		return symbol
	}
	return fallback
}

// ComponentRow is one component's statistics pulled out of the envelope.
type ComponentRow struct {
	Name    string
	Entries int
	Errors  int
	Warning int
	Health  float64
}

// ComponentRows extracts component statistics from envelope details,
// ordered worst health first so problem components lead the report.
func ComponentRows(details map[string]any) []ComponentRow {
	components, ok := details["component_analysis"].(map[string]any)
	if !ok {
		return nil
	}

	rows := make([]ComponentRow, 0, len(components))
	for name, v := range components {
		stats, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, ComponentRow{
			Name:    name,
			Entries: asInt(stats["total_entries"]),
			Errors:  asInt(stats["errors"]),
			Warning: asInt(stats["warnings"]),
			Health:  asFloat(stats["health_score"]),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Health != rows[j].Health {
			return rows[i].Health < rows[j].Health
		}
		return rows[i].Name < rows[j].Name
	})

	return rows
}

// IssueRow is one known issue pulled out of the envelope.
type IssueRow struct {
	IssueType   string
	Severity    string
	Resolution  string
	Confidence  float64
	Source      string
	Occurrences int
}

// IssueRows extracts known-issue matches from envelope details, ordered
// by occurrence count descending.
func IssueRows(details map[string]any) []IssueRow {
	issues, ok := details["known_issues"].([]any)
	if !ok {
		return nil
	}

	rows := make([]IssueRow, 0, len(issues))
	for _, v := range issues {
		issue, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, IssueRow{
			IssueType:   asString(issue["issue_type"]),
			Severity:    asString(issue["severity"]),
			Resolution:  asString(issue["resolution"]),
			Confidence:  asFloat(issue["confidence"]),
			Source:      asString(issue["source"]),
			Occurrences: asInt(issue["occurrences"]),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Occurrences != rows[j].Occurrences {
			return rows[i].Occurrences > rows[j].Occurrences
		}
		return rows[i].IssueType < rows[j].IssueType
	})

	return rows
}

// EventRow is one notable event pulled out of the envelope raw data.
type EventRow struct {
	Severity   string
	Component  string
	Timestamp  string
	Line       int
	Source     string
	Message    string
	KnownIssue string
}

// EventRows extracts notable events from the envelope raw data. Single
// analyses carry their events directly; bundle envelopes nest them one
// level down under the per-type raw analyses.
func EventRows(output *common.StandardizedOutput) []EventRow {
	raw, ok := output.RawData.(map[string]any)
	if !ok {
		return nil
	}

	if events, ok := raw["events"].([]any); ok {
		return decodeEvents(events)
	}

	analyses, ok := raw["analyses"].(map[string]any)
	if !ok {
		return nil
	}

	types := make([]string, 0, len(analyses))
	for logType := range analyses {
		types = append(types, logType)
	}
	sort.Strings(types)

	var rows []EventRow
	for _, logType := range types {
		nested, ok := analyses[logType].(map[string]any)
		if !ok {
			continue
		}
		if events, ok := nested["events"].([]any); ok {
			rows = append(rows, decodeEvents(events)...)
		}
	}
	return rows
}

func decodeEvents(events []any) []EventRow {
	rows := make([]EventRow, 0, len(events))
	for _, v := range events {
		event, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, EventRow{
			Severity:   asString(event["severity"]),
			Component:  asString(event["component"]),
			Timestamp:  asString(event["timestamp"]),
			Line:       asInt(event["line"]),
			Source:     asString(event["source"]),
			Message:    asString(event["message"]),
			KnownIssue: asString(event["known_issue"]),
		})
	}
	return rows
}

// CorrelationBlock is the cross-log correlation block of a bundle envelope.
type CorrelationBlock struct {
	Score      int
	Timing     []map[string]any
	Components []map[string]any
	Error      string
}

// Correlations extracts the correlation block from bundle envelope
// details. Single-analysis envelopes have none.
func Correlations(details map[string]any) *CorrelationBlock {
	block, ok := details["correlation"].(map[string]any)
	if !ok {
		return nil
	}

	data := &CorrelationBlock{
		Score: asInt(block["correlation_score"]),
		Error: asString(block["error"]),
	}
	if timing, ok := block["timing_correlations"].([]map[string]any); ok {
		data.Timing = timing
	} else if timing, ok := block["timing_correlations"].([]any); ok {
		data.Timing = asMapSlice(timing)
	}
	if components, ok := block["component_correlations"].([]map[string]any); ok {
		data.Components = components
	} else if components, ok := block["component_correlations"].([]any); ok {
		data.Components = asMapSlice(components)
	}
	return data
}

func asMapSlice(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// escapeTableCell strips newlines and truncates long messages for
// single-line table output.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	if len(s) > 100 {
		s = s[:97] + "..."
	}

	return s
}

// asInt reads a numeric mapping value whether it came from native
// structs or a JSON round trip.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// asFloat reads a float mapping value with the same tolerance as asInt.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asStringSlice reads a string list that may have round-tripped through
// JSON as []any.
func asStringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
