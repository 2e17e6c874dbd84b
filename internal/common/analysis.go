package common

import (
	"time"
)

// Timespan bounds one analysis in raw timestamp strings. Start is set by the
// first parsed record carrying a timestamp; End is overwritten by every
// parsed record, so it reflects the last record seen, not the chronological
// maximum of an out-of-order file.
type Timespan struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// AnalysisSummary holds the running counts for one analyzer invocation.
type AnalysisSummary struct {
	TotalLines    int      `json:"total_lines"`
	ParsedLines   int      `json:"parsed_lines"`
	ErrorCount    int      `json:"error_count"`
	WarningCount  int      `json:"warning_count"`
	CriticalCount int      `json:"critical_count"`
	Timespan      Timespan `json:"timespan"`
}

// Add accumulates another summary into this one. Timespan bounds are merged
// lexically; in-format timestamps sort correctly as strings.
func (s *AnalysisSummary) Add(other AnalysisSummary) {
	s.TotalLines += other.TotalLines
	s.ParsedLines += other.ParsedLines
	s.ErrorCount += other.ErrorCount
	s.WarningCount += other.WarningCount
	s.CriticalCount += other.CriticalCount
	if other.Timespan.Start != "" && (s.Timespan.Start == "" || other.Timespan.Start < s.Timespan.Start) {
		s.Timespan.Start = other.Timespan.Start
	}
	if other.Timespan.End != "" && (s.Timespan.End == "" || other.Timespan.End > s.Timespan.End) {
		s.Timespan.End = other.Timespan.End
	}
}

// ComponentStats tallies classified events for one logical component within
// one run. Created on first sighting, mutated once per event, never deleted.
type ComponentStats struct {
	TotalEntries int     `json:"total_entries"`
	Errors       int     `json:"errors"`
	Warnings     int     `json:"warnings"`
	HealthScore  float64 `json:"health_score"`
}

// Analysis is the full result of one analyzer run, before standardization.
// KnownIssues holds one entry per distinct issue type; IssueCounts keeps the
// full occurrence tally, which keeps counting past the retained-event cap.
type Analysis struct {
	LogType         LogType                    `json:"log_type"`
	SourceFiles     []string                   `json:"source_files,omitempty"`
	Summary         AnalysisSummary            `json:"summary"`
	Components      map[string]*ComponentStats `json:"component_analysis"`
	Events          []*ClassifiedEvent         `json:"events,omitempty"`
	KnownIssues     []*KnownIssueMatch         `json:"known_issues,omitempty"`
	IssueCounts     map[string]int             `json:"issue_counts,omitempty"`
	Recommendations []string                   `json:"recommendations,omitempty"`
	AnalyzedAt      time.Time                  `json:"analyzed_at"`
	Duration        time.Duration              `json:"duration_ns"`
	Statistics      map[string]any             `json:"statistics,omitempty"`
}

// NewAnalysis creates an empty analysis for one log type.
func NewAnalysis(logType LogType) *Analysis {
	return &Analysis{
		LogType:     logType,
		Components:  make(map[string]*ComponentStats),
		IssueCounts: make(map[string]int),
		AnalyzedAt:  time.Now(),
	}
}

// RecordIssue notes one known-issue hit, keeping the first match per issue
// type and counting every occurrence.
func (a *Analysis) RecordIssue(match *KnownIssueMatch) {
	if match == nil || match.IssueType == "" {
		return
	}
	if a.IssueCounts == nil {
		a.IssueCounts = make(map[string]int)
	}
	if a.IssueCounts[match.IssueType] == 0 {
		a.KnownIssues = append(a.KnownIssues, match)
	}
	a.IssueCounts[match.IssueType]++
}

// Component returns the stats bucket for a component name, creating it on
// first sighting.
func (a *Analysis) Component(name string) *ComponentStats {
	if cs, ok := a.Components[name]; ok {
		return cs
	}
	cs := &ComponentStats{}
	a.Components[name] = cs
	return cs
}

// EventCounts returns per-severity counts over the retained notable events.
func (a *Analysis) EventCounts() map[string]int {
	counts := make(map[string]int)
	for _, ev := range a.Events {
		counts[ev.Severity.String()]++
	}
	return counts
}

// AsMap flattens the analysis into the generic mapping shape consumed by the
// output standardizer. The map is freshly built on every call.
func (a *Analysis) AsMap() map[string]any {
	components := make(map[string]any, len(a.Components))
	for name, cs := range a.Components {
		components[name] = map[string]any{
			"total_entries": cs.TotalEntries,
			"errors":        cs.Errors,
			"warnings":      cs.Warnings,
			"health_score":  cs.HealthScore,
		}
	}

	events := make([]any, 0, len(a.Events))
	for _, ev := range a.Events {
		entry := map[string]any{
			"severity":  ev.Severity.String(),
			"component": ev.ComponentName,
			"message":   ev.Record.Message,
			"timestamp": ev.Record.Timestamp,
			"line":      ev.Record.LineNumber,
		}
		if ev.Source != "" {
			entry["source"] = ev.Source
		}
		if ev.KnownIssue != nil {
			entry["known_issue"] = ev.KnownIssue.IssueType
		}
		events = append(events, entry)
	}

	issues := make([]any, 0, len(a.KnownIssues))
	for _, ki := range a.KnownIssues {
		issues = append(issues, map[string]any{
			"issue_type":  ki.IssueType,
			"severity":    ki.Severity,
			"resolution":  ki.Resolution,
			"confidence":  ki.Confidence,
			"source":      ki.Source,
			"occurrences": a.IssueCounts[ki.IssueType],
		})
	}

	m := map[string]any{
		"log_type": string(a.LogType),
		"summary": map[string]any{
			"total_lines":    a.Summary.TotalLines,
			"parsed_lines":   a.Summary.ParsedLines,
			"error_count":    a.Summary.ErrorCount,
			"warning_count":  a.Summary.WarningCount,
			"critical_count": a.Summary.CriticalCount,
			"timespan": map[string]any{
				"start": a.Summary.Timespan.Start,
				"end":   a.Summary.Timespan.End,
			},
		},
		"component_analysis": components,
		"events":             events,
		"known_issues":       issues,
		"recommendations":    append([]string(nil), a.Recommendations...),
		"analyzed_at":        a.AnalyzedAt.Format(time.RFC3339),
		"duration_ms":        a.Duration.Milliseconds(),
	}
	if len(a.SourceFiles) > 0 {
		m["source_files"] = append([]string(nil), a.SourceFiles...)
	}
	if len(a.Statistics) > 0 {
		m["statistics"] = a.Statistics
	}
	return m
}
