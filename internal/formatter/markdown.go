package formatter

import (
	"fmt"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// maxMarkdownEvents caps the notable-event table in reports.
const maxMarkdownEvents = 10

// markdownFormatter formats envelopes as Markdown reports
type markdownFormatter struct{}

// NewMarkdown creates a new Markdown formatter
func NewMarkdown() Formatter {
	return &markdownFormatter{}
}

func (f *markdownFormatter) Format(output *common.StandardizedOutput) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Diagnostic Analysis Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", output.Timestamp)

	components := ComponentRows(output.Details)
	issues := IssueRows(output.Details)
	events := EventRows(output)
	corr := Correlations(output.Details)

	f.writeTableOfContents(&b, components, issues, events, corr)
	f.writeSummary(&b, output)

	if len(components) > 0 {
		f.writeComponentTable(&b, components)
	}
	if len(issues) > 0 {
		f.writeIssueSections(&b, issues)
	}
	if len(events) > 0 {
		f.writeEventTable(&b, events)
	}
	if corr != nil {
		f.writeCorrelationSection(&b, corr)
	}

	f.writeRecommendations(&b, output.Recommendations)

	return []byte(b.String()), nil
}

func (f *markdownFormatter) writeTableOfContents(b *strings.Builder,
	components []ComponentRow, issues []IssueRow, events []EventRow, corr *CorrelationBlock) {
	b.WriteString("## Table of Contents\n")
	b.WriteString("- [Summary](#summary)\n")

	if len(components) > 0 {
		b.WriteString("- [Component Health](#component-health)\n")
	}
	if len(issues) > 0 {
		b.WriteString("- [Known Issues](#known-issues)\n")
	}
	if len(events) > 0 {
		b.WriteString("- [Notable Events](#notable-events)\n")
	}
	if corr != nil {
		b.WriteString("- [Cross-Log Correlations](#cross-log-correlations)\n")
	}

	b.WriteString("- [Recommendations](#recommendations)\n\n")
}

// writeSummary writes the envelope overview as a metric table
func (f *markdownFormatter) writeSummary(b *strings.Builder, output *common.StandardizedOutput) {
	b.WriteString("## Summary\n\n")
	b.WriteString(output.Summary + "\n\n")

	totalLines := asInt(output.Statistics["total_lines"])
	parsedLines := asInt(output.Statistics["parsed_lines"])
	parseRate := 0.0
	if totalLines > 0 {
		parseRate = float64(parsedLines) / float64(totalLines) * 100
	}

	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(b, "| Analysis | %s |\n", output.AnalysisType)
	fmt.Fprintf(b, "| Status | %s |\n", output.Status)
	fmt.Fprintf(b, "| Severity | %s |\n", output.Severity)
	fmt.Fprintf(b, "| Total Lines | %s |\n", formatNumber(totalLines))
	fmt.Fprintf(b, "| Parsed Lines | %s (%.1f%%) |\n", formatNumber(parsedLines), parseRate)
	if _, ok := output.Statistics["members"]; ok {
		fmt.Fprintf(b, "| Bundle Members | %d analyzed, %d skipped |\n",
			asInt(output.Statistics["routed"]), asInt(output.Statistics["skipped"]))
	}
	if ms, ok := output.Statistics["duration_ms"]; ok {
		fmt.Fprintf(b, "| Duration | %dms |\n", asInt(ms))
	}
	b.WriteString("\n")
}

// writeComponentTable writes per-component statistics, worst health first
func (f *markdownFormatter) writeComponentTable(b *strings.Builder, rows []ComponentRow) {
	b.WriteString("## Component Health\n\n")
	b.WriteString("| Component | Entries | Errors | Warnings | Health |\n")
	b.WriteString("|-----------|---------|--------|----------|--------|\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %d | %d | %d | %.1f |\n",
			row.Name, row.Entries, row.Errors, row.Warning, row.Health)
	}
	b.WriteString("\n")
}

// writeIssueSections writes one section per matched known issue
func (f *markdownFormatter) writeIssueSections(b *strings.Builder, rows []IssueRow) {
	b.WriteString("## Known Issues\n\n")

	for _, row := range rows {
		fmt.Fprintf(b, "### %s (%d occurrences)\n\n", row.IssueType, row.Occurrences)
		fmt.Fprintf(b, "**Severity**: %s | **Confidence**: %.0f%% | **Matched by**: %s\n\n",
			row.Severity, row.Confidence*100, row.Source)
		if row.Resolution != "" {
			fmt.Fprintf(b, "**Resolution**: %s\n\n", row.Resolution)
		}
	}
}

// writeEventTable writes the notable events, capped for readability
func (f *markdownFormatter) writeEventTable(b *strings.Builder, rows []EventRow) {
	b.WriteString("## Notable Events\n\n")

	total := len(rows)
	if total > maxMarkdownEvents {
		rows = rows[:maxMarkdownEvents]
	}

	b.WriteString("| Severity | Component | Line | Message |\n")
	b.WriteString("|----------|-----------|------|--------|\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s | %d | %s |\n",
			row.Severity, row.Component, row.Line, escapeTableCell(row.Message))
	}
	if total > maxMarkdownEvents {
		fmt.Fprintf(b, "\n%d more event(s) omitted.\n", total-maxMarkdownEvents)
	}
	b.WriteString("\n")
}

// writeCorrelationSection writes cross-log correlation findings
func (f *markdownFormatter) writeCorrelationSection(b *strings.Builder, corr *CorrelationBlock) {
	b.WriteString("## Cross-Log Correlations\n\n")
	fmt.Fprintf(b, "**Correlation score**: %d/100\n\n", corr.Score)

	if corr.Error != "" {
		fmt.Fprintf(b, "Correlation unavailable: %s\n\n", corr.Error)
		return
	}

	if len(corr.Timing) > 0 {
		b.WriteString("| Timeframe | Events | Sources |\n")
		b.WriteString("|-----------|--------|--------|\n")
		for _, tc := range corr.Timing {
			fmt.Fprintf(b, "| %s | %d | %s |\n",
				asString(tc["timeframe"]), asInt(tc["event_count"]),
				strings.Join(asStringSlice(tc["sources"]), ", "))
		}
		b.WriteString("\n")
	}

	if len(corr.Components) > 0 {
		b.WriteString("| Component | Events | Affected Sources |\n")
		b.WriteString("|-----------|--------|------------------|\n")
		for _, cc := range corr.Components {
			fmt.Fprintf(b, "| %s | %d | %s |\n",
				asString(cc["component"]), asInt(cc["event_count"]),
				strings.Join(asStringSlice(cc["affected_sources"]), ", "))
		}
		b.WriteString("\n")
	}
}

// writeRecommendations writes the numbered recommendation list
func (f *markdownFormatter) writeRecommendations(b *strings.Builder, recommendations []string) {
	b.WriteString("## Recommendations\n\n")

	if len(recommendations) == 0 {
		b.WriteString("None.\n")
	}
	for i, rec := range recommendations {
		fmt.Fprintf(b, "%d. %s\n", i+1, rec)
	}

	b.WriteString("\n---\n")
	b.WriteString("*Report generated by dstriage*\n")
}
