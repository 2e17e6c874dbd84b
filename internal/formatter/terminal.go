package formatter

import (
	"fmt"
	"strings"

	"github.com/yildizm/go-termfmt"

	"github.com/dstriage/dstriage/internal/common"
)

// maxTerminalComponents caps the component health tree; the full set is
// always available through the JSON and CSV formats.
const maxTerminalComponents = 8

// terminalFormatter formats envelopes as plain text for terminal display
// using go-termfmt
type terminalFormatter struct {
	opts *termfmt.TerminalOptions
}

// NewTerminal creates a new terminal formatter with optional color support
func NewTerminal(color bool) Formatter {
	opts := termfmt.DefaultOptions()
	opts.Color = color
	opts.Emoji = true
	return &terminalFormatter{opts: opts}
}

func (f *terminalFormatter) Format(output *common.StandardizedOutput) ([]byte, error) {
	var b strings.Builder

	f.writeHeader(&b)
	f.writeOverview(&b, output)

	// An error envelope carries its explanation in the overview; the
	// section extractors below come back empty for it.
	f.writeStatistics(&b, output)

	if rows := ComponentRows(output.Details); len(rows) > 0 {
		f.writeComponents(&b, rows)
	}

	if rows := IssueRows(output.Details); len(rows) > 0 {
		f.writeKnownIssues(&b, rows)
	}

	if corr := Correlations(output.Details); corr != nil {
		f.writeCorrelations(&b, corr)
	}

	f.writeRecommendations(&b, output.Recommendations)

	return []byte(b.String()), nil
}

// writeHeader writes the banner with box drawing
func (f *terminalFormatter) writeHeader(b *strings.Builder) {
	header := "Diagnostic Log Analysis"
	headerLen := len(header)

	b.WriteString("╔" + strings.Repeat("═", headerLen+2) + "╗\n")
	b.WriteString("║ " + header + " ║\n")
	b.WriteString("╚" + strings.Repeat("═", headerLen+2) + "╝\n\n")
}

// writeOverview writes the one-line summary and the rolled-up severity.
func (f *terminalFormatter) writeOverview(b *strings.Builder, output *common.StandardizedOutput) {
	symbol := sectionEmoji("summary", "📝", f.opts)
	fmt.Fprintf(b, "%s %s\n", symbol, output.Summary)
	fmt.Fprintf(b, "%s Analysis: %s | Status: %s | Severity: %s\n\n",
		severityEmoji(output.Severity, f.opts),
		output.AnalysisType, output.Status, output.Severity)
}

// writeStatistics writes statistics with tree-style formatting using
// go-termfmt
func (f *terminalFormatter) writeStatistics(b *strings.Builder, output *common.StandardizedOutput) {
	stats := output.Statistics
	if stats == nil {
		stats = map[string]any{}
	}

	symbol := termfmt.GetEmoji("statistics", f.opts)
	b.WriteString(symbol + " Statistics\n")

	totalLines := asInt(stats["total_lines"])
	parsedLines := asInt(stats["parsed_lines"])
	parseRate := 0.0
	if totalLines > 0 {
		parseRate = float64(parsedLines) / float64(totalLines) * 100
	}

	items := []termfmt.TreeItem{
		{Label: "Total Lines", Value: formatNumber(totalLines)},
		{Label: "Parsed Lines", Value: fmt.Sprintf("%s (%.1f%%)", formatNumber(parsedLines), parseRate)},
	}

	if logType := asString(output.Details["log_type"]); logType != "" {
		items = append(items, termfmt.TreeItem{Label: "Log Type", Value: logType})
	}
	if count, ok := output.Details["event_count"]; ok {
		items = append(items, termfmt.TreeItem{Label: "Notable Events", Value: formatNumber(asInt(count))})
	}

	// Bundle envelopes carry member accounting instead of a single file.
	if _, ok := stats["members"]; ok {
		items = append(items, termfmt.TreeItem{
			Label: "Bundle Members",
			Value: fmt.Sprintf("%d analyzed, %d skipped", asInt(stats["routed"]), asInt(stats["skipped"])),
		})
		if size := asString(stats["extracted_size"]); size != "" {
			items = append(items, termfmt.TreeItem{Label: "Extracted", Value: size})
		}
	}

	if ms, ok := stats["duration_ms"]; ok {
		items = append(items, termfmt.TreeItem{Label: "Duration", Value: fmt.Sprintf("%dms", asInt(ms))})
	}
	if perf, ok := stats["performance"].(map[string]any); ok {
		items = append(items, termfmt.TreeItem{
			Label: "Throughput",
			Value: fmt.Sprintf("%.0f lines/sec", asFloat(perf["lines_per_second"])),
		})
	}

	items[len(items)-1].Last = true

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

// writeComponents writes component health with bar indicators, worst
// health first
func (f *terminalFormatter) writeComponents(b *strings.Builder, rows []ComponentRow) {
	symbol := sectionEmoji("components", "🧩", f.opts)
	b.WriteString(symbol + " Component Health\n")

	if len(rows) > maxTerminalComponents {
		rows = rows[:maxTerminalComponents]
	}

	items := make([]termfmt.TreeItem, 0, len(rows))
	for i, row := range rows {
		bar := termfmt.CreateConfidenceBar(row.Health/100, f.opts)
		items = append(items, termfmt.TreeItem{
			Label: row.Name,
			Value: fmt.Sprintf("%s %.0f/100 (%d errors, %d warnings)",
				bar, row.Health, row.Errors, row.Warning),
			Last: i == len(rows)-1,
		})
	}

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

// writeKnownIssues writes matched known issues with confidence indicators
func (f *terminalFormatter) writeKnownIssues(b *strings.Builder, rows []IssueRow) {
	symbol := termfmt.GetEmoji("pattern", f.opts)
	b.WriteString(symbol + " Known Issues\n")

	items := make([]termfmt.TreeItem, 0, len(rows))
	for i, row := range rows {
		item := termfmt.TreeItem{
			Label: row.IssueType,
			Value: fmt.Sprintf("(%d occurrences, %.0f%% confidence)", row.Occurrences, row.Confidence*100),
			Last:  i == len(rows)-1,
		}
		if row.Resolution != "" {
			item.Children = []termfmt.TreeItem{
				{Label: "Resolution", Value: row.Resolution},
			}
		}
		items = append(items, item)
	}

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

// writeCorrelations writes the cross-log correlation block of a bundle
// envelope.
func (f *terminalFormatter) writeCorrelations(b *strings.Builder, corr *CorrelationBlock) {
	symbol := sectionEmoji("link", "🔗", f.opts)
	fmt.Fprintf(b, "%s Cross-Log Correlations (score %d/100)\n", symbol, corr.Score)

	if corr.Error != "" {
		fmt.Fprintf(b, "└─ correlation unavailable: %s\n\n", corr.Error)
		return
	}

	total := len(corr.Timing) + len(corr.Components)
	if total == 0 {
		b.WriteString("└─ no events lined up across log sources\n\n")
		return
	}

	written := 0
	branch := func() string {
		written++
		if written == total {
			return "└─"
		}
		return "├─"
	}

	for _, tc := range corr.Timing {
		fmt.Fprintf(b, "%s %s: %d events across %s\n",
			branch(), asString(tc["timeframe"]), asInt(tc["event_count"]),
			strings.Join(asStringSlice(tc["sources"]), ", "))
	}
	for _, cc := range corr.Components {
		fmt.Fprintf(b, "%s %s: %d events reported by %s\n",
			branch(), asString(cc["component"]), asInt(cc["event_count"]),
			strings.Join(asStringSlice(cc["affected_sources"]), ", "))
	}
	b.WriteString("\n")
}

// writeRecommendations writes the full recommendation list. The optional
// LLM summary rides as the last entry, so nothing is truncated here.
func (f *terminalFormatter) writeRecommendations(b *strings.Builder, recommendations []string) {
	symbol := termfmt.GetEmoji("recommendations", f.opts)
	b.WriteString(symbol + " Recommendations\n")

	if len(recommendations) == 0 {
		b.WriteString("• none\n")
		return
	}
	for _, rec := range recommendations {
		b.WriteString("• " + rec + "\n")
	}
}
