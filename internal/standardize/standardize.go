// Package standardize builds the fixed-shape output envelope from any
// analyzer result. The builder is defensive end to end: bad input is
// replaced, never rejected, and each envelope field is extracted behind
// its own failure boundary so one broken field cannot take down the rest
// of the envelope. Callers always get a well-formed envelope back.
package standardize

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/logging"
)

// Standardizer turns analyzer results into StandardizedOutput envelopes.
// Stateless; safe for concurrent use.
type Standardizer struct{}

// New creates a standardizer.
func New() *Standardizer {
	return &Standardizer{}
}

// Standardize builds the envelope for one analyzer result. Accepted inputs
// are *common.Analysis, a generic mapping, or nil; anything else is
// replaced by a synthetic error mapping before processing. The returned
// status is "completed" unless envelope assembly itself failed.
func (s *Standardizer) Standardize(raw any, analysisType string) (out *common.StandardizedOutput) {
	out = &common.StandardizedOutput{
		AnalysisType:    analysisType,
		Status:          common.StatusCompleted,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Details:         map[string]any{},
		Recommendations: []string{},
		Severity:        common.RollupLow,
		Statistics:      map[string]any{},
	}

	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("envelope assembly failed",
				zap.String("analysis_type", analysisType), zap.Any("cause", r))
			out = &common.StandardizedOutput{
				AnalysisType:    analysisType,
				Status:          common.StatusError,
				Timestamp:       time.Now().UTC().Format(time.RFC3339),
				Summary:         "The analysis result could not be standardized; the raw data is attached unmodified.",
				Details:         map[string]any{},
				Recommendations: []string{},
				Severity:        common.RollupLow,
				Statistics:      map[string]any{},
				RawData:         raw,
			}
		}
	}()

	data := normalize(raw, analysisType)
	out.RawData = data

	guarded("summary", func() { out.Summary = summaryText(data) })
	guarded("details", func() { out.Details = detailsFrom(data) })
	guarded("recommendations", func() { out.Recommendations = recommendationsFrom(data) })
	guarded("severity", func() { out.Severity = severityRollup(data) })
	guarded("statistics", func() { out.Statistics = statisticsFrom(data) })

	return out
}

// normalize coerces whatever the caller handed in into a mapping. Inputs
// that cannot be represented become a synthetic error mapping so the
// envelope still carries an explanation instead of a type error.
func normalize(raw any, analysisType string) map[string]any {
	switch v := raw.(type) {
	case *common.Analysis:
		if v == nil {
			return syntheticError(analysisType, "analyzer returned no result")
		}
		return v.AsMap()
	case map[string]any:
		if v == nil {
			return syntheticError(analysisType, "analyzer returned no result")
		}
		return v
	case nil:
		return syntheticError(analysisType, "analyzer returned no result")
	default:
		return syntheticError(analysisType, fmt.Sprintf("unexpected result type %T", raw))
	}
}

func syntheticError(analysisType, message string) map[string]any {
	return map[string]any{
		"analysis_type": analysisType,
		"error":         message,
	}
}

// guarded runs one field extractor behind a recover boundary. A panicking
// extractor leaves its field at the default; the rest of the envelope is
// unaffected.
func guarded(field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Warn("envelope field extraction failed",
				zap.String("field", field), zap.Any("cause", r))
		}
	}()
	fn()
}

func summaryText(data map[string]any) string {
	if msg, ok := data["error"].(string); ok && msg != "" {
		return "Analysis produced no result: " + msg
	}
	summary, _ := data["summary"].(map[string]any)
	if summary == nil {
		return "Analysis completed with no summary data."
	}
	return fmt.Sprintf("Parsed %d of %d lines: %d critical, %d errors, %d warnings.",
		asInt(summary["parsed_lines"]),
		asInt(summary["total_lines"]),
		asInt(summary["critical_count"]),
		asInt(summary["error_count"]),
		asInt(summary["warning_count"]))
}

func detailsFrom(data map[string]any) map[string]any {
	details := make(map[string]any)
	for _, key := range []string{"log_type", "component_analysis", "known_issues", "source_files"} {
		if v, ok := data[key]; ok {
			details[key] = v
		}
	}
	if summary, ok := data["summary"].(map[string]any); ok {
		if ts, ok := summary["timespan"]; ok {
			details["timespan"] = ts
		}
	}
	if events, ok := data["events"].([]any); ok {
		details["event_count"] = len(events)
	}
	if msg, ok := data["error"].(string); ok && msg != "" {
		details["error"] = msg
	}
	return details
}

func recommendationsFrom(data map[string]any) []string {
	switch v := data["recommendations"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// severityRollup grades the whole analysis for a consumer deciding how
// urgently to look at it.
func severityRollup(data map[string]any) string {
	summary, _ := data["summary"].(map[string]any)
	if summary == nil {
		return common.RollupLow
	}
	return RollupFromCounts(
		asInt(summary["critical_count"]),
		asInt(summary["error_count"]),
		asInt(summary["warning_count"]))
}

// RollupFromCounts applies the envelope severity thresholds to raw counts.
func RollupFromCounts(critical, errors, warnings int) string {
	switch {
	case critical > 0:
		return common.RollupCritical
	case errors > 5:
		return common.RollupHigh
	case errors > 0 || warnings > 10:
		return common.RollupMedium
	default:
		return common.RollupLow
	}
}

func statisticsFrom(data map[string]any) map[string]any {
	stats := make(map[string]any)
	if summary, ok := data["summary"].(map[string]any); ok {
		stats["total_lines"] = asInt(summary["total_lines"])
		stats["parsed_lines"] = asInt(summary["parsed_lines"])
	}
	if v, ok := data["duration_ms"]; ok {
		stats["duration_ms"] = v
	}
	if v, ok := data["analyzed_at"]; ok {
		stats["analyzed_at"] = v
	}
	if extra, ok := data["statistics"].(map[string]any); ok {
		for k, v := range extra {
			stats[k] = v
		}
	}
	return stats
}

// asInt reads a numeric mapping value whether it came from native structs
// or a JSON round trip.
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
