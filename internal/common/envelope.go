package common

// Envelope statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Rolled-up envelope severities (distinct from event Severity: these grade
// the whole analysis for a consumer deciding how urgently to look at it).
const (
	RollupCritical = "critical"
	RollupHigh     = "high"
	RollupMedium   = "medium"
	RollupLow      = "low"
)

// StandardizedOutput is the fixed-shape envelope every analyzer returns to
// any caller. RawData always carries the original analyzer-specific result
// verbatim so nothing is lost when the standardized view is degraded.
type StandardizedOutput struct {
	AnalysisType    string         `json:"analysis_type"`
	Status          string         `json:"status"`
	Timestamp       string         `json:"timestamp"`
	Summary         string         `json:"summary"`
	Details         map[string]any `json:"details"`
	Recommendations []string       `json:"recommendations"`
	Severity        string         `json:"severity"`
	Statistics      map[string]any `json:"statistics"`
	RawData         any            `json:"raw_data"`
}
