package correlation

// TimingCorrelation is one group of events that happened close together,
// possibly across different log sources.
type TimingCorrelation struct {
	Timeframe   string   `json:"timeframe"`
	EventCount  int      `json:"event_count"`
	Sources     []string `json:"sources"`
	SeverityMix []string `json:"severity_mix"`
}

// ComponentCorrelation is one component with issues reported by two or
// more distinct log sources.
type ComponentCorrelation struct {
	Component       string   `json:"component"`
	AffectedSources []string `json:"affected_sources"`
	EventCount      int      `json:"event_count"`
	SeverityLevels  []string `json:"severity_levels"`
}

// Result is the cross-log correlation summary for one diagnostic bundle.
// Error carries the failure text when correlation itself broke; the rest
// of the bundle analysis is unaffected either way.
type Result struct {
	TimingCorrelations    []TimingCorrelation    `json:"timing_correlations"`
	ComponentCorrelations []ComponentCorrelation `json:"component_correlations"`
	Score                 int                    `json:"correlation_score"`
	Error                 string                 `json:"error,omitempty"`
}

// AsMap renders the result in the envelope's mapping vocabulary.
func (r *Result) AsMap() map[string]any {
	timing := make([]map[string]any, 0, len(r.TimingCorrelations))
	for _, tc := range r.TimingCorrelations {
		timing = append(timing, map[string]any{
			"timeframe":    tc.Timeframe,
			"event_count":  tc.EventCount,
			"sources":      tc.Sources,
			"severity_mix": tc.SeverityMix,
		})
	}

	components := make([]map[string]any, 0, len(r.ComponentCorrelations))
	for _, cc := range r.ComponentCorrelations {
		components = append(components, map[string]any{
			"component":        cc.Component,
			"affected_sources": cc.AffectedSources,
			"event_count":      cc.EventCount,
			"severity_levels":  cc.SeverityLevels,
		})
	}

	out := map[string]any{
		"timing_correlations":    timing,
		"component_correlations": components,
		"correlation_score":      r.Score,
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	return out
}
