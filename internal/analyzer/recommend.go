package analyzer

import (
	"fmt"
	"sort"

	"github.com/dstriage/dstriage/internal/common"
)

// Recommendation thresholds. Rules append independently in evaluation
// order; callers wanting severity-sorted output must re-sort.
const (
	errorCountThreshold     = 10
	warningCountThreshold   = 10
	componentErrorThreshold = 5
	recurringIssueThreshold = 10
)

// Recommender turns aggregated counts and known-issue matches into ordered
// remediation guidance. Purely rule-based and deterministic; the optional
// LLM summary is appended by the engine afterwards.
type Recommender struct {
	runbooks RunbookFinder
}

// NewRecommender creates a recommender. A nil finder disables runbook
// references.
func NewRecommender(runbooks RunbookFinder) *Recommender {
	return &Recommender{runbooks: runbooks}
}

// Generate produces the recommendation list for an analysis. The default
// closing message only appears when no other rule fired.
func (r *Recommender) Generate(analysis *common.Analysis) []string {
	recommendations := make([]string, 0, 4)
	summary := analysis.Summary

	if summary.CriticalCount > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"URGENT: %d critical event(s) detected. Review the critical findings below and open a support case if a vendor engine failure is involved.",
			summary.CriticalCount))
	}

	if summary.ErrorCount > errorCountThreshold {
		recommendations = append(recommendations, fmt.Sprintf(
			"High error volume: %d errors recorded. Investigate the most affected components before applying configuration changes.",
			summary.ErrorCount))
	}

	if summary.WarningCount > warningCountThreshold {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d warnings recorded. Review warning trends to catch degradations before they escalate to errors.",
			summary.WarningCount))
	}

	for _, name := range sortedComponentNames(analysis.Components) {
		stats := analysis.Components[name]
		if stats.Errors > componentErrorThreshold {
			recommendations = append(recommendations, fmt.Sprintf(
				"Component %q logged %d errors (health %.0f). Focus remediation on this subsystem first.",
				name, stats.Errors, stats.HealthScore))
		}
	}

	for _, issue := range analysis.KnownIssues {
		count := analysis.IssueCounts[issue.IssueType]
		if count > recurringIssueThreshold {
			text := fmt.Sprintf(
				"Recurring known issue %q seen %d times: %s",
				issue.IssueType, count, issue.Resolution)
			if r.runbooks != nil {
				if title, path, ok := r.runbooks.FindRunbook(issue.IssueType + " " + issue.Description); ok {
					text += fmt.Sprintf("; see runbook: %s (%s)", title, path)
				}
			}
			recommendations = append(recommendations, text)
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"No significant issues detected. Agent logs look healthy; no action required.")
	}

	return recommendations
}

func sortedComponentNames(components map[string]*common.ComponentStats) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
