package llm

import (
	"fmt"
	"sort"

	"github.com/yildizm/go-promptfmt"

	"github.com/dstriage/dstriage/internal/common"
)

// RunbookExcerpt is one knowledge-base document offered to the model as
// remediation context.
type RunbookExcerpt struct {
	Title   string
	Excerpt string
}

// TriagePattern builds the analysis-summary prompt from an aggregated
// analysis: the counters, the worst components, the known issues and any
// runbook excerpts, with hard instructions against inventing events.
type TriagePattern struct {
	promptfmt.BasePattern
	Analysis      *common.Analysis
	Runbooks      []RunbookExcerpt
	MaxComponents int
	MaxIssues     int
}

// NewTriagePattern creates the summary pattern with its defaults.
func NewTriagePattern() *TriagePattern {
	return &TriagePattern{
		BasePattern: promptfmt.BasePattern{
			Description: "Summarizes a security agent log analysis for a support engineer",
			Tags:        []string{"log-analysis", "security-agent", "triage"},
		},
		MaxComponents: 5,
		MaxIssues:     5,
	}
}

// WithAnalysis attaches the analysis to summarize.
func (p *TriagePattern) WithAnalysis(analysis *common.Analysis) *TriagePattern {
	p.Analysis = analysis
	return p
}

// WithRunbooks attaches knowledge-base excerpts as remediation context.
func (p *TriagePattern) WithRunbooks(excerpts []RunbookExcerpt) *TriagePattern {
	p.Runbooks = excerpts
	return p
}

// Build assembles the prompt.
func (p *TriagePattern) Build() *promptfmt.Prompt {
	const system = "You are a support engineer's assistant for a host security agent. " +
		"Summarize diagnostic log analyses factually and concisely. " +
		"Never invent events that are not in the data."

	if p.Analysis == nil {
		return promptfmt.New().
			System(system).
			User("Summarize the provided security agent diagnostic data.").
			Build()
	}

	summary := p.Analysis.Summary
	pb := promptfmt.New().
		System(system).
		User("Summarize this %s log analysis in at most four sentences for a support case.\n\n"+
			"Lines: %d parsed of %d\nCritical: %d, Errors: %d, Warnings: %d\nTimespan: %s to %s",
			p.Analysis.LogType,
			summary.ParsedLines, summary.TotalLines,
			summary.CriticalCount, summary.ErrorCount, summary.WarningCount,
			summary.Timespan.Start, summary.Timespan.End)

	p.addComponentContext(pb)
	p.addIssueContext(pb)
	p.addRunbookContext(pb)

	return pb.Build()
}

// addComponentContext lists the unhealthiest components, worst first.
func (p *TriagePattern) addComponentContext(pb *promptfmt.PromptBuilder) {
	if len(p.Analysis.Components) == 0 {
		return
	}

	names := make([]string, 0, len(p.Analysis.Components))
	for name := range p.Analysis.Components {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := p.Analysis.Components[names[i]], p.Analysis.Components[names[j]]
		if a.HealthScore != b.HealthScore {
			return a.HealthScore < b.HealthScore
		}
		return names[i] < names[j]
	})

	text := "Component health:\n"
	for i, name := range names {
		if i >= p.MaxComponents {
			break
		}
		stats := p.Analysis.Components[name]
		text += fmt.Sprintf("- %s: health %.0f, %d errors, %d warnings\n",
			name, stats.HealthScore, stats.Errors, stats.Warnings)
	}
	pb.AddContext("components", text)
}

func (p *TriagePattern) addIssueContext(pb *promptfmt.PromptBuilder) {
	if len(p.Analysis.KnownIssues) == 0 {
		return
	}

	text := "Known issues matched:\n"
	for i, issue := range p.Analysis.KnownIssues {
		if i >= p.MaxIssues {
			break
		}
		text += fmt.Sprintf("- %s (seen %d times): %s\n",
			issue.IssueType, p.Analysis.IssueCounts[issue.IssueType], issue.Description)
	}
	pb.AddContext("known_issues", text)
}

func (p *TriagePattern) addRunbookContext(pb *promptfmt.PromptBuilder) {
	if len(p.Runbooks) == 0 {
		return
	}

	text := "Runbook excerpts (cite by title when relevant):\n"
	for _, excerpt := range p.Runbooks {
		text += fmt.Sprintf("- %s: %s\n", excerpt.Title, excerpt.Excerpt)
	}
	pb.AddContext("runbooks", text)
}

// issueClassification is the JSON shape the classifier prompt demands.
type issueClassification struct {
	IssueType   string  `json:"issue_type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Resolution  string  `json:"resolution"`
	Confidence  float64 `json:"confidence"`
}

// classifyPrompt builds the secondary known-issue classification prompt
// for one log message.
func classifyPrompt(message string) *promptfmt.Prompt {
	return promptfmt.New().
		System("You classify security agent log lines against known issue families "+
			"(connectivity, certificates, drivers, disk, patterns, policy). "+
			"Answer with JSON only. Use issue_type \"none\" when nothing fits, "+
			"and a confidence between 0 and 1.").
		User("Classify this log line:\n\n%s", message).
		ExpectJSON(&issueClassification{}).
		Build()
}
