package llm

import (
	"context"
	"strings"

	"github.com/yildizm/go-promptfmt"

	"github.com/dstriage/dstriage/internal/common"
)

// RunbookLookup returns prompt-ready excerpts for a query. The CLI wires
// one from the knowledge base when a runbook directory is configured.
type RunbookLookup func(query string, limit int) []RunbookExcerpt

// runbookContextLimit caps how many excerpts ride along in a prompt.
const runbookContextLimit = 3

// Summarizer adapts a Client to the analyzer's summary hook.
type Summarizer struct {
	client    Client
	runbooks  RunbookLookup
	maxTokens int
}

// NewSummarizer wraps a client for analysis summaries.
func NewSummarizer(client Client) *Summarizer {
	return &Summarizer{client: client, maxTokens: 500}
}

// WithRunbooks adds knowledge-base excerpts to the summary prompt.
func (s *Summarizer) WithRunbooks(lookup RunbookLookup) *Summarizer {
	s.runbooks = lookup
	return s
}

// Summarize generates a free-text summary of the analysis. An unset client
// reports success with no text so callers need no nil checks.
func (s *Summarizer) Summarize(ctx context.Context, analysis *common.Analysis) (string, error) {
	if s.client == nil || analysis == nil {
		return "", nil
	}

	pattern := NewTriagePattern().WithAnalysis(analysis)
	if s.runbooks != nil {
		if query := issueQuery(analysis); query != "" {
			pattern.WithRunbooks(s.runbooks(query, runbookContextLimit))
		}
	}

	prompt := pattern.Build()
	resp, err := s.client.Complete(ctx, &Request{
		Prompt:       prompt.String(),
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    s.maxTokens,
		Temperature:  0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// issueQuery condenses an analysis into the terms worth searching the
// knowledge base for.
func issueQuery(analysis *common.Analysis) string {
	terms := make([]string, 0, len(analysis.KnownIssues)+1)
	for _, issue := range analysis.KnownIssues {
		terms = append(terms, issue.IssueType)
	}
	if len(terms) == 0 {
		return ""
	}
	terms = append(terms, string(analysis.LogType))
	return strings.Join(terms, " ")
}

// Classifier adapts a Client to the analyzer's secondary known-issue hook.
// Matches below the confidence floor are discarded rather than surfaced
// with a hedge.
type Classifier struct {
	client        Client
	minConfidence float64
}

// NewClassifier wraps a client for known-issue classification.
func NewClassifier(client Client) *Classifier {
	return &Classifier{client: client, minConfidence: 0.6}
}

// ClassifyIssue asks the backend to classify one log message. A
// non-answer, an unparseable answer or a low-confidence answer all come
// back as (nil, nil); only transport failures are errors.
func (c *Classifier) ClassifyIssue(ctx context.Context, message string) (*common.KnownIssueMatch, error) {
	if c.client == nil || message == "" {
		return nil, nil
	}

	prompt := classifyPrompt(message)
	resp, err := c.client.Complete(ctx, &Request{
		Prompt:       prompt.String(),
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    300,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, err
	}

	var result issueClassification
	parsed := promptfmt.NewResponse(resp.Content).TryParseJSON(&result)
	if !parsed.Success {
		return nil, nil
	}
	if result.IssueType == "" || result.IssueType == "none" || result.Confidence < c.minConfidence {
		return nil, nil
	}

	severity := result.Severity
	if severity == "" {
		severity = "error"
	}

	return &common.KnownIssueMatch{
		IssueType:   result.IssueType,
		Severity:    severity,
		Description: result.Description,
		Resolution:  result.Resolution,
		Confidence:  result.Confidence,
		Source:      common.MatchSourceLLM,
	}, nil
}
