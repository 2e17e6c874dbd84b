package analyzer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/logging"
)

// KnownIssueMatcher checks records against the hand-curated known-issue
// signatures. The static substring path is authoritative; a fitted fuzzy
// matcher and an external LLM classifier are optional secondary paths that
// only run when the static table has no hit.
type KnownIssueMatcher struct {
	issues     []common.KnownIssue
	signatures []string
	fuzzy      *FuzzyMatcher
	classifier IssueClassifier
}

// NewKnownIssueMatcher builds a matcher over the table's issue list.
func NewKnownIssueMatcher(table *common.PatternTable, opts Options) *KnownIssueMatcher {
	m := &KnownIssueMatcher{
		issues:     table.KnownIssues,
		signatures: make([]string, len(table.KnownIssues)),
		classifier: opts.IssueClassifier,
	}
	for i, issue := range table.KnownIssues {
		m.signatures[i] = strings.ToLower(issue.Signature)
	}
	if opts.FuzzyThreshold > 0 {
		m.fuzzy = NewFuzzyMatcher(table.KnownIssues, opts.FuzzyThreshold)
	}
	return m
}

// Match returns the known-issue annotation for a record, or nil. The
// severity gates the LLM path: only error-grade records are worth an
// external call.
func (m *KnownIssueMatcher) Match(ctx context.Context, record *common.LogRecord, severity common.Severity) *common.KnownIssueMatch {
	if record == nil || !record.Parsed || record.Message == "" {
		return nil
	}

	lowered := strings.ToLower(record.Message)
	for i, sig := range m.signatures {
		if sig == "" || !strings.Contains(lowered, sig) {
			continue
		}
		issue := m.issues[i]
		return &common.KnownIssueMatch{
			IssueType:   issue.IssueType,
			Severity:    issue.Severity,
			Description: issue.Description,
			Resolution:  issue.Resolution,
			Impact:      issue.Impact,
			Confidence:  1.0,
			Source:      common.MatchSourceStatic,
		}
	}

	if match := m.fuzzy.Match(record.Message); match != nil {
		return match
	}

	if m.classifier != nil && severity >= common.SeverityError {
		match, err := m.classifier.ClassifyIssue(ctx, record.Message)
		if err != nil {
			logging.L().Debug("issue classifier unavailable",
				zap.Int("line", record.LineNumber),
				zap.Error(err))
			return nil
		}
		if match != nil {
			match.Source = common.MatchSourceLLM
			return match
		}
	}

	return nil
}
