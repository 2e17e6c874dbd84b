// Package analyzer implements the per-log-type analysis pipeline: parse,
// classify, identify, match known issues, aggregate, recommend. One Engine
// is built per log type from its pattern table; the engine owns no global
// state and tables are read-only after construction, so engines are safe to
// share across goroutines.
package analyzer

import (
	"context"

	"github.com/dstriage/dstriage/internal/common"
)

// Analyzer is the contract every log-type analyzer implements.
type Analyzer interface {
	// LogType returns the log family this analyzer handles.
	LogType() common.LogType

	// Analyze runs the full pipeline over one or more files and returns
	// the consolidated analysis. File-access and file-type failures abort
	// with an error; everything downstream degrades instead of aborting.
	Analyze(ctx context.Context, paths ...string) (*common.Analysis, error)
}

// Summarizer produces a free-text summary of an analysis. Implementations
// wrap an external text-generation service; the engine treats every call as
// best-effort.
type Summarizer interface {
	Summarize(ctx context.Context, analysis *common.Analysis) (string, error)
}

// IssueClassifier is the optional secondary known-issue path consulted when
// the static table has no match. Best-effort; errors are logged and
// swallowed.
type IssueClassifier interface {
	ClassifyIssue(ctx context.Context, message string) (*common.KnownIssueMatch, error)
}

// RunbookFinder resolves a known-issue query to a remediation document.
// A miss is reported through ok, never as an error.
type RunbookFinder interface {
	FindRunbook(query string) (title, path string, ok bool)
}

// ProgressSink receives coarse progress checkpoints. Reports are
// fire-and-forget: implementations must not block and their failures never
// reach the analysis.
type ProgressSink interface {
	Report(stage, message string, percent int)
}

// NoopProgress discards progress reports.
type NoopProgress struct{}

// Report implements ProgressSink.
func (NoopProgress) Report(string, string, int) {}

// Options tunes an engine. Zero values fall back to defaults.
type Options struct {
	// MaxLines caps how many physical lines one file contributes.
	MaxLines int

	// MaxLineLength is the scanner token limit per physical line.
	MaxLineLength int

	// MaxEvents caps how many classified events are retained per run.
	// Counting continues past the cap; only event retention stops.
	MaxEvents int

	// Progress receives checkpoint reports. Nil means no reporting.
	Progress ProgressSink

	// Summarizer appends an LLM summary to the recommendations when set.
	Summarizer Summarizer

	// IssueClassifier enables the secondary known-issue path when set.
	IssueClassifier IssueClassifier

	// Runbooks lets recommendations cite remediation documents for
	// recurring known issues. Nil means no knowledge base.
	Runbooks RunbookFinder

	// FuzzyThreshold is the minimum cosine similarity for a fuzzy
	// known-issue match. Zero disables the fuzzy path.
	FuzzyThreshold float64

	// Heuristic enables the feature-score classifier alongside the
	// pattern tables. The deterministic table path stays authoritative;
	// heuristic scores are reported in statistics only.
	Heuristic bool

	// HealthErrorWeight and HealthWarningWeight are the per-event
	// penalties in the component health score. Errors must stay the
	// heavier penalty.
	HealthErrorWeight   float64
	HealthWarningWeight float64
}

const (
	// DefaultMaxEvents bounds retained events per analysis.
	DefaultMaxEvents = 500

	// progressEveryLines is the checkpoint interval inside one file.
	progressEveryLines = 1000
)

func (o Options) withDefaults() Options {
	if o.MaxLines <= 0 {
		o.MaxLines = 10000
	}
	if o.MaxEvents <= 0 {
		o.MaxEvents = DefaultMaxEvents
	}
	if o.Progress == nil {
		o.Progress = NoopProgress{}
	}
	if o.HealthErrorWeight <= 0 {
		o.HealthErrorWeight = 10
	}
	if o.HealthWarningWeight <= 0 {
		o.HealthWarningWeight = 2
	}
	return o
}
