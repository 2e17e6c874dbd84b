package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/logging"
	"github.com/dstriage/dstriage/internal/parser"
)

// Engine is the generic per-log-type analyzer: one pattern table, one
// parser, shared aggregation. Engines hold no per-run state and are safe
// for concurrent Analyze calls.
type Engine struct {
	logType     common.LogType
	lineParser  parser.LineParser
	classifier  *Classifier
	components  *ComponentIdentifier
	issues      *KnownIssueMatcher
	recommender *Recommender
	heuristic   *HeuristicScorer
	opts        Options
}

// NewEngine builds an analyzer from a pattern table and its parser.
func NewEngine(table *common.PatternTable, lineParser parser.LineParser, opts Options) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("nil pattern table")
	}
	if lineParser == nil {
		return nil, fmt.Errorf("nil parser")
	}
	opts = opts.withDefaults()

	classifier, err := NewClassifier(table)
	if err != nil {
		return nil, fmt.Errorf("classifier for %s: %w", table.LogType, err)
	}
	components, err := NewComponentIdentifier(table)
	if err != nil {
		return nil, fmt.Errorf("components for %s: %w", table.LogType, err)
	}

	e := &Engine{
		logType:     table.LogType,
		lineParser:  lineParser,
		classifier:  classifier,
		components:  components,
		issues:      NewKnownIssueMatcher(table, opts),
		recommender: NewRecommender(opts.Runbooks),
		opts:        opts,
	}
	if opts.Heuristic {
		e.heuristic = NewHeuristicScorer(table)
	}
	return e, nil
}

// LogType returns the log family this engine analyzes.
func (e *Engine) LogType() common.LogType { return e.logType }

// Analyze runs the pipeline over the given files. Multiple files are
// analyzed one by one and consolidated: summary fields sum, component
// counters merge, timespan bounds widen. Any file failure aborts the whole
// call; partial results are not returned.
func (e *Engine) Analyze(ctx context.Context, paths ...string) (*common.Analysis, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to analyze")
	}
	start := time.Now()
	e.opts.Progress.Report("init", fmt.Sprintf("analyzing %d file(s)", len(paths)), 0)

	r := &run{engine: e}

	parts := make([]*common.Analysis, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := r.analyzeFile(ctx, path, i, len(paths))
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	var analysis *common.Analysis
	if len(parts) == 1 {
		analysis = parts[0]
	} else {
		analysis = consolidate(e.logType, parts, e.opts.MaxEvents)
	}

	if len(r.scores) > 0 {
		if analysis.Statistics == nil {
			analysis.Statistics = make(map[string]any)
		}
		analysis.Statistics["heuristic"] = map[string]any{
			"mean_score":     MeanScore(r.scores),
			"scored_records": len(r.scores),
		}
	}

	e.finalize(ctx, analysis)
	analysis.Duration = time.Since(start)
	e.opts.Progress.Report("done", "analysis complete", 100)
	return analysis, nil
}

// run carries the state of one Analyze call.
type run struct {
	engine *Engine
	scores []float64
}

// analyzeFile walks one file through parse, classify, identify, match and
// accumulate. The file-type guard runs per line so a wrongly uploaded file
// fails fast instead of skewing the aggregates.
func (r *run) analyzeFile(ctx context.Context, path string, fileIndex, fileCount int) (*common.Analysis, error) {
	e := r.engine
	analysis := common.NewAnalysis(e.logType)
	analysis.SourceFiles = []string{path}

	if fp, ok := e.lineParser.(parser.FileParser); ok {
		records, err := fp.ParseFile(path, e.opts.MaxLines)
		if err != nil {
			return nil, err
		}
		for i, record := range records {
			if i%progressEveryLines == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			r.accumulate(ctx, analysis, record)
		}
		return analysis, nil
	}

	lines, err := parser.ReadLines(path, parser.ReadOptions{
		MaxLines:      e.opts.MaxLines,
		MaxLineLength: e.opts.MaxLineLength,
	})
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	for i, line := range lines {
		if i%progressEveryLines == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e.opts.Progress.Report("analyzing",
				fmt.Sprintf("%s: line %d of %d", base, i+1, len(lines)),
				runPercent(fileIndex, fileCount, i, len(lines)))
		}

		if foreign, ok := e.lineParser.DetectForeign(line); ok {
			return nil, &common.FileTypeError{
				Path:     path,
				Expected: e.logType,
				Detected: foreign,
				Line:     i + 1,
			}
		}

		r.accumulate(ctx, analysis, e.lineParser.ParseLine(line, i+1))
	}
	return analysis, nil
}

// accumulate folds one record into the running aggregates. Unparsed records
// count toward total lines only.
func (r *run) accumulate(ctx context.Context, analysis *common.Analysis, record *common.LogRecord) {
	e := r.engine
	analysis.Summary.TotalLines++
	if record == nil || !record.Parsed {
		return
	}
	analysis.Summary.ParsedLines++

	if record.HasTimestamp() {
		if analysis.Summary.Timespan.Start == "" {
			analysis.Summary.Timespan.Start = record.Timestamp
		}
		// End tracks the last parsed record, not the maximum.
		analysis.Summary.Timespan.End = record.Timestamp
	}

	severity := e.classifier.Classify(record)
	component := e.components.Identify(record)
	match := e.issues.Match(ctx, record, severity)

	stats := analysis.Component(component)
	stats.TotalEntries++
	switch severity {
	case common.SeverityCritical:
		analysis.Summary.CriticalCount++
		stats.Errors++
	case common.SeverityError:
		analysis.Summary.ErrorCount++
		stats.Errors++
	case common.SeverityWarning:
		analysis.Summary.WarningCount++
		stats.Warnings++
	}

	analysis.RecordIssue(match)

	if severity >= common.SeverityWarning && len(analysis.Events) < e.opts.MaxEvents {
		analysis.Events = append(analysis.Events, &common.ClassifiedEvent{
			Record:        record,
			Severity:      severity,
			ComponentName: component,
			KnownIssue:    match,
			Source:        string(e.logType),
		})
	}

	if e.heuristic != nil {
		r.scores = append(r.scores, e.heuristic.Score(record, component))
	}
}

// finalize recomputes health scores from the final counters, generates the
// rule-based recommendations, and appends the optional LLM summary. Health
// is computed once here rather than incrementally so event order cannot
// drift the result.
func (e *Engine) finalize(ctx context.Context, analysis *common.Analysis) {
	for _, stats := range analysis.Components {
		stats.HealthScore = componentHealth(stats, e.opts)
	}

	analysis.Recommendations = e.recommender.Generate(analysis)

	if e.opts.Summarizer != nil {
		text, err := e.opts.Summarizer.Summarize(ctx, analysis)
		switch {
		case err != nil:
			logging.L().Warn("llm summary unavailable",
				logging.LogType(string(e.logType)), zap.Error(err))
		case text != "":
			analysis.Recommendations = append(analysis.Recommendations, text)
		}
	}
}

// componentHealth scores one component from its final counters: errors
// weigh five times warnings, floored at zero.
func componentHealth(stats *common.ComponentStats, opts Options) float64 {
	health := 100.0 -
		opts.HealthErrorWeight*float64(stats.Errors) -
		opts.HealthWarningWeight*float64(stats.Warnings)
	if health < 0 {
		return 0
	}
	if health > 100 {
		return 100
	}
	return health
}

// consolidate merges per-file analyses into one. Events get tagged with the
// file they came from; the retained-event cap still applies.
func consolidate(logType common.LogType, parts []*common.Analysis, maxEvents int) *common.Analysis {
	merged := common.NewAnalysis(logType)

	for _, part := range parts {
		merged.SourceFiles = append(merged.SourceFiles, part.SourceFiles...)
		merged.Summary.Add(part.Summary)

		for name, cs := range part.Components {
			target := merged.Component(name)
			target.TotalEntries += cs.TotalEntries
			target.Errors += cs.Errors
			target.Warnings += cs.Warnings
		}

		source := ""
		if len(part.SourceFiles) > 0 {
			source = part.SourceFiles[0]
		}
		for _, ev := range part.Events {
			if len(merged.Events) >= maxEvents {
				break
			}
			if source != "" {
				ev.Record.SourceFile = source
			}
			merged.Events = append(merged.Events, ev)
		}

		for _, ki := range part.KnownIssues {
			if merged.IssueCounts[ki.IssueType] == 0 {
				merged.KnownIssues = append(merged.KnownIssues, ki)
			}
		}
		for issueType, count := range part.IssueCounts {
			merged.IssueCounts[issueType] += count
		}
	}
	return merged
}

func runPercent(fileIndex, fileCount, line, lineCount int) int {
	if fileCount == 0 {
		return 0
	}
	filePct := 0
	if lineCount > 0 {
		filePct = line * 100 / lineCount
	}
	return (fileIndex*100 + filePct) / fileCount
}
