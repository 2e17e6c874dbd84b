// Package bundle analyzes diagnostic ZIP packages end to end: members are
// routed to analyzers by filename, extracted safely, analyzed per log
// type, correlated across types, and wrapped in one package envelope.
// The pipeline is lenient past the archive open: broken members and
// failing analyzers degrade the result instead of aborting it.
package bundle

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/analyzer"
	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/correlation"
	"github.com/dstriage/dstriage/internal/logging"
	"github.com/dstriage/dstriage/internal/standardize"
)

const (
	// DefaultMaxMemberSize caps one extracted member's decompressed size.
	DefaultMaxMemberSize = 64 << 20

	// DefaultMaxMembers caps how many members are extracted per bundle.
	DefaultMaxMembers = 256
)

// Options tunes bundle analysis.
type Options struct {
	// MaxMemberSize is the per-member decompressed size cap in bytes.
	MaxMemberSize int64

	// MaxMembers caps how many routed members get extracted.
	MaxMembers int

	// WorkDir is where extraction temp dirs are created. Empty means the
	// system temp dir.
	WorkDir string

	// Analyzer options are forwarded to every per-type engine.
	Analyzer analyzer.Options

	// Correlation options tune the cross-log pass.
	Correlation correlation.Options

	// Progress receives bundle-stage reports. Nil means no reporting.
	Progress analyzer.ProgressSink
}

func (o Options) withDefaults() Options {
	if o.MaxMemberSize <= 0 {
		o.MaxMemberSize = DefaultMaxMemberSize
	}
	if o.MaxMembers <= 0 {
		o.MaxMembers = DefaultMaxMembers
	}
	if o.Progress == nil {
		o.Progress = analyzer.NoopProgress{}
	}
	return o
}

// Stats counts what happened to the bundle's members.
type Stats struct {
	Members        int                    `json:"members"`
	Routed         int                    `json:"routed"`
	Skipped        int                    `json:"skipped"`
	ExtractedBytes int64                  `json:"extracted_bytes"`
	ByType         map[common.LogType]int `json:"by_type"`
}

// Report is the full result of one bundle analysis. Envelope is the
// caller-facing contract; the rest is kept for programmatic consumers.
type Report struct {
	Envelope    *common.StandardizedOutput
	Analyses    map[common.LogType]*common.Analysis
	Correlation *correlation.Result
	Stats       Stats
}

// Analyzer orchestrates diagnostic-package analysis. Safe for concurrent
// Analyze calls.
type Analyzer struct {
	opts         Options
	engines      map[common.LogType]*analyzer.Engine
	correlator   *correlation.Correlator
	standardizer *standardize.Standardizer
}

// New builds a bundle analyzer with the standard engine set.
func New(opts Options) (*Analyzer, error) {
	opts = opts.withDefaults()
	engines, err := analyzer.Engines(opts.Analyzer)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		opts:         opts,
		engines:      engines,
		correlator:   correlation.New(opts.Correlation),
		standardizer: standardize.New(),
	}, nil
}

// Analyze runs the whole bundle pipeline over one ZIP archive.
func (a *Analyzer) Analyze(ctx context.Context, zipPath string) (*Report, error) {
	start := time.Now()
	a.opts.Progress.Report("extract", fmt.Sprintf("opening %s", zipPath), 5)

	ex, err := a.extract(ctx, zipPath)
	if ex != nil && ex.dir != "" {
		defer os.RemoveAll(ex.dir)
	}
	if err != nil {
		return nil, err
	}
	if ex.stats.Routed == 0 {
		return nil, fmt.Errorf("no recognized log files in %s (%d member(s) inspected)",
			zipPath, ex.stats.Members)
	}
	a.opts.Progress.Report("extract",
		fmt.Sprintf("extracted %d of %d member(s)", ex.stats.Routed, ex.stats.Members), 15)

	types := make([]common.LogType, 0, len(ex.files))
	for t := range ex.files {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	analyses := make(map[common.LogType]*common.Analysis)
	envelopes := make(map[string]*common.StandardizedOutput)

	for i, logType := range types {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Analyze files in path order so consolidation is stable no
		// matter how the archive was packed.
		files := ex.files[logType]
		sort.Strings(files)
		a.opts.Progress.Report("analyze",
			fmt.Sprintf("%s: %d file(s)", logType, len(files)),
			20+60*i/len(types))

		name := analysisTypeName(logType)
		engine, ok := a.engines[logType]
		if !ok {
			envelopes[name] = a.standardizer.Standardize(map[string]any{
				"log_type": string(logType),
				"error":    "no analyzer registered for this log type",
			}, name)
			continue
		}

		analysis, err := engine.Analyze(ctx, files...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One broken log type degrades its own envelope only.
			logging.L().Warn("bundle analyzer degraded",
				logging.LogType(string(logType)), zap.Error(err))
			envelopes[name] = a.standardizer.Standardize(map[string]any{
				"log_type": string(logType),
				"error":    err.Error(),
			}, name)
			continue
		}

		analyses[logType] = analysis
		envelopes[name] = a.standardizer.Standardize(analysis, name)
	}

	a.opts.Progress.Report("correlate", "cross-log correlation", 85)
	corr := a.correlator.Correlate(analyses)

	a.opts.Progress.Report("standardize", "building package envelope", 95)
	envelope := a.packageEnvelope(envelopes, analyses, corr, ex.stats)

	logging.L().Info("bundle analyzed",
		logging.Path(zipPath),
		logging.Count(ex.stats.Routed),
		logging.Duration(time.Since(start)))
	a.opts.Progress.Report("done", "bundle analysis complete", 100)

	return &Report{
		Envelope:    envelope,
		Analyses:    analyses,
		Correlation: corr,
		Stats:       ex.stats,
	}, nil
}

// packageEnvelope assembles the diagnostic-package envelope from the
// per-type envelopes, the correlation result and the member statistics.
func (a *Analyzer) packageEnvelope(envelopes map[string]*common.StandardizedOutput,
	analyses map[common.LogType]*common.Analysis, corr *correlation.Result, stats Stats) *common.StandardizedOutput {

	var summed common.AnalysisSummary
	raw := make(map[string]any, len(analyses))
	for logType, analysis := range analyses {
		summed.Add(analysis.Summary)
		raw[string(logType)] = analysis.AsMap()
	}

	byType := make(map[string]int, len(stats.ByType))
	for logType, n := range stats.ByType {
		byType[string(logType)] = n
	}

	return &common.StandardizedOutput{
		AnalysisType: string(common.LogTypePackage),
		Status:       common.StatusCompleted,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Summary: fmt.Sprintf(
			"Analyzed %d of %d bundle member(s) across %d log type(s): %d critical, %d errors, %d warnings.",
			stats.Routed, stats.Members, len(envelopes),
			summed.CriticalCount, summed.ErrorCount, summed.WarningCount),
		Details: map[string]any{
			"analyses":    envelopes,
			"correlation": corr.AsMap(),
		},
		Recommendations: mergeRecommendations(envelopes, corr),
		Severity: standardize.RollupFromCounts(
			summed.CriticalCount, summed.ErrorCount, summed.WarningCount),
		Statistics: map[string]any{
			"members":         stats.Members,
			"routed":          stats.Routed,
			"skipped":         stats.Skipped,
			"extracted_bytes": stats.ExtractedBytes,
			"extracted_size":  humanize.Bytes(uint64(stats.ExtractedBytes)),
			"files_by_type":   byType,
			"total_lines":     summed.TotalLines,
			"parsed_lines":    summed.ParsedLines,
		},
		RawData: map[string]any{
			"analyses":    raw,
			"correlation": corr.AsMap(),
		},
	}
}

// mergeRecommendations concatenates per-type recommendations in analysis
// order, dropping exact duplicates, and appends the correlation note.
func mergeRecommendations(envelopes map[string]*common.StandardizedOutput, corr *correlation.Result) []string {
	names := make([]string, 0, len(envelopes))
	for name := range envelopes {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	merged := make([]string, 0, 4)
	for _, name := range names {
		for _, rec := range envelopes[name].Recommendations {
			if seen[rec] {
				continue
			}
			seen[rec] = true
			merged = append(merged, rec)
		}
	}

	if corr != nil && corr.Score > 0 {
		merged = append(merged, fmt.Sprintf(
			"Cross-log correlation score %d: %d timing window(s) and %d component(s) span multiple log sources.",
			corr.Score, len(corr.TimingCorrelations), len(corr.ComponentCorrelations)))
	}
	return merged
}

func analysisTypeName(logType common.LogType) string {
	return string(logType) + "_log"
}
