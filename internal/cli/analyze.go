package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/analyzer"
	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/config"
	"github.com/dstriage/dstriage/internal/logging"
	"github.com/dstriage/dstriage/internal/monitor"
	"github.com/dstriage/dstriage/internal/parser"
	"github.com/dstriage/dstriage/internal/session"
	"github.com/dstriage/dstriage/internal/standardize"
)

var (
	analyzeType       string
	analyzeTables     string
	analyzeTimeout    time.Duration
	analyzeMaxLines   int
	analyzeMaxEvents  int
	analyzeScorer     string
	analyzeNoTUI      bool
	analyzeOutputFile string
	analyzeStats      bool
	analyzeLLM        bool
	analyzeKB         string
)

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Analyze diagnostic log files",
		Long: `Analyze one or more diagnostic log files of a single log type.

The log type is auto-detected from the file content, or forced with --type.
Multiple files of the same type are consolidated into one report. For
diagnostic ZIP packages use the bundle command instead.

Examples:
  dstriage analyze ds_agent.log
  dstriage analyze --type amsp AMSP-Inst_2024.log
  dstriage analyze ds_agent.log ds_agent-err.log
  dstriage analyze --output json --output-file report.json ds_agent.log`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVarP(&analyzeType, "type", "t", "auto", "log type (auto, agent, amsp, process, generic)")
	cmd.Flags().StringVar(&analyzeTables, "tables", "", "pattern table file overriding the embedded tables")
	cmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "analysis timeout")
	cmd.Flags().IntVar(&analyzeMaxLines, "max-lines", 10000, "maximum lines to analyze per file")
	cmd.Flags().IntVar(&analyzeMaxEvents, "max-events", analyzer.DefaultMaxEvents, "maximum notable events to retain")
	cmd.Flags().StringVar(&analyzeScorer, "scorer", "", "severity scorer (pattern, heuristic)")
	cmd.Flags().BoolVar(&analyzeNoTUI, "no-tui", false, "disable the interactive results browser")
	cmd.Flags().StringVar(&analyzeOutputFile, "output-file", "", "save output to file instead of stdout")
	cmd.Flags().BoolVar(&analyzeStats, "stats", false, "attach per-stage performance statistics to the report")
	cmd.Flags().BoolVar(&analyzeLLM, "llm", false, "enable the model-backed summary for this run")
	cmd.Flags().StringVar(&analyzeKB, "kb", "", "runbook knowledge base directory")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := GetGlobalConfig()

	// Use config values if flags weren't explicitly set
	if !cmd.Flag("timeout").Changed {
		analyzeTimeout = cfg.Analysis.Timeout
	}
	if !cmd.Flag("max-lines").Changed {
		analyzeMaxLines = cfg.Analysis.MaxLines
	}
	if !cmd.Flag("max-events").Changed {
		analyzeMaxEvents = cfg.Analysis.MaxEvents
	}

	for _, path := range args {
		if err := validateInputFile(path); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}

	logType, err := resolveLogType(analyzeType, args[0])
	if err != nil {
		return err
	}

	caps := capabilitiesFrom(cfg)
	if analyzeLLM {
		caps.LLM = cfg.LLM.Provider != ""
	}

	helpers := setupCollaborators(cfg, caps, analyzeKB)
	defer helpers.close()

	opts := analysisOptions(cfg)
	opts.MaxLines = analyzeMaxLines
	opts.MaxEvents = analyzeMaxEvents
	if err := applyScorer(&opts, analyzeScorer); err != nil {
		return err
	}
	helpers.apply(&opts)

	// Progress chain: the session sink records checkpoints, the stage sink
	// derives per-stage timings from them when --stats is on.
	var sink analyzer.ProgressSink = session.NoopSink{}
	var storeSink *session.StoreSink
	if caps.Sessions {
		storeSink = session.NewStoreSink(session.NewMemoryStore(), session.NewID())
		sink = storeSink
	}
	var mon *monitor.Monitor
	var stageSink *monitor.StageSink
	if analyzeStats {
		mon = monitor.New()
		stageSink = monitor.NewStageSink(mon, sink)
		sink = stageSink
	}
	opts.Progress = sink

	eng, err := buildEngine(logType, analyzeTables, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Analyzing %d %s log file(s)...\n", len(args), logType)
	}

	analysis, analysisErr := eng.Analyze(ctx, args...)

	typeName := analysisTypeName(logType)
	var envelope *common.StandardizedOutput
	if analysisErr != nil {
		logging.L().Warn("analysis failed",
			logging.Path(args[0]), logging.LogType(string(logType)), zap.Error(analysisErr))
		envelope = errorEnvelope(typeName, analysisErr)
	} else {
		envelope = standardize.New().Standardize(analysis, typeName)
	}

	if stageSink != nil {
		stageSink.Flush()
		if analysis != nil {
			mon.RecordLines(int64(analysis.Summary.TotalLines))
		}
		envelope.Statistics["performance"] = performanceBlock(mon.Snapshot())
	}

	if caps.History {
		saveHistory(cfg, sinkSessionID(storeSink), strings.Join(args, ","), envelope)
	}

	if err := outputEnvelope(envelope, analyzeOutputFile, analyzeNoTUI); err != nil {
		return err
	}

	// Unreadable and mistyped files exit nonzero; every other analysis
	// failure is already reported inside the envelope.
	var typeErr *common.FileTypeError
	var readErr *common.ReadError
	if errors.As(analysisErr, &typeErr) || errors.As(analysisErr, &readErr) {
		return analysisErr
	}
	return nil
}

// resolveLogType maps the --type flag to a log type, detecting from file
// content when the flag is auto.
func resolveLogType(flagValue, samplePath string) (common.LogType, error) {
	switch strings.ToLower(flagValue) {
	case "", "auto":
		logType, err := parser.DefaultFactory.DetectFile(samplePath)
		if err != nil {
			return "", fmt.Errorf("failed to detect log type: %w", err)
		}
		if isVerbose() {
			fmt.Fprintf(os.Stderr, "Detected log type: %s\n", logType)
		}
		return logType, nil
	case "agent":
		return common.LogTypeAgent, nil
	case "amsp":
		return common.LogTypeAMSP, nil
	case "process":
		return common.LogTypeProcess, nil
	case "generic":
		return common.LogTypeGeneric, nil
	default:
		return "", fmt.Errorf("unknown log type %q (use auto, agent, amsp, process or generic)", flagValue)
	}
}

// applyScorer resolves the --scorer flag. The pattern tables always run;
// heuristic adds the feature scorer alongside them. Empty defers to config.
func applyScorer(opts *analyzer.Options, scorer string) error {
	switch strings.ToLower(scorer) {
	case "":
	case "pattern":
		opts.Heuristic = false
	case "heuristic":
		opts.Heuristic = true
	default:
		return fmt.Errorf("unknown scorer %q (use pattern or heuristic)", scorer)
	}
	return nil
}

// analysisOptions maps the config analysis section onto engine options.
func analysisOptions(cfg *config.Config) analyzer.Options {
	return analyzer.Options{
		MaxLines:            cfg.Analysis.MaxLines,
		MaxLineLength:       cfg.Analysis.MaxLineLength,
		MaxEvents:           cfg.Analysis.MaxEvents,
		FuzzyThreshold:      cfg.Analysis.FuzzyThreshold,
		Heuristic:           cfg.Analysis.Heuristic,
		HealthErrorWeight:   cfg.Analysis.HealthErrorWeight,
		HealthWarningWeight: cfg.Analysis.HealthWarningWeight,
	}
}

// loadTable resolves the pattern table for one log type. A --tables file
// replaces the embedded tables.
func loadTable(logType common.LogType, tablesPath string) (*common.PatternTable, error) {
	var tables map[common.LogType]*common.PatternTable
	var err error
	if tablesPath != "" {
		tables, err = common.LoadTablesFromFile(tablesPath)
	} else {
		tables, err = common.LoadDefaultTables()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern tables: %w", err)
	}

	table, ok := tables[logType]
	if !ok {
		return nil, fmt.Errorf("no pattern table for log type %q", logType)
	}
	return table, nil
}

// buildEngine assembles the engine for one log type from its pattern table
// and registered parser.
func buildEngine(logType common.LogType, tablesPath string, opts analyzer.Options) (*analyzer.Engine, error) {
	table, err := loadTable(logType, tablesPath)
	if err != nil {
		return nil, err
	}

	lineParser, err := parser.DefaultFactory.ForType(logType)
	if err != nil {
		return nil, err
	}

	return analyzer.NewEngine(table, lineParser, opts)
}

func analysisTypeName(logType common.LogType) string {
	return string(logType) + "_log"
}

func sinkSessionID(sink *session.StoreSink) string {
	if sink == nil {
		return ""
	}
	return sink.SessionID()
}
