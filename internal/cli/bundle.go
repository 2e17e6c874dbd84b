package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/analyzer"
	"github.com/dstriage/dstriage/internal/bundle"
	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/config"
	"github.com/dstriage/dstriage/internal/correlation"
	"github.com/dstriage/dstriage/internal/formatter"
	"github.com/dstriage/dstriage/internal/logging"
	"github.com/dstriage/dstriage/internal/monitor"
	"github.com/dstriage/dstriage/internal/session"
	"github.com/dstriage/dstriage/internal/ui"
)

const packageAnalysisType = "diagnostic_package"

// bundleStages is the checkpoint vocabulary the bundle pipeline reports,
// in order, as rendered by the staged progress view.
var bundleStages = []string{"extract", "analyze", "correlate", "standardize", "done"}

var (
	bundleWatch       bool
	bundleTimeout     time.Duration
	bundleMaxMemberMB int
	bundleMaxMembers  int
	bundleWorkDir     string
	bundleNoTUI       bool
	bundleOutputFile  string
	bundleStats       bool
	bundleLLM         bool
	bundleKB          string
)

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle [zip]",
		Short: "Analyze diagnostic ZIP packages",
		Long: `Analyze a diagnostic ZIP package end to end: members are routed to log
types by filename, extracted with size and path guards, analyzed per log
type, and correlated across sources into a single package report.

With --watch the argument is a drop directory: every ZIP created in it is
analyzed and the report is written next to the archive as
<name>.analysis.json.

Examples:
  dstriage bundle diagnostic.zip
  dstriage bundle --output json diagnostic.zip
  dstriage bundle --watch /srv/uploads`,
		Args: cobra.ExactArgs(1),
		RunE: runBundle,
	}

	cmd.Flags().BoolVar(&bundleWatch, "watch", false, "watch a directory and analyze dropped ZIP files")
	cmd.Flags().DurationVar(&bundleTimeout, "timeout", 5*time.Minute, "per-bundle analysis timeout")
	cmd.Flags().IntVar(&bundleMaxMemberMB, "max-member-size", 0, "per-member extraction cap in MB (0 = config)")
	cmd.Flags().IntVar(&bundleMaxMembers, "max-members", 0, "maximum members to extract (0 = config)")
	cmd.Flags().StringVar(&bundleWorkDir, "workdir", "", "extraction scratch directory")
	cmd.Flags().BoolVar(&bundleNoTUI, "no-tui", false, "disable the staged progress view and results browser")
	cmd.Flags().StringVar(&bundleOutputFile, "output-file", "", "save output to file instead of stdout")
	cmd.Flags().BoolVar(&bundleStats, "stats", false, "attach per-stage performance statistics to the report")
	cmd.Flags().BoolVar(&bundleLLM, "llm", false, "enable the model-backed summary for this run")
	cmd.Flags().StringVar(&bundleKB, "kb", "", "runbook knowledge base directory")

	return cmd
}

func runBundle(cmd *cobra.Command, args []string) error {
	if bundleWatch {
		return runBundleWatch(args[0])
	}

	zipPath := args[0]
	if err := validateInputFile(zipPath); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	cfg := GetGlobalConfig()
	caps := capabilitiesFrom(cfg)
	if bundleLLM {
		caps.LLM = cfg.LLM.Provider != ""
	}

	helpers := setupCollaborators(cfg, caps, bundleKB)
	defer helpers.close()

	ctx, cancel := context.WithTimeout(context.Background(), bundleTimeout)
	defer cancel()

	var mon *monitor.Monitor
	if bundleStats {
		mon = monitor.New()
	}

	showProgress := cfg.Output.ShowProgress && !isVerbose()
	useStagedTUI := showProgress && !bundleNoTUI && stdoutIsTerminal()

	var envelope *common.StandardizedOutput
	var analysisErr error
	var sessionID string
	if useStagedTUI {
		title := "Analyzing " + filepath.Base(zipPath)
		envelope, analysisErr = ui.RunStaged(title, bundleStages, func(sink ui.ProgressSink) (*common.StandardizedOutput, error) {
			return analyzeBundle(ctx, cfg, helpers, mon, sink, zipPath)
		})
	} else {
		var sink analyzer.ProgressSink = session.NoopSink{}
		if showProgress && stdoutIsTerminal() {
			spinner := session.NewSpinnerSink()
			defer spinner.Stop()
			sink = spinner
		} else if caps.Sessions {
			sessionID = session.NewID()
			sink = session.NewStoreSink(session.NewMemoryStore(), sessionID)
		}
		envelope, analysisErr = analyzeBundle(ctx, cfg, helpers, mon, sink, zipPath)
	}

	if analysisErr != nil {
		logging.L().Warn("bundle analysis failed", logging.Path(zipPath), zap.Error(analysisErr))
		envelope = errorEnvelope(packageAnalysisType, analysisErr)
	}
	if mon != nil {
		envelope.Statistics["performance"] = performanceBlock(mon.Snapshot())
	}

	if caps.History {
		saveHistory(cfg, sessionID, zipPath, envelope)
	}

	if err := outputEnvelope(envelope, bundleOutputFile, bundleNoTUI); err != nil {
		return err
	}

	// What escapes the orchestrator is extraction-level: an unreadable or
	// unrecognizable archive. That exits nonzero; per-type analyzer
	// failures degraded inside the envelope instead.
	return analysisErr
}

// analyzeBundle runs one bundle analysis with the given progress sink,
// wrapping it with stage timing when --stats is on.
func analyzeBundle(ctx context.Context, cfg *config.Config, helpers *collaborators,
	mon *monitor.Monitor, sink analyzer.ProgressSink, zipPath string) (*common.StandardizedOutput, error) {

	var stageSink *monitor.StageSink
	if mon != nil {
		stageSink = monitor.NewStageSink(mon, sink)
		sink = stageSink
	}

	opts := analysisOptions(cfg)
	helpers.apply(&opts)

	ba, err := bundle.New(bundleOptions(cfg, opts, sink))
	if err != nil {
		return nil, err
	}

	report, err := ba.Analyze(ctx, zipPath)
	if stageSink != nil {
		stageSink.Flush()
		if report != nil {
			for _, analysis := range report.Analyses {
				mon.RecordLines(int64(analysis.Summary.TotalLines))
			}
			mon.RecordBytes(report.Stats.ExtractedBytes)
		}
	}
	if err != nil {
		return nil, err
	}
	return report.Envelope, nil
}

// bundleOptions maps config and flags onto bundle analyzer options.
func bundleOptions(cfg *config.Config, opts analyzer.Options, sink analyzer.ProgressSink) bundle.Options {
	maxMemberMB := cfg.Bundle.MaxMemberSizeMB
	if bundleMaxMemberMB > 0 {
		maxMemberMB = bundleMaxMemberMB
	}
	maxMembers := cfg.Bundle.MaxMembers
	if bundleMaxMembers > 0 {
		maxMembers = bundleMaxMembers
	}
	workDir := cfg.Bundle.WorkDir
	if bundleWorkDir != "" {
		workDir = bundleWorkDir
	}

	return bundle.Options{
		MaxMemberSize: int64(maxMemberMB) * 1024 * 1024,
		MaxMembers:    maxMembers,
		WorkDir:       config.ExpandPath(workDir),
		Analyzer:      opts,
		Correlation: correlation.Options{
			Window:          time.Duration(cfg.Correlation.WindowMinutes) * time.Minute,
			TimingWeight:    cfg.Correlation.TimingWeight,
			ComponentWeight: cfg.Correlation.ComponentWeight,
		},
		Progress: sink,
	}
}

// runBundleWatch analyzes every ZIP dropped into a directory until
// interrupted. Reports land next to the archives; errors are logged and
// the loop continues.
func runBundleWatch(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch target is not a directory: %s", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil && isVerbose() {
			fmt.Fprintf(os.Stderr, "Warning: failed to close watcher: %v\n", err)
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	ctx, stop := notifyContext()
	defer stop()

	fmt.Printf("Watching %s for diagnostic bundles (Ctrl+C to stop)\n", dir)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".zip") {
				continue
			}
			analyzeDroppedBundle(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logging.L().Warn("bundle watcher error", zap.Error(err))
		}
	}
}

// analyzeDroppedBundle analyzes one freshly dropped archive and writes the
// JSON report beside it. Failures are logged; the watch loop never stops.
func analyzeDroppedBundle(ctx context.Context, zipPath string) {
	if err := waitForStableSize(ctx, zipPath); err != nil {
		logging.L().Warn("dropped bundle never settled", logging.Path(zipPath), zap.Error(err))
		return
	}

	cfg := GetGlobalConfig()
	caps := capabilitiesFrom(cfg)
	helpers := setupCollaborators(cfg, caps, bundleKB)
	defer helpers.close()

	runCtx, cancel := context.WithTimeout(ctx, bundleTimeout)
	defer cancel()

	fmt.Printf("Analyzing %s...\n", filepath.Base(zipPath))
	envelope, err := analyzeBundle(runCtx, cfg, helpers, nil, session.NoopSink{}, zipPath)
	if err != nil {
		logging.L().Warn("dropped bundle analysis failed", logging.Path(zipPath), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Warning: %s failed: %v\n", filepath.Base(zipPath), err)
		envelope = errorEnvelope(packageAnalysisType, err)
	}

	if caps.History {
		saveHistory(cfg, "", zipPath, envelope)
	}

	reportPath := analysisReportPath(zipPath)
	rendered, err := formatter.NewJSON().Format(envelope)
	if err != nil {
		logging.L().Warn("report encoding failed", logging.Path(zipPath), zap.Error(err))
		return
	}
	if err := writeOutputBytesToFile(rendered, reportPath); err != nil {
		logging.L().Warn("report write failed", logging.Path(reportPath), zap.Error(err))
		return
	}
	fmt.Printf("  %s -> %s (severity %s)\n",
		filepath.Base(zipPath), filepath.Base(reportPath), envelope.Severity)
}

// analysisReportPath derives the sidecar report name for an archive.
func analysisReportPath(zipPath string) string {
	base := strings.TrimSuffix(zipPath, filepath.Ext(zipPath))
	return base + ".analysis.json"
}

// waitForStableSize waits until the file stops growing. Create events fire
// while the uploader is still writing; analyzing a half-written archive
// would fail on the central directory.
func waitForStableSize(ctx context.Context, path string) error {
	const (
		interval = 200 * time.Millisecond
		maxWait  = 10 * time.Second
	)

	deadline := time.Now().Add(maxWait)
	var lastSize int64 = -1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()
		if time.Now().After(deadline) {
			return fmt.Errorf("still growing after %s", maxWait)
		}
		time.Sleep(interval)
	}
}
