package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/config"
	"github.com/dstriage/dstriage/internal/formatter"
	"github.com/dstriage/dstriage/internal/history"
	"github.com/dstriage/dstriage/internal/logging"
	"github.com/dstriage/dstriage/internal/monitor"
	"github.com/dstriage/dstriage/internal/ui"
)

// resolveFormat picks the output format: flag first, then config, then the
// terminal default. "text" is accepted as an alias for terminal.
func resolveFormat(cfg *config.Config) string {
	format := getOutputFormat()
	if format == "" {
		format = cfg.Output.Format
	}
	switch format {
	case "", "text":
		return "terminal"
	case "md":
		return "markdown"
	default:
		return format
	}
}

// colorEnabled resolves the color decision from the flag, the config mode
// and the NO_COLOR convention.
func colorEnabled(cfg *config.Config) bool {
	if noColor || ui.IsColorDisabled() {
		return false
	}
	switch cfg.Output.ColorMode {
	case "never":
		return false
	case "always":
		return true
	default:
		return stdoutIsTerminal()
	}
}

// stdoutIsTerminal reports whether stdout is a character device. Pipes and
// files suppress the interactive views and terminal colors.
func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// errorEnvelope builds the status:error envelope the boundary emits when an
// analysis fails outright. Callers still get the fixed envelope shape.
func errorEnvelope(analysisType string, err error) *common.StandardizedOutput {
	message := "unknown failure"
	if err != nil {
		message = err.Error()
	}
	return &common.StandardizedOutput{
		AnalysisType:    analysisType,
		Status:          common.StatusError,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Summary:         "Analysis failed: " + message,
		Details:         map[string]any{"error": message},
		Recommendations: []string{},
		Severity:        common.RollupLow,
		Statistics:      map[string]any{},
	}
}

// outputEnvelope renders one envelope to its destination. The interactive
// browser is used for terminal output on a TTY unless suppressed; every
// other path goes through a formatter to stdout or a file.
func outputEnvelope(envelope *common.StandardizedOutput, outputFile string, noTUI bool) error {
	cfg := GetGlobalConfig()
	format := resolveFormat(cfg)

	useTUI := !noTUI && outputFile == "" && format == "terminal" &&
		!isVerbose() && stdoutIsTerminal()
	if useTUI {
		return ui.ShowResults(envelope)
	}

	f, err := formatter.New(format, colorEnabled(cfg))
	if err != nil {
		return err
	}
	rendered, err := f.Format(envelope)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if outputFile != "" {
		if err := writeOutputBytesToFile(rendered, outputFile); err != nil {
			return fmt.Errorf("failed to write output to file: %w", err)
		}
		if isVerbose() {
			fmt.Fprintf(os.Stderr, "Output saved to: %s\n", outputFile)
		}
		return nil
	}

	fmt.Print(string(rendered))
	return nil
}

// writeOutputBytesToFile writes output to a file with proper error handling
func writeOutputBytesToFile(output []byte, filePath string) error {
	cleanPath := filepath.Clean(filePath)

	file, err := os.Create(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && isVerbose() {
			fmt.Fprintf(os.Stderr, "Warning: failed to close output file: %v\n", closeErr)
		}
	}()

	if _, err := file.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync output file: %w", err)
	}

	return nil
}

// validateInputFile rejects paths that cannot be analyzed before any work
// starts: missing files, directories, empty arguments.
func validateInputFile(path string) error {
	if path == "" {
		return fmt.Errorf("empty file path")
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", cleanPath)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", cleanPath)
	}

	return nil
}

// performanceBlock flattens a monitor snapshot into the statistics block
// attached to the envelope under "performance".
func performanceBlock(snap monitor.Snapshot) map[string]any {
	stages := make(map[string]any, len(snap.Stages))
	for _, stage := range snap.Stages {
		stages[stage.Stage] = map[string]any{
			"count":      stage.Count,
			"total_ms":   stage.Total.Milliseconds(),
			"average_ms": stage.Average.Milliseconds(),
		}
	}
	return map[string]any{
		"elapsed_ms":       snap.Elapsed.Milliseconds(),
		"lines":            snap.Lines,
		"lines_per_second": snap.LinesPerSecond,
		"heap_alloc_bytes": snap.Memory.HeapAllocBytes,
		"stages":           stages,
	}
}

// saveHistory records one completed run. Failures are logged and dropped;
// history is a collaborator, never a reason to fail an analysis.
func saveHistory(cfg *config.Config, sessionID, target string, envelope *common.StandardizedOutput) {
	store, err := history.Open(config.ExpandPath(cfg.History.Path))
	if err != nil {
		logging.L().Warn("history unavailable", zap.Error(err))
		return
	}
	defer closeHistory(store)

	run := &history.Run{
		SessionID:    sessionID,
		AnalysisType: envelope.AnalysisType,
		Target:       target,
		Status:       envelope.Status,
		Severity:     envelope.Severity,
		Summary:      envelope.Summary,
		Envelope:     envelope,
	}
	id, err := store.Save(run)
	if err != nil {
		logging.L().Warn("history save failed", zap.Error(err))
		return
	}
	if cfg.History.Keep > 0 {
		if _, err := store.Prune(cfg.History.Keep); err != nil {
			logging.L().Warn("history prune failed", zap.Error(err))
		}
	}
	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Run recorded as history entry %d\n", id)
	}
}
