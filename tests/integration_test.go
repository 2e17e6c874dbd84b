package tests

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dstriage/dstriage/internal/analyzer"
	"github.com/dstriage/dstriage/internal/bundle"
	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/formatter"
	"github.com/dstriage/dstriage/internal/parser"
	"github.com/dstriage/dstriage/internal/standardize"
)

// agentEngine builds an agent analysis engine from the embedded tables.
func agentEngine(t *testing.T, opts analyzer.Options) *analyzer.Engine {
	t.Helper()

	tables, err := common.LoadDefaultTables()
	if err != nil {
		t.Fatalf("Failed to load embedded tables: %v", err)
	}
	lineParser, err := parser.DefaultFactory.ForType(common.LogTypeAgent)
	if err != nil {
		t.Fatalf("Failed to get agent parser: %v", err)
	}
	eng, err := analyzer.NewEngine(tables[common.LogTypeAgent], lineParser, opts)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	return eng
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// TestAgentLogEndToEnd drives the full single-file path: detection,
// parsing, classification, component attribution, recommendations and
// standardization, over a minimal three-line agent log.
func TestAgentLogEndToEnd(t *testing.T) {
	content := "2024-03-11 09:15:04.123456 [+0100]: [Cmd/5] | Command session opened | cmd/CommandSession.cpp:88 | 2F04:1A30\n" +
		"Error\t3/11/2024 9:15:05 AM\tDeep Security Agent\tFirewall engine: connection failed\n" +
		"this line is garbage and matches no layout\n"
	path := writeFile(t, t.TempDir(), "ds_agent.log", content)

	logType, err := parser.DefaultFactory.DetectFile(path)
	if err != nil {
		t.Fatalf("DetectFile error: %v", err)
	}
	if logType != common.LogTypeAgent {
		t.Fatalf("Expected agent detection, got %q", logType)
	}

	eng := agentEngine(t, analyzer.Options{})
	analysis, err := eng.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	summary := analysis.Summary
	if summary.TotalLines != 3 {
		t.Errorf("Expected 3 total lines, got %d", summary.TotalLines)
	}
	if summary.ParsedLines != 2 {
		t.Errorf("Expected 2 parsed lines, got %d", summary.ParsedLines)
	}
	if summary.ErrorCount != 1 {
		t.Errorf("Expected 1 error, got %d", summary.ErrorCount)
	}
	if summary.WarningCount != 0 {
		t.Errorf("Expected 0 warnings, got %d", summary.WarningCount)
	}
	if summary.CriticalCount != 0 {
		t.Errorf("Expected 0 criticals, got %d", summary.CriticalCount)
	}

	firewall, ok := analysis.Components["Firewall"]
	if !ok {
		t.Fatalf("Expected Firewall component, got %v", componentNames(analysis))
	}
	if firewall.Errors != 1 {
		t.Errorf("Expected 1 Firewall error, got %d", firewall.Errors)
	}

	// One error stays under every recommendation threshold, so the
	// healthy-fallback entry must appear.
	if len(analysis.Recommendations) == 0 {
		t.Fatal("Expected at least one recommendation")
	}
	if analysis.Recommendations[0] == "" {
		t.Error("Expected non-empty recommendation text")
	}

	envelope := standardize.New().Standardize(analysis, "agent_log")
	if envelope.AnalysisType != "agent_log" {
		t.Errorf("Expected agent_log envelope, got %q", envelope.AnalysisType)
	}
	if envelope.Status != common.StatusCompleted {
		t.Errorf("Expected completed status, got %q", envelope.Status)
	}
	if envelope.Severity != common.RollupMedium {
		t.Errorf("Expected medium rollup for one error, got %q", envelope.Severity)
	}
	if envelope.Summary == "" {
		t.Error("Expected non-empty envelope summary")
	}
	if _, ok := envelope.Details["summary"]; !ok {
		t.Error("Expected summary block in details")
	}
}

// TestMultiFileConsolidation checks that analyzing two files together sums
// what analyzing them separately produces.
func TestMultiFileConsolidation(t *testing.T) {
	dir := t.TempDir()
	fileA := writeFile(t, dir, "ds_agent.log",
		"Error\t3/11/2024 9:15:05 AM\tDeep Security Agent\tFirewall engine: connection failed\n")
	fileB := writeFile(t, dir, "ds_agent-err.log",
		"Error\t3/11/2024 9:16:05 AM\tDeep Security Agent\tanti-malware scan aborted\n"+
			"Warning\t3/11/2024 9:16:06 AM\tDeep Security Agent\tclock drift detected\n")

	eng := agentEngine(t, analyzer.Options{})
	ctx := context.Background()

	a, err := eng.Analyze(ctx, fileA)
	if err != nil {
		t.Fatalf("Analyze A error: %v", err)
	}
	b, err := eng.Analyze(ctx, fileB)
	if err != nil {
		t.Fatalf("Analyze B error: %v", err)
	}
	both, err := eng.Analyze(ctx, fileA, fileB)
	if err != nil {
		t.Fatalf("Analyze A+B error: %v", err)
	}

	if got, want := both.Summary.ErrorCount, a.Summary.ErrorCount+b.Summary.ErrorCount; got != want {
		t.Errorf("Expected %d consolidated errors, got %d", want, got)
	}
	if got, want := both.Summary.WarningCount, a.Summary.WarningCount+b.Summary.WarningCount; got != want {
		t.Errorf("Expected %d consolidated warnings, got %d", want, got)
	}
	if got, want := both.Summary.TotalLines, a.Summary.TotalLines+b.Summary.TotalLines; got != want {
		t.Errorf("Expected %d consolidated total lines, got %d", want, got)
	}
}

// TestBundleEndToEnd analyzes a real two-member diagnostic archive and
// checks the package envelope aggregates both member analyses.
func TestBundleEndToEnd(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "diagnostic.zip")
	members := map[string]string{
		"ds_agent.log": "2024-03-11 09:15:04.123456 [+0100]: [Cmd/5] | Command session opened | cmd/CommandSession.cpp:88 | 2F04:1A30\n" +
			"Error\t3/11/2024 9:15:05 AM\tDeep Security Agent\tFirewall engine: connection failed\n",
		"AMSP-Inst_2024.log": "[2024-03-11 09:15:04.123] [INFO] engine initialized\n" +
			"[2024-03-11 09:16:04.123] [ERROR] VSReadVirusPattern failed ret=-2\n",
	}
	writeZip(t, zipPath, members)

	ba, err := bundle.New(bundle.Options{})
	if err != nil {
		t.Fatalf("bundle.New error: %v", err)
	}

	report, err := ba.Analyze(context.Background(), zipPath)
	if err != nil {
		t.Fatalf("Bundle analyze error: %v", err)
	}

	if report.Envelope.AnalysisType != "diagnostic_package" {
		t.Errorf("Expected diagnostic_package, got %q", report.Envelope.AnalysisType)
	}
	if report.Envelope.Status != common.StatusCompleted {
		t.Errorf("Expected completed status, got %q", report.Envelope.Status)
	}
	if len(report.Analyses) != 2 {
		t.Fatalf("Expected 2 member analyses, got %d", len(report.Analyses))
	}
	if _, ok := report.Analyses[common.LogTypeAgent]; !ok {
		t.Error("Expected agent analysis in report")
	}
	if _, ok := report.Analyses[common.LogTypeAMSP]; !ok {
		t.Error("Expected amsp analysis in report")
	}

	// VSReadVirusPattern failure is a known-critical AMSP signature, so
	// the package rollup must escalate.
	if report.Envelope.Severity != common.RollupCritical {
		t.Errorf("Expected critical package severity, got %q", report.Envelope.Severity)
	}
}

// TestEnvelopeJSONRender renders an analysis envelope through the JSON
// formatter and parses it back.
func TestEnvelopeJSONRender(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ds_agent.log",
		"Error\t3/11/2024 9:15:05 AM\tDeep Security Agent\tFirewall engine: connection failed\n")

	eng := agentEngine(t, analyzer.Options{})
	analysis, err := eng.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	envelope := standardize.New().Standardize(analysis, "agent_log")

	rendered, err := formatter.NewJSON().Format(envelope)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(rendered, &decoded); err != nil {
		t.Fatalf("Rendered JSON does not parse: %v", err)
	}
	if decoded["analysis_type"] != "agent_log" {
		t.Errorf("Expected agent_log analysis type, got %v", decoded["analysis_type"])
	}
	if decoded["status"] != "completed" {
		t.Errorf("Expected completed status, got %v", decoded["status"])
	}
	for _, key := range []string{"timestamp", "summary", "details", "recommendations", "severity"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Missing envelope key %q", key)
		}
	}
}

func componentNames(analysis *common.Analysis) []string {
	names := make([]string, 0, len(analysis.Components))
	for name := range analysis.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}

	zw := zip.NewWriter(f)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create member %s: %v", name, err)
		}
		if _, err := w.Write([]byte(members[name])); err != nil {
			t.Fatalf("Failed to write member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
}
