package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/parser"
)

func mustTable(t testing.TB, logType common.LogType) *common.PatternTable {
	t.Helper()
	tables, err := common.LoadDefaultTables()
	if err != nil {
		t.Fatalf("Failed to load default tables: %v", err)
	}
	table, ok := tables[logType]
	if !ok {
		t.Fatalf("No table for log type %s", logType)
	}
	return table
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func newAgentEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	engine, err := NewEngine(mustTable(t, common.LogTypeAgent), parser.NewAgentParser(), opts)
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	return engine
}

func TestClassifierKnownCriticalPrecedence(t *testing.T) {
	classifier, err := NewClassifier(mustTable(t, common.LogTypeAMSP))
	if err != nil {
		t.Fatalf("Failed to build classifier: %v", err)
	}

	// Matches both the vendor engine signature and the generic "failed"
	// warning token; the specific signature must win.
	record := &common.LogRecord{
		Message: "VSReadVirusPattern failed ret=-2",
		Level:   "ERROR",
		Parsed:  true,
	}
	if sev := classifier.Classify(record); sev != common.SeverityCritical {
		t.Errorf("Expected critical, got %v", sev)
	}
}

func TestClassifierLevelTokens(t *testing.T) {
	classifier, err := NewClassifier(mustTable(t, common.LogTypeAgent))
	if err != nil {
		t.Fatalf("Failed to build classifier: %v", err)
	}

	tests := []struct {
		level string
		want  common.Severity
	}{
		{"CRITICAL", common.SeverityCritical},
		{"fatal", common.SeverityCritical},
		{"Error", common.SeverityError},
		{"warn", common.SeverityWarning},
		{"WARNING", common.SeverityWarning},
		{"info", common.SeverityInfo},
		{"debug", common.SeverityInfo},
		{"trace", common.SeverityInfo},
	}
	for _, tt := range tests {
		record := &common.LogRecord{Message: "plain message", Level: tt.level, Parsed: true}
		if sev := classifier.Classify(record); sev != tt.want {
			t.Errorf("Level %q: expected %v, got %v", tt.level, tt.want, sev)
		}
	}
}

func TestClassifierFallthrough(t *testing.T) {
	classifier, err := NewClassifier(mustTable(t, common.LogTypeAgent))
	if err != nil {
		t.Fatalf("Failed to build classifier: %v", err)
	}

	// Numeric agent levels carry no severity; the message decides.
	warning := &common.LogRecord{Message: "connection timed out", Level: "4", Parsed: true}
	if sev := classifier.Classify(warning); sev != common.SeverityWarning {
		t.Errorf("Expected warning, got %v", sev)
	}

	critical := &common.LogRecord{Message: "segmentation fault in scan engine", Level: "4", Parsed: true}
	if sev := classifier.Classify(critical); sev != common.SeverityCritical {
		t.Errorf("Expected critical, got %v", sev)
	}

	plain := &common.LogRecord{Message: "session established", Level: "5", Parsed: true}
	if sev := classifier.Classify(plain); sev != common.SeverityInfo {
		t.Errorf("Expected info default, got %v", sev)
	}

	unparsed := &common.LogRecord{Raw: "garbage"}
	if sev := classifier.Classify(unparsed); sev != common.SeverityUnknown {
		t.Errorf("Expected unknown for unparsed, got %v", sev)
	}
}

func TestClassifierIdempotent(t *testing.T) {
	classifier, err := NewClassifier(mustTable(t, common.LogTypeAgent))
	if err != nil {
		t.Fatalf("Failed to build classifier: %v", err)
	}

	record := &common.LogRecord{Message: "heartbeat rejected by manager: certificate expired", Level: "3", Parsed: true}
	first := classifier.Classify(record)
	second := classifier.Classify(record)
	if first != second {
		t.Errorf("Expected stable classification, got %v then %v", first, second)
	}
}

func TestComponentIdentifierOrdering(t *testing.T) {
	ci, err := NewComponentIdentifier(mustTable(t, common.LogTypeAgent))
	if err != nil {
		t.Fatalf("Failed to build identifier: %v", err)
	}

	tests := []struct {
		name   string
		record *common.LogRecord
		want   string
	}{
		{
			name:   "firewall before agent core",
			record: &common.LogRecord{Message: "firewall rejected heartbeat packet", Parsed: true},
			want:   "Firewall",
		},
		{
			name:   "location claims the record",
			record: &common.LogRecord{Message: "rule compiled", Location: "fw/Engine.cpp:42", Parsed: true},
			want:   "Firewall",
		},
		{
			name:   "component token claims the record",
			record: &common.LogRecord{Message: "update check", Component: "AMSP.Scanner", Parsed: true},
			want:   "Anti-Malware",
		},
		{
			name:   "fallback is never unknown",
			record: &common.LogRecord{Message: "nothing recognizable here", Parsed: true},
			want:   "Agent Core",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ci.Identify(tt.record); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestKnownIssueStaticMatch(t *testing.T) {
	matcher := NewKnownIssueMatcher(mustTable(t, common.LogTypeAgent), Options{})

	record := &common.LogRecord{
		Message: "Heartbeat rejected by manager, clock skew too large",
		Parsed:  true,
	}
	match := matcher.Match(context.Background(), record, common.SeverityError)
	if match == nil {
		t.Fatal("Expected a static match")
	}
	if match.IssueType != "heartbeat_rejected" {
		t.Errorf("Expected heartbeat_rejected, got %s", match.IssueType)
	}
	if match.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %v", match.Confidence)
	}
	if match.Source != common.MatchSourceStatic {
		t.Errorf("Expected static source, got %s", match.Source)
	}
	if match.Resolution == "" {
		t.Error("Expected resolution text")
	}
}

func TestFuzzyMatcher(t *testing.T) {
	issues := []common.KnownIssue{
		{
			Signature:   "virus pattern download interrupted",
			IssueType:   "pattern_download_interrupted",
			Severity:    "warning",
			Description: "The virus pattern download stopped before completion.",
			Resolution:  "Retry the component update.",
		},
		{
			Signature:   "driver signature rejected by kernel",
			IssueType:   "driver_signature_rejected",
			Severity:    "critical",
			Description: "The kernel refused the filter driver signature.",
			Resolution:  "Verify secure boot trust settings.",
		},
	}

	m := NewFuzzyMatcher(issues, 0.2)
	if m == nil {
		t.Fatal("Expected a fitted matcher")
	}

	match := m.Match("virus pattern download interrupted at 60 percent")
	if match == nil {
		t.Fatal("Expected a fuzzy match")
	}
	if match.IssueType != "pattern_download_interrupted" {
		t.Errorf("Expected pattern_download_interrupted, got %s", match.IssueType)
	}
	if match.Source != common.MatchSourceFuzzy {
		t.Errorf("Expected fuzzy source, got %s", match.Source)
	}
	if match.Confidence <= 0 || match.Confidence > 1 {
		t.Errorf("Expected confidence in (0,1], got %v", match.Confidence)
	}

	if unrelated := m.Match("quantum banana horoscope"); unrelated != nil {
		t.Errorf("Expected no match for unrelated text, got %+v", unrelated)
	}
}

func TestHeuristicScorer(t *testing.T) {
	scorer := NewHeuristicScorer(mustTable(t, common.LogTypeAgent))

	hot := &common.LogRecord{
		Timestamp: "2024-03-11 03:12:00",
		Message:   "error failure timeout crash",
		Parsed:    true,
	}
	hotScore := scorer.Score(hot, "Anti-Malware")
	if hotScore < 0.8 {
		t.Errorf("Expected score >= 0.8 for off-hours critical-component errors, got %v", hotScore)
	}
	if scorer.SeverityFor(hotScore) != common.SeverityCritical {
		t.Errorf("Expected critical mapping, got %v", scorer.SeverityFor(hotScore))
	}

	bland := &common.LogRecord{Message: "ok", Parsed: true}
	blandScore := scorer.Score(bland, "Nowhere")
	if blandScore >= 0.3 {
		t.Errorf("Expected score < 0.3 for bland record, got %v", blandScore)
	}

	tests := []struct {
		score float64
		want  common.Severity
	}{
		{0.85, common.SeverityCritical},
		{0.65, common.SeverityWarning},
		{0.35, common.SeverityInfo},
		{0.1, common.SeverityNormal},
	}
	for _, tt := range tests {
		if got := scorer.SeverityFor(tt.score); got != tt.want {
			t.Errorf("Score %v: expected %v, got %v", tt.score, tt.want, got)
		}
	}
}

func TestComponentHealthClamp(t *testing.T) {
	opts := Options{}.withDefaults()

	healthy := componentHealth(&common.ComponentStats{}, opts)
	if healthy != 100 {
		t.Errorf("Expected 100 for clean component, got %v", healthy)
	}

	degraded := componentHealth(&common.ComponentStats{Errors: 1, Warnings: 2}, opts)
	if degraded != 86 {
		t.Errorf("Expected 86, got %v", degraded)
	}

	floored := componentHealth(&common.ComponentStats{Errors: 12}, opts)
	if floored != 0 {
		t.Errorf("Expected floor at 0, got %v", floored)
	}
}

func TestEngineEndToEnd(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:15:04: [Cmd/5] | Command session opened | cmd/Session.cpp:10 | AA:BB\n"+
			"2024-03-11 09:15:05: [Fwl/Error] | Firewall engine connection failed | fw/Engine.cpp:20 | AA:BB\n"+
			"%%% totally broken line %%%\n")

	engine := newAgentEngine(t, Options{})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
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
	if summary.Timespan.Start != "2024-03-11 09:15:04" {
		t.Errorf("Unexpected timespan start %q", summary.Timespan.Start)
	}
	if summary.Timespan.End != "2024-03-11 09:15:05" {
		t.Errorf("Unexpected timespan end %q", summary.Timespan.End)
	}

	fw, ok := analysis.Components["Firewall"]
	if !ok {
		t.Fatal("Expected Firewall component stats")
	}
	if fw.Errors != 1 {
		t.Errorf("Expected 1 firewall error, got %d", fw.Errors)
	}
	if fw.HealthScore != 90 {
		t.Errorf("Expected firewall health 90, got %v", fw.HealthScore)
	}

	// One error does not cross any recommendation threshold, so only the
	// default message appears.
	if len(analysis.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d: %v", len(analysis.Recommendations), analysis.Recommendations)
	}
	if !strings.Contains(analysis.Recommendations[0], "No significant issues") {
		t.Errorf("Expected default recommendation, got %q", analysis.Recommendations[0])
	}

	if len(analysis.Events) != 1 {
		t.Fatalf("Expected 1 retained event, got %d", len(analysis.Events))
	}
	if analysis.Events[0].ComponentName != "Firewall" {
		t.Errorf("Expected Firewall event, got %s", analysis.Events[0].ComponentName)
	}
	if analysis.Events[0].Record.SourceFile != "" {
		t.Error("Expected no source file tag on single-file analysis")
	}
}

func TestEngineUnparsedOnly(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log", "\nnot a log line at all\n")

	engine := newAgentEngine(t, Options{})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Summary.TotalLines != 2 {
		t.Errorf("Expected 2 total lines, got %d", analysis.Summary.TotalLines)
	}
	if analysis.Summary.ParsedLines != 0 {
		t.Errorf("Expected 0 parsed lines, got %d", analysis.Summary.ParsedLines)
	}
	if analysis.Summary.ErrorCount != 0 {
		t.Errorf("Expected 0 errors, got %d", analysis.Summary.ErrorCount)
	}
	if len(analysis.Components) != 0 {
		t.Errorf("Expected no component stats, got %d", len(analysis.Components))
	}
}

func TestEngineTimespanTracksLastRecord(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:00:00: first entry\n"+
			"2024-03-11 10:00:00: second entry\n"+
			"2024-03-11 08:00:00: out of order entry\n")

	engine := newAgentEngine(t, Options{})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Summary.Timespan.Start != "2024-03-11 09:00:00" {
		t.Errorf("Unexpected start %q", analysis.Summary.Timespan.Start)
	}
	// End reflects the last parsed record, not the chronological maximum.
	if analysis.Summary.Timespan.End != "2024-03-11 08:00:00" {
		t.Errorf("Expected end to track last record, got %q", analysis.Summary.Timespan.End)
	}
}

func TestEngineConsolidationSumsParts(t *testing.T) {
	fileA := writeTempFile(t, "a.log",
		"2024-03-11 09:00:00: [Fwl/Error] | firewall packet dropped unexpectedly | fw/A.cpp:1 | AA:BB\n"+
			"junk line\n")
	fileB := writeTempFile(t, "b.log",
		"2024-03-11 10:00:00: [Fwl/Error] | firewall engine restart failed | fw/B.cpp:2 | AA:BB\n")

	engine := newAgentEngine(t, Options{})
	ctx := context.Background()

	partA, err := engine.Analyze(ctx, fileA)
	if err != nil {
		t.Fatalf("Analyze A failed: %v", err)
	}
	partB, err := engine.Analyze(ctx, fileB)
	if err != nil {
		t.Fatalf("Analyze B failed: %v", err)
	}
	combined, err := engine.Analyze(ctx, fileA, fileB)
	if err != nil {
		t.Fatalf("Combined analyze failed: %v", err)
	}

	if combined.Summary.ErrorCount != partA.Summary.ErrorCount+partB.Summary.ErrorCount {
		t.Errorf("Expected error sum %d, got %d",
			partA.Summary.ErrorCount+partB.Summary.ErrorCount, combined.Summary.ErrorCount)
	}
	if combined.Summary.TotalLines != partA.Summary.TotalLines+partB.Summary.TotalLines {
		t.Errorf("Expected total sum %d, got %d",
			partA.Summary.TotalLines+partB.Summary.TotalLines, combined.Summary.TotalLines)
	}
	if combined.Summary.Timespan.Start != "2024-03-11 09:00:00" {
		t.Errorf("Unexpected consolidated start %q", combined.Summary.Timespan.Start)
	}
	if combined.Summary.Timespan.End != "2024-03-11 10:00:00" {
		t.Errorf("Unexpected consolidated end %q", combined.Summary.Timespan.End)
	}

	fw := combined.Components["Firewall"]
	if fw == nil || fw.Errors != 2 {
		t.Fatalf("Expected 2 consolidated firewall errors, got %+v", fw)
	}

	if len(combined.SourceFiles) != 2 {
		t.Errorf("Expected 2 source files, got %v", combined.SourceFiles)
	}
	for _, ev := range combined.Events {
		if ev.Record.SourceFile == "" {
			t.Error("Expected source file tag on consolidated events")
		}
	}
}

func TestEngineFileTypeGuard(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:00:00: [Cmd/5] | fine | a.cpp:1 | AA:BB\n"+
			"Top 10 Busy Process on 2024-03-11\n")

	engine := newAgentEngine(t, Options{})
	_, err := engine.Analyze(context.Background(), path)
	if err == nil {
		t.Fatal("Expected file type error")
	}

	var typeErr *common.FileTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("Expected *common.FileTypeError, got %T", err)
	}
	if typeErr.Detected != common.LogTypeProcess {
		t.Errorf("Expected detected process, got %v", typeErr.Detected)
	}
	if typeErr.Line != 2 {
		t.Errorf("Expected line 2, got %d", typeErr.Line)
	}
}

func TestEngineMissingFile(t *testing.T) {
	engine := newAgentEngine(t, Options{})
	_, err := engine.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent.log"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	var readErr *common.ReadError
	if !errors.As(err, &readErr) {
		t.Errorf("Expected *common.ReadError, got %T", err)
	}
}

func TestEngineEventCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "2024-03-11 09:00:%02d: [Fwl/Error] | firewall fault %d | fw.cpp:1 | AA:BB\n", i, i)
	}
	path := writeTempFile(t, "ds_agent.log", sb.String())

	engine := newAgentEngine(t, Options{MaxEvents: 3})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(analysis.Events) != 3 {
		t.Errorf("Expected 3 retained events, got %d", len(analysis.Events))
	}
	// Counting continues past the cap.
	if analysis.Summary.ErrorCount != 10 {
		t.Errorf("Expected 10 errors, got %d", analysis.Summary.ErrorCount)
	}
}

func TestEngineProcessDump(t *testing.T) {
	path := writeTempFile(t, "TopNBusyProcess.txt",
		"Top 10 Busy Process on 2024-03-11\n"+
			"name=coreServiceShell.exe\n"+
			"cpu=97\n"+
			"mem=1203456\n"+
			"\n"+
			"name=dsa.exe\n"+
			"cpu=12\n")

	engine, err := NewEngine(mustTable(t, common.LogTypeProcess), parser.NewProcessParser(), Options{})
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}

	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Summary.TotalLines != 2 {
		t.Errorf("Expected 2 process entries, got %d", analysis.Summary.TotalLines)
	}
	if analysis.Summary.CriticalCount != 1 {
		t.Errorf("Expected 1 critical (cpu=97), got %d", analysis.Summary.CriticalCount)
	}

	am := analysis.Components["Anti-Malware"]
	if am == nil || am.Errors != 1 {
		t.Fatalf("Expected scan service under Anti-Malware with 1 error, got %+v", am)
	}

	if analysis.IssueCounts["scan_service_cpu_pressure"] != 1 {
		t.Errorf("Expected scan_service_cpu_pressure once, got %v", analysis.IssueCounts)
	}

	foundUrgent := false
	for _, rec := range analysis.Recommendations {
		if strings.Contains(rec, "URGENT") {
			foundUrgent = true
		}
	}
	if !foundUrgent {
		t.Errorf("Expected URGENT recommendation, got %v", analysis.Recommendations)
	}
}

func TestRecommenderRuleOrder(t *testing.T) {
	r := NewRecommender(nil)

	analysis := common.NewAnalysis(common.LogTypeAgent)
	analysis.Summary.CriticalCount = 2
	analysis.Summary.ErrorCount = 15
	analysis.Summary.WarningCount = 12
	analysis.Component("Firewall").Errors = 8
	analysis.RecordIssue(&common.KnownIssueMatch{
		IssueType:  "manager_connectivity_loss",
		Resolution: "Verify heartbeat ports.",
	})
	analysis.IssueCounts["manager_connectivity_loss"] = 11

	recommendations := r.Generate(analysis)
	if len(recommendations) != 5 {
		t.Fatalf("Expected 5 recommendations, got %d: %v", len(recommendations), recommendations)
	}
	if !strings.Contains(recommendations[0], "URGENT") {
		t.Errorf("Expected critical rule first, got %q", recommendations[0])
	}
	if !strings.Contains(recommendations[1], "High error volume") {
		t.Errorf("Expected error rule second, got %q", recommendations[1])
	}
	if !strings.Contains(recommendations[2], "warnings") {
		t.Errorf("Expected warning rule third, got %q", recommendations[2])
	}
	if !strings.Contains(recommendations[3], "Firewall") {
		t.Errorf("Expected component rule fourth, got %q", recommendations[3])
	}
	if !strings.Contains(recommendations[4], "manager_connectivity_loss") {
		t.Errorf("Expected recurring issue rule fifth, got %q", recommendations[4])
	}
}

func TestRecommenderDefaultsWhenQuiet(t *testing.T) {
	r := NewRecommender(nil)
	analysis := common.NewAnalysis(common.LogTypeAgent)
	analysis.Summary.ErrorCount = 1

	recommendations := r.Generate(analysis)
	if len(recommendations) != 1 {
		t.Fatalf("Expected only the default message, got %v", recommendations)
	}
	if !strings.Contains(recommendations[0], "No significant issues") {
		t.Errorf("Unexpected default message %q", recommendations[0])
	}
}

type stubRunbooks struct {
	title string
	path  string
	ok    bool
	query string
}

func (s *stubRunbooks) FindRunbook(query string) (string, string, bool) {
	s.query = query
	return s.title, s.path, s.ok
}

func TestRecommenderCitesRunbooks(t *testing.T) {
	finder := &stubRunbooks{title: "Heartbeat Recovery", path: "runbooks/heartbeat.md", ok: true}
	r := NewRecommender(finder)

	analysis := common.NewAnalysis(common.LogTypeAgent)
	analysis.RecordIssue(&common.KnownIssueMatch{
		IssueType:   "manager_connectivity_loss",
		Description: "Agent lost contact with the manager.",
		Resolution:  "Verify heartbeat ports.",
	})
	analysis.IssueCounts["manager_connectivity_loss"] = 11

	recommendations := r.Generate(analysis)
	if len(recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %v", recommendations)
	}
	if !strings.Contains(recommendations[0], "see runbook: Heartbeat Recovery (runbooks/heartbeat.md)") {
		t.Errorf("Expected a runbook reference, got %q", recommendations[0])
	}
	if !strings.Contains(finder.query, "manager_connectivity_loss") {
		t.Errorf("Expected the issue type in the lookup query, got %q", finder.query)
	}

	finder.ok = false
	recommendations = r.Generate(analysis)
	if strings.Contains(recommendations[0], "see runbook") {
		t.Errorf("Expected no runbook reference on a miss, got %q", recommendations[0])
	}
}

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(context.Context, *common.Analysis) (string, error) {
	return s.text, s.err
}

func TestEngineSummarizerAppendsLast(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:00:00: [Cmd/5] | session opened | a.cpp:1 | AA:BB\n")

	engine := newAgentEngine(t, Options{Summarizer: stubSummarizer{text: "LLM: logs look calm."}})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	last := analysis.Recommendations[len(analysis.Recommendations)-1]
	if !strings.HasPrefix(last, "LLM:") {
		t.Errorf("Expected LLM summary appended last, got %v", analysis.Recommendations)
	}
}

func TestEngineSummarizerFailureTolerated(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:00:00: [Cmd/5] | session opened | a.cpp:1 | AA:BB\n")

	engine := newAgentEngine(t, Options{Summarizer: stubSummarizer{err: errors.New("llm down")}})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze must not fail when the summarizer does: %v", err)
	}
	if len(analysis.Recommendations) == 0 {
		t.Error("Expected rule-based recommendations to survive summarizer failure")
	}
	for _, rec := range analysis.Recommendations {
		if strings.Contains(rec, "llm down") {
			t.Errorf("Summarizer error leaked into recommendations: %q", rec)
		}
	}
}

type countingClassifier struct {
	calls int
	match *common.KnownIssueMatch
	err   error
}

func (c *countingClassifier) ClassifyIssue(context.Context, string) (*common.KnownIssueMatch, error) {
	c.calls++
	return c.match, c.err
}

func TestEngineIssueClassifierGating(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:00:00: [Cmd/5] | session opened | a.cpp:1 | AA:BB\n"+
			"2024-03-11 09:00:01: [Net/Error] | socket reset by peer on channel 7 | net.cpp:5 | AA:BB\n")

	classifier := &countingClassifier{
		match: &common.KnownIssueMatch{
			IssueType:  "socket_reset",
			Severity:   "error",
			Resolution: "Check network stability.",
			Confidence: 0.7,
		},
	}
	engine := newAgentEngine(t, Options{IssueClassifier: classifier})

	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// Only the error-grade record without a static match warrants a call.
	if classifier.calls != 1 {
		t.Errorf("Expected 1 classifier call, got %d", classifier.calls)
	}
	if analysis.IssueCounts["socket_reset"] != 1 {
		t.Errorf("Expected socket_reset recorded, got %v", analysis.IssueCounts)
	}
	found := false
	for _, ki := range analysis.KnownIssues {
		if ki.IssueType == "socket_reset" && ki.Source == common.MatchSourceLLM {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected llm-sourced issue, got %+v", analysis.KnownIssues)
	}
}

func TestEngineRepeatableRuns(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 09:00:00: [Fwl/Error] | firewall fault | fw.cpp:1 | AA:BB\n"+
			"garbage\n")

	engine := newAgentEngine(t, Options{})
	ctx := context.Background()

	first, err := engine.Analyze(ctx, path)
	if err != nil {
		t.Fatalf("First analyze failed: %v", err)
	}
	second, err := engine.Analyze(ctx, path)
	if err != nil {
		t.Fatalf("Second analyze failed: %v", err)
	}

	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Errorf("Expected identical summaries, got %+v and %+v", first.Summary, second.Summary)
	}
	if !reflect.DeepEqual(first.Components, second.Components) {
		t.Errorf("Expected identical component stats")
	}
}

func TestEngineHeuristicStatistics(t *testing.T) {
	path := writeTempFile(t, "ds_agent.log",
		"2024-03-11 03:00:00: [AMSP/Error] | anti-malware engine failure crash | am.cpp:1 | AA:BB\n")

	engine := newAgentEngine(t, Options{Heuristic: true})
	analysis, err := engine.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	stats, ok := analysis.Statistics["heuristic"].(map[string]any)
	if !ok {
		t.Fatalf("Expected heuristic statistics, got %+v", analysis.Statistics)
	}
	if stats["scored_records"] != 1 {
		t.Errorf("Expected 1 scored record, got %v", stats["scored_records"])
	}
	mean, ok := stats["mean_score"].(float64)
	if !ok || mean <= 0 || mean > 1 {
		t.Errorf("Expected mean score in (0,1], got %v", stats["mean_score"])
	}
}

func BenchmarkClassifier(b *testing.B) {
	tables, err := common.LoadDefaultTables()
	if err != nil {
		b.Fatalf("Failed to load tables: %v", err)
	}
	classifier, err := NewClassifier(tables[common.LogTypeAgent])
	if err != nil {
		b.Fatalf("Failed to build classifier: %v", err)
	}
	record := &common.LogRecord{
		Message: "firewall engine connection failed after retry",
		Level:   "4",
		Parsed:  true,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		classifier.Classify(record)
	}
}
