package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dstriage/dstriage/internal/common"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(analysisType, severity string, at time.Time) *Run {
	return &Run{
		CreatedAt:    at,
		SessionID:    "session-1",
		AnalysisType: analysisType,
		Target:       "/var/log/ds_agent.log",
		Status:       common.StatusCompleted,
		Severity:     severity,
		Summary:      "Parsed 10 of 12 lines: 0 critical, 2 errors, 1 warnings.",
		Envelope: &common.StandardizedOutput{
			AnalysisType:    analysisType,
			Status:          common.StatusCompleted,
			Timestamp:       at.UTC().Format(time.RFC3339),
			Summary:         "Parsed 10 of 12 lines: 0 critical, 2 errors, 1 warnings.",
			Details:         map[string]any{"log_type": "agent"},
			Recommendations: []string{"No significant issues detected. Agent logs look healthy; no action required."},
			Severity:        severity,
			Statistics:      map[string]any{"total_lines": 12},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Save(sampleRun("agent_log", "medium", time.Now()))
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected a non-zero row ID")
	}

	run, err := store.Get(id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run == nil {
		t.Fatal("Expected a stored run")
	}
	if run.AnalysisType != "agent_log" {
		t.Errorf("Expected analysis type agent_log, got %s", run.AnalysisType)
	}
	if run.Envelope == nil || run.Envelope.Severity != "medium" {
		t.Errorf("Expected the envelope to round-trip, got %+v", run.Envelope)
	}
	if len(run.Envelope.Recommendations) != 1 {
		t.Errorf("Expected 1 recommendation, got %d", len(run.Envelope.Recommendations))
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	run, err := store.Get(42)
	if err != nil {
		t.Fatalf("Expected no error for a missing run, got %v", err)
	}
	if run != nil {
		t.Errorf("Expected nil for a missing run, got %+v", run)
	}
}

func TestSaveRejectsEmptyRun(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Save(nil); err == nil {
		t.Error("Expected an error for a nil run")
	}
	if _, err := store.Save(&Run{AnalysisType: "agent_log"}); err == nil {
		t.Error("Expected an error for a run without an envelope")
	}
}

func TestListNewestFirstWithFilter(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	for i, analysisType := range []string{"agent_log", "amsp_log", "agent_log"} {
		if _, err := store.Save(sampleRun(analysisType, "low", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to save run %d: %v", i, err)
		}
	}

	runs, err := store.List("", 0, 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if !runs[0].CreatedAt.After(runs[2].CreatedAt) {
		t.Errorf("Expected newest first, got %v then %v", runs[0].CreatedAt, runs[2].CreatedAt)
	}

	agentRuns, err := store.List("agent_log", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list agent runs: %v", err)
	}
	if len(agentRuns) != 2 {
		t.Fatalf("Expected 2 agent runs, got %d", len(agentRuns))
	}
	for _, run := range agentRuns {
		if run.AnalysisType != "agent_log" {
			t.Errorf("Expected only agent_log runs, got %s", run.AnalysisType)
		}
	}

	paged, err := store.List("", 1, 1)
	if err != nil {
		t.Fatalf("Failed to page runs: %v", err)
	}
	if len(paged) != 1 {
		t.Fatalf("Expected 1 paged run, got %d", len(paged))
	}
	if !paged[0].CreatedAt.Equal(runs[1].CreatedAt) {
		t.Errorf("Expected page to start at the second run, got %v", paged[0].CreatedAt)
	}
}

func TestDeleteAndCount(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Save(sampleRun("agent_log", "low", time.Now()))
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Failed to count runs: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 run, got %d", count)
	}

	existed, err := store.Delete(id)
	if err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}
	if !existed {
		t.Error("Expected delete to report an existing row")
	}

	existed, err = store.Delete(id)
	if err != nil {
		t.Fatalf("Failed to re-delete run: %v", err)
	}
	if existed {
		t.Error("Expected re-delete to report a missing row")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := store.Save(sampleRun("agent_log", "low", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to save run %d: %v", i, err)
		}
	}

	removed, err := store.Prune(2)
	if err != nil {
		t.Fatalf("Failed to prune runs: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 pruned runs, got %d", removed)
	}

	runs, err := store.List("", 0, 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 remaining runs, got %d", len(runs))
	}
	if !runs[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("Expected the newest run kept, got %v", runs[0].CreatedAt)
	}
}
