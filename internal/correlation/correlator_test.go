package correlation

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/dstriage/dstriage/internal/common"
)

func event(ts, component string, severity common.Severity, source string) *common.ClassifiedEvent {
	return &common.ClassifiedEvent{
		Record: &common.LogRecord{
			Timestamp: ts,
			Message:   "event at " + ts,
			Parsed:    true,
		},
		Severity:      severity,
		ComponentName: component,
		Source:        source,
	}
}

func analysisWith(logType common.LogType, events ...*common.ClassifiedEvent) *common.Analysis {
	a := common.NewAnalysis(logType)
	a.Events = events
	return a
}

func TestCorrelateWindowing(t *testing.T) {
	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: analysisWith(common.LogTypeAgent,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:20:00", "Driver", common.SeverityWarning, "agent"),
		),
		common.LogTypeAMSP: analysisWith(common.LogTypeAMSP,
			event("2024-03-11 09:03:00", "Scan Engine", common.SeverityError, "amsp"),
		),
	}

	result := New(Options{}).Correlate(analyses)
	if result.Error != "" {
		t.Fatalf("Unexpected correlation error: %s", result.Error)
	}

	// 09:00 and 09:03 group; 09:20 stays isolated.
	if len(result.TimingCorrelations) != 1 {
		t.Fatalf("Expected 1 timing correlation, got %d: %+v",
			len(result.TimingCorrelations), result.TimingCorrelations)
	}
	tc := result.TimingCorrelations[0]
	if tc.EventCount != 2 {
		t.Errorf("Expected 2 events in window, got %d", tc.EventCount)
	}
	if !reflect.DeepEqual(tc.Sources, []string{"agent", "amsp"}) {
		t.Errorf("Expected sorted sources [agent amsp], got %v", tc.Sources)
	}
	if tc.Timeframe != "2024-03-11 09:00:00 - 2024-03-11 09:03:00" {
		t.Errorf("Unexpected timeframe %q", tc.Timeframe)
	}

	// No component spans two sources here.
	if len(result.ComponentCorrelations) != 0 {
		t.Errorf("Expected no component correlations, got %+v", result.ComponentCorrelations)
	}
	if result.Score != 10 {
		t.Errorf("Expected score 10, got %d", result.Score)
	}
}

func TestCorrelateChainedWindowDrift(t *testing.T) {
	// Each event is 4 minutes from the previous one, 12 minutes end to
	// end: chained proximity keeps them in a single window.
	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: analysisWith(common.LogTypeAgent,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:04:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:08:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:12:00", "Firewall", common.SeverityError, "agent"),
		),
	}

	result := New(Options{}).Correlate(analyses)
	if len(result.TimingCorrelations) != 1 {
		t.Fatalf("Expected 1 drifting window, got %d", len(result.TimingCorrelations))
	}
	tc := result.TimingCorrelations[0]
	if tc.EventCount != 4 {
		t.Errorf("Expected 4 events in window, got %d", tc.EventCount)
	}
	if tc.Timeframe != "2024-03-11 09:00:00 - 2024-03-11 09:12:00" {
		t.Errorf("Unexpected timeframe %q", tc.Timeframe)
	}
}

func TestCorrelateComponentAcrossSources(t *testing.T) {
	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: analysisWith(common.LogTypeAgent,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "agent"),
		),
		common.LogTypeAMSP: analysisWith(common.LogTypeAMSP,
			event("2024-03-11 12:00:00", "Firewall", common.SeverityCritical, "amsp"),
		),
	}

	result := New(Options{}).Correlate(analyses)
	if len(result.TimingCorrelations) != 0 {
		t.Errorf("Expected no timing correlations, got %+v", result.TimingCorrelations)
	}
	if len(result.ComponentCorrelations) != 1 {
		t.Fatalf("Expected 1 component correlation, got %d", len(result.ComponentCorrelations))
	}
	cc := result.ComponentCorrelations[0]
	if cc.Component != "Firewall" {
		t.Errorf("Expected Firewall, got %s", cc.Component)
	}
	if !reflect.DeepEqual(cc.AffectedSources, []string{"agent", "amsp"}) {
		t.Errorf("Expected sources [agent amsp], got %v", cc.AffectedSources)
	}
	if cc.EventCount != 2 {
		t.Errorf("Expected 2 events, got %d", cc.EventCount)
	}
	if !reflect.DeepEqual(cc.SeverityLevels, []string{"critical", "error"}) {
		t.Errorf("Expected [critical error], got %v", cc.SeverityLevels)
	}
	if result.Score != 15 {
		t.Errorf("Expected score 15, got %d", result.Score)
	}
}

func TestCorrelateMalformedTimestampClosesWindow(t *testing.T) {
	// The malformed timestamp sorts between the two good ones and splits
	// what would otherwise be a single 2-minute window.
	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: analysisWith(common.LogTypeAgent,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:01:xx", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:02:00", "Firewall", common.SeverityError, "agent"),
		),
	}

	result := New(Options{}).Correlate(analyses)
	if len(result.TimingCorrelations) != 0 {
		t.Errorf("Expected malformed timestamp to split the window, got %+v",
			result.TimingCorrelations)
	}
}

func TestCorrelateEmptyAndNilInputs(t *testing.T) {
	result := New(Options{}).Correlate(nil)
	if result.Score != 0 || result.Error != "" {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if result.TimingCorrelations == nil || result.ComponentCorrelations == nil {
		t.Error("Expected non-nil empty slices")
	}

	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: nil,
		common.LogTypeAMSP: analysisWith(common.LogTypeAMSP,
			&common.ClassifiedEvent{Severity: common.SeverityError},
		),
	}
	result = New(Options{}).Correlate(analyses)
	if result.Error != "" {
		t.Errorf("Expected nil entries tolerated, got error %s", result.Error)
	}
	if result.Score != 0 {
		t.Errorf("Expected score 0, got %d", result.Score)
	}
}

func TestCorrelateScoreCap(t *testing.T) {
	agent := common.NewAnalysis(common.LogTypeAgent)
	amsp := common.NewAnalysis(common.LogTypeAMSP)

	// Seven well-separated pairs produce seven timing windows; the first
	// three pairs share a component across both sources.
	for h := 0; h < 7; h++ {
		component := fmt.Sprintf("Solo-%d", h)
		secondSource := "agent"
		target := agent
		if h < 3 {
			component = fmt.Sprintf("Shared-%d", h)
			secondSource = "amsp"
			target = amsp
		}
		agent.Events = append(agent.Events,
			event(fmt.Sprintf("2024-03-11 %02d:00:00", h), component, common.SeverityError, "agent"))
		target.Events = append(target.Events,
			event(fmt.Sprintf("2024-03-11 %02d:01:00", h), component, common.SeverityError, secondSource))
	}

	result := New(Options{}).Correlate(map[common.LogType]*common.Analysis{
		common.LogTypeAgent: agent,
		common.LogTypeAMSP:  amsp,
	})

	if len(result.TimingCorrelations) != 7 {
		t.Fatalf("Expected 7 timing correlations, got %d", len(result.TimingCorrelations))
	}
	if len(result.ComponentCorrelations) != 3 {
		t.Fatalf("Expected 3 component correlations, got %+v", result.ComponentCorrelations)
	}
	// 10*7 + 15*3 = 115, capped.
	if result.Score != 100 {
		t.Errorf("Expected capped score 100, got %d", result.Score)
	}
}

func TestCorrelateCustomWindow(t *testing.T) {
	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: analysisWith(common.LogTypeAgent,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:02:00", "Firewall", common.SeverityError, "agent"),
		),
	}

	tight := New(Options{Window: time.Minute}).Correlate(analyses)
	if len(tight.TimingCorrelations) != 0 {
		t.Errorf("Expected no windows at 1m distance, got %+v", tight.TimingCorrelations)
	}

	weighted := New(Options{TimingWeight: 40}).Correlate(analyses)
	if len(weighted.TimingCorrelations) != 1 || weighted.Score != 40 {
		t.Errorf("Expected score 40 with custom weight, got %d", weighted.Score)
	}
}

func TestCorrelateDeterministic(t *testing.T) {
	analyses := map[common.LogType]*common.Analysis{
		common.LogTypeAgent: analysisWith(common.LogTypeAgent,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "agent"),
			event("2024-03-11 09:00:00", "Driver", common.SeverityWarning, "agent"),
		),
		common.LogTypeAMSP: analysisWith(common.LogTypeAMSP,
			event("2024-03-11 09:00:00", "Firewall", common.SeverityError, "amsp"),
			event("2024-03-11 09:00:00", "Driver", common.SeverityError, "amsp"),
		),
		common.LogTypeProcess: analysisWith(common.LogTypeProcess,
			event("2024-03-11 09:00:00", "Driver", common.SeverityCritical, "process"),
		),
	}

	c := New(Options{})
	first := c.Correlate(analyses)
	second := c.Correlate(analyses)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected deterministic results, got %+v and %+v", first, second)
	}
}

func TestResultAsMap(t *testing.T) {
	result := &Result{
		TimingCorrelations: []TimingCorrelation{{
			Timeframe:   "a - b",
			EventCount:  2,
			Sources:     []string{"agent"},
			SeverityMix: []string{"error"},
		}},
		ComponentCorrelations: make([]ComponentCorrelation, 0),
		Score:                 10,
	}

	m := result.AsMap()
	if m["correlation_score"] != 10 {
		t.Errorf("Expected score 10, got %v", m["correlation_score"])
	}
	timing, ok := m["timing_correlations"].([]map[string]any)
	if !ok || len(timing) != 1 {
		t.Fatalf("Expected 1 timing entry, got %v", m["timing_correlations"])
	}
	if timing[0]["event_count"] != 2 {
		t.Errorf("Expected event_count 2, got %v", timing[0]["event_count"])
	}
	if _, present := m["error"]; present {
		t.Error("Expected no error key on success")
	}
}

func BenchmarkCorrelate(b *testing.B) {
	agent := common.NewAnalysis(common.LogTypeAgent)
	for i := 0; i < 5000; i++ {
		agent.Events = append(agent.Events, event(
			fmt.Sprintf("2024-03-11 %02d:%02d:00", i/60%24, i%60),
			fmt.Sprintf("Component-%d", i%8),
			common.SeverityError,
			"agent"))
	}
	analyses := map[common.LogType]*common.Analysis{common.LogTypeAgent: agent}
	c := New(Options{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Correlate(analyses)
	}
}
