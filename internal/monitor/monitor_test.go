package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	c := NewCounter("lines")
	c.Inc()
	c.Add(41)
	if c.Get() != 42 {
		t.Errorf("Expected 42, got %d", c.Get())
	}
	c.Reset()
	if c.Get() != 0 {
		t.Errorf("Expected 0 after reset, got %d", c.Get())
	}
	if c.Name() != "lines" {
		t.Errorf("Expected name lines, got %s", c.Name())
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if c.Get() != 1000 {
		t.Errorf("Expected 1000, got %d", c.Get())
	}
}

func TestTimerAggregates(t *testing.T) {
	timer := NewTimer("parse")
	if timer.MinTime() != 0 {
		t.Errorf("Expected 0 min before any record, got %v", timer.MinTime())
	}
	if timer.AvgTime() != 0 {
		t.Errorf("Expected 0 avg before any record, got %v", timer.AvgTime())
	}

	timer.Record(10 * time.Millisecond)
	timer.Record(30 * time.Millisecond)
	timer.Record(20 * time.Millisecond)
	timer.RecordError()

	if timer.Count() != 3 {
		t.Errorf("Expected 3 measurements, got %d", timer.Count())
	}
	if timer.MinTime() != 10*time.Millisecond {
		t.Errorf("Expected 10ms min, got %v", timer.MinTime())
	}
	if timer.MaxTime() != 30*time.Millisecond {
		t.Errorf("Expected 30ms max, got %v", timer.MaxTime())
	}
	if timer.AvgTime() != 20*time.Millisecond {
		t.Errorf("Expected 20ms avg, got %v", timer.AvgTime())
	}
	if timer.TotalTime() != 60*time.Millisecond {
		t.Errorf("Expected 60ms total, got %v", timer.TotalTime())
	}
	if timer.Errors() != 1 {
		t.Errorf("Expected 1 error, got %d", timer.Errors())
	}
}

func TestMonitorTrackStage(t *testing.T) {
	m := New()

	if err := m.TrackStage("analyze", func() error { return nil }); err != nil {
		t.Fatalf("TrackStage must pass through nil, got %v", err)
	}
	wantErr := errors.New("broken")
	if err := m.TrackStage("analyze", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("TrackStage must pass through the error, got %v", err)
	}

	timer := m.Timer("analyze")
	if timer.Count() != 2 {
		t.Errorf("Expected 2 runs, got %d", timer.Count())
	}
	if timer.Errors() != 1 {
		t.Errorf("Expected 1 failed run, got %d", timer.Errors())
	}
}

func TestMonitorTimerReuse(t *testing.T) {
	m := New()
	a := m.Timer("extract")
	b := m.Timer("extract")
	if a != b {
		t.Error("Expected the same timer for the same stage")
	}
}

func TestSnapshotSortsStages(t *testing.T) {
	m := New()
	m.Timer("extract").Record(time.Millisecond)
	m.Timer("analyze").Record(2 * time.Millisecond)
	m.Timer("correlate").Record(3 * time.Millisecond)
	m.RecordLines(100)
	m.RecordBytes(4096)

	snap := m.Snapshot()
	if len(snap.Stages) != 3 {
		t.Fatalf("Expected 3 stages, got %d", len(snap.Stages))
	}
	want := []string{"analyze", "correlate", "extract"}
	for i, stage := range snap.Stages {
		if stage.Stage != want[i] {
			t.Errorf("Expected stage %s at index %d, got %s", want[i], i, stage.Stage)
		}
	}
	if snap.Lines != 100 || snap.Bytes != 4096 {
		t.Errorf("Expected throughput counters in the snapshot, got %d lines %d bytes", snap.Lines, snap.Bytes)
	}
	if snap.Elapsed <= 0 {
		t.Errorf("Expected a positive elapsed time, got %v", snap.Elapsed)
	}
	if snap.Memory.SysBytes == 0 {
		t.Error("Expected memory stats to be populated")
	}
}

type recordingSink struct {
	stages []string
}

func (r *recordingSink) Report(stage, message string, percent int) {
	r.stages = append(r.stages, stage)
}

func TestStageSinkChargesElapsedStages(t *testing.T) {
	m := New()
	inner := &recordingSink{}
	sink := NewStageSink(m, inner)

	sink.Report("extract", "opening", 5)
	time.Sleep(5 * time.Millisecond)
	sink.Report("analyze", "agent", 40)
	sink.Report("analyze", "amsp", 60)
	time.Sleep(5 * time.Millisecond)
	sink.Report("done", "complete", 100)
	sink.Flush()

	if got := m.Timer("extract").Count(); got != 1 {
		t.Errorf("Expected 1 extract measurement, got %d", got)
	}
	if m.Timer("extract").TotalTime() < 5*time.Millisecond {
		t.Errorf("Expected at least 5ms charged to extract, got %v", m.Timer("extract").TotalTime())
	}
	if got := m.Timer("analyze").Count(); got != 1 {
		t.Errorf("Expected the analyze stage charged once, got %d", got)
	}
	if got := m.Timer("done").Count(); got != 1 {
		t.Errorf("Expected the flush to close the last stage, got %d", got)
	}

	if len(inner.stages) != 4 {
		t.Errorf("Expected all reports forwarded, got %v", inner.stages)
	}
}

func TestStageSinkNilInner(t *testing.T) {
	sink := NewStageSink(New(), nil)
	sink.Report("extract", "opening", 5)
	sink.Flush()
}
