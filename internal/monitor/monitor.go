// Package monitor tracks per-stage performance of a triage run for the
// --stats flag. Counters and timers are atomic, so engines and parsers can
// record from concurrent goroutines; a run is one-shot, so there is no
// background collection loop or retention window.
package monitor

import (
	"sort"
	"sync"
	"time"
)

// Monitor aggregates stage timings and throughput counters for one run.
type Monitor struct {
	mu     sync.RWMutex
	timers map[string]*Timer
	lines  *Counter
	bytes  *Counter
	start  time.Time
}

// New creates a monitor with its clock started.
func New() *Monitor {
	return &Monitor{
		timers: make(map[string]*Timer),
		lines:  NewCounter("lines"),
		bytes:  NewCounter("bytes"),
		start:  time.Now(),
	}
}

// Timer returns the timer for a stage, creating it on first use.
func (m *Monitor) Timer(stage string) *Timer {
	m.mu.RLock()
	timer, ok := m.timers[stage]
	m.mu.RUnlock()
	if ok {
		return timer
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok = m.timers[stage]; ok {
		return timer
	}
	timer = NewTimer(stage)
	m.timers[stage] = timer
	return timer
}

// TrackStage times fn under the stage's timer and counts its failure.
// The error passes through untouched.
func (m *Monitor) TrackStage(stage string, fn func() error) error {
	timer := m.Timer(stage)
	start := time.Now()
	err := fn()
	timer.Record(time.Since(start))
	if err != nil {
		timer.RecordError()
	}
	return err
}

// RecordLines adds processed lines to the throughput counter.
func (m *Monitor) RecordLines(count int64) {
	m.lines.Add(count)
}

// RecordBytes adds processed bytes to the throughput counter.
func (m *Monitor) RecordBytes(count int64) {
	m.bytes.Add(count)
}

// StageStats is one stage's aggregate in a snapshot.
type StageStats struct {
	Stage   string        `json:"stage"`
	Count   int64         `json:"count"`
	Total   time.Duration `json:"total"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
	Errors  int64         `json:"errors"`
}

// Snapshot is the point-in-time state of a run, ready for rendering.
type Snapshot struct {
	Timestamp      time.Time     `json:"timestamp"`
	Elapsed        time.Duration `json:"elapsed"`
	Lines          int64         `json:"lines"`
	Bytes          int64         `json:"bytes"`
	LinesPerSecond float64       `json:"lines_per_second"`
	Memory         MemoryStats   `json:"memory"`
	Stages         []StageStats  `json:"stages"`
}

// Snapshot captures the current aggregates. Stages are sorted by name so
// repeated renders are stable.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	stages := make([]StageStats, 0, len(m.timers))
	for name, timer := range m.timers {
		stages = append(stages, StageStats{
			Stage:   name,
			Count:   timer.Count(),
			Total:   timer.TotalTime(),
			Min:     timer.MinTime(),
			Max:     timer.MaxTime(),
			Average: timer.AvgTime(),
			Errors:  timer.Errors(),
		})
	}
	m.mu.RUnlock()

	sort.Slice(stages, func(i, j int) bool { return stages[i].Stage < stages[j].Stage })

	elapsed := time.Since(m.start)
	lines := m.lines.Get()
	var rate float64
	if seconds := elapsed.Seconds(); seconds > 0 {
		rate = float64(lines) / seconds
	}

	return Snapshot{
		Timestamp:      time.Now(),
		Elapsed:        elapsed,
		Lines:          lines,
		Bytes:          m.bytes.Get(),
		LinesPerSecond: rate,
		Memory:         collectMemory(),
		Stages:         stages,
	}
}

// progressSink matches the analyzer's progress interface without
// importing it.
type progressSink interface {
	Report(stage, message string, percent int)
}

// StageSink derives stage timings from progress reports: the time between
// two reports is charged to the earlier report's stage. Reports forward
// to the wrapped sink so spinners and sessions still see them.
type StageSink struct {
	monitor *Monitor
	inner   progressSink

	mu      sync.Mutex
	current string
	started time.Time
}

// NewStageSink wraps a progress sink with stage timing. inner may be nil.
func NewStageSink(monitor *Monitor, inner progressSink) *StageSink {
	return &StageSink{monitor: monitor, inner: inner}
}

// Report implements the progress sink contract.
func (s *StageSink) Report(stage, message string, percent int) {
	now := time.Now()

	s.mu.Lock()
	if s.current != "" && stage != s.current {
		s.monitor.Timer(s.current).Record(now.Sub(s.started))
	}
	if stage != s.current {
		s.current = stage
		s.started = now
	}
	s.mu.Unlock()

	if s.inner != nil {
		s.inner.Report(stage, message, percent)
	}
}

// Flush charges the still-open stage. Call once the run completes.
func (s *StageSink) Flush() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" {
		s.monitor.Timer(s.current).Record(now.Sub(s.started))
		s.current = ""
	}
}
