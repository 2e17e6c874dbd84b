package monitor

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Counter is a goroutine-safe monotonic counter.
type Counter struct {
	value int64
	name  string
}

// NewCounter creates a named counter.
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds value to the counter.
func (c *Counter) Add(value int64) {
	atomic.AddInt64(&c.value, value)
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset sets the counter back to 0.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// Name returns the counter name.
func (c *Counter) Name() string {
	return c.name
}

// Timer aggregates duration measurements for one stage.
type Timer struct {
	count     int64
	totalTime int64
	minTime   int64
	maxTime   int64
	errors    int64
	name      string
}

// NewTimer creates a named timer.
func NewTimer(name string) *Timer {
	return &Timer{
		name:    name,
		minTime: int64(^uint64(0) >> 1), // max int64 until the first record
	}
}

// Record adds one duration measurement.
func (t *Timer) Record(duration time.Duration) {
	nanos := duration.Nanoseconds()

	atomic.AddInt64(&t.count, 1)
	atomic.AddInt64(&t.totalTime, nanos)

	for {
		current := atomic.LoadInt64(&t.minTime)
		if nanos >= current {
			break
		}
		if atomic.CompareAndSwapInt64(&t.minTime, current, nanos) {
			break
		}
	}

	for {
		current := atomic.LoadInt64(&t.maxTime)
		if nanos <= current {
			break
		}
		if atomic.CompareAndSwapInt64(&t.maxTime, current, nanos) {
			break
		}
	}
}

// RecordError counts one failed run of the stage.
func (t *Timer) RecordError() {
	atomic.AddInt64(&t.errors, 1)
}

// Count returns how many measurements were recorded.
func (t *Timer) Count() int64 {
	return atomic.LoadInt64(&t.count)
}

// Errors returns how many runs failed.
func (t *Timer) Errors() int64 {
	return atomic.LoadInt64(&t.errors)
}

// TotalTime returns the sum of all measurements.
func (t *Timer) TotalTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&t.totalTime))
}

// MinTime returns the shortest measurement, or 0 before any record.
func (t *Timer) MinTime() time.Duration {
	minTime := atomic.LoadInt64(&t.minTime)
	if minTime == int64(^uint64(0)>>1) {
		return 0
	}
	return time.Duration(minTime)
}

// MaxTime returns the longest measurement.
func (t *Timer) MaxTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&t.maxTime))
}

// AvgTime returns the mean measurement, or 0 before any record.
func (t *Timer) AvgTime() time.Duration {
	count := atomic.LoadInt64(&t.count)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&t.totalTime) / count)
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// MemoryStats is the runtime memory footprint at snapshot time.
type MemoryStats struct {
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

func collectMemory() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		HeapAllocBytes:  m.HeapAlloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
}
