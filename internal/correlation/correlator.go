// Package correlation ties the per-log-type analyses of one diagnostic
// bundle together: events that happened close in time are grouped into
// windows, and components reported unhealthy by more than one log source
// are flagged. The output is summary analytics, not a verdict; a failure
// here never aborts the bundle analysis.
package correlation

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/logging"
)

const (
	// DefaultWindow is the chained-proximity distance for timing windows.
	DefaultWindow = 5 * time.Minute

	defaultTimingWeight    = 10
	defaultComponentWeight = 15
	maxScore               = 100
)

// Options tunes the correlation pass. Zero values select the defaults.
type Options struct {
	// Window is the maximum distance between an event and the window's
	// last element for the event to join the window.
	Window time.Duration

	// TimingWeight and ComponentWeight contribute per correlation entry
	// to the overall score, capped at 100.
	TimingWeight    int
	ComponentWeight int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.TimingWeight <= 0 {
		o.TimingWeight = defaultTimingWeight
	}
	if o.ComponentWeight <= 0 {
		o.ComponentWeight = defaultComponentWeight
	}
	return o
}

// Correlator groups events across analyses. Stateless; safe for
// concurrent use.
type Correlator struct {
	opts Options
}

// New creates a correlator.
func New(opts Options) *Correlator {
	return &Correlator{opts: opts.withDefaults()}
}

// taggedEvent is one retained event annotated with its log source and a
// best-effort parsed timestamp.
type taggedEvent struct {
	event   *common.ClassifiedEvent
	source  string
	at      time.Time
	hasTime bool
}

// Correlate computes the cross-log correlation summary. Any internal
// panic is recovered and reported in Result.Error; the caller always gets
// a usable result.
func (c *Correlator) Correlate(analyses map[common.LogType]*common.Analysis) (result *Result) {
	result = &Result{
		TimingCorrelations:    make([]TimingCorrelation, 0),
		ComponentCorrelations: make([]ComponentCorrelation, 0),
	}

	defer func() {
		if r := recover(); r != nil {
			logging.L().Warn("correlation failed", zap.Any("cause", r))
			result = &Result{
				TimingCorrelations:    make([]TimingCorrelation, 0),
				ComponentCorrelations: make([]ComponentCorrelation, 0),
				Error:                 fmt.Sprintf("correlation failed: %v", r),
			}
		}
	}()

	events := flatten(analyses)
	if len(events) == 0 {
		return result
	}

	// Lexical sort on the raw timestamp string. In-format timestamps sort
	// chronologically; malformed ones land wherever string order puts
	// them, which keeps the pass deterministic.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].event.Record.Timestamp < events[j].event.Record.Timestamp
	})

	result.TimingCorrelations = c.timingCorrelations(events)
	result.ComponentCorrelations = componentCorrelations(events)
	result.Score = c.score(len(result.TimingCorrelations), len(result.ComponentCorrelations))
	return result
}

// flatten collects the retained events of every analysis, tagged with the
// log source they came from. Analyses are visited in log-type order so
// ties in the timestamp sort stay stable across runs.
func flatten(analyses map[common.LogType]*common.Analysis) []taggedEvent {
	types := make([]common.LogType, 0, len(analyses))
	for t := range analyses {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var events []taggedEvent
	for _, t := range types {
		analysis := analyses[t]
		if analysis == nil {
			continue
		}
		for _, ev := range analysis.Events {
			if ev == nil || ev.Record == nil || ev.Severity < common.SeverityWarning {
				continue
			}
			source := ev.Source
			if source == "" {
				source = string(t)
			}
			at, ok := common.ParseTimestamp(ev.Record.Timestamp)
			events = append(events, taggedEvent{
				event:   ev,
				source:  source,
				at:      at,
				hasTime: ok,
			})
		}
	}
	return events
}

// timingCorrelations walks the sorted events growing a window while each
// event is within the window distance of the window's last element. The
// anchor is deliberately the last element, not the first: a steady
// trickle of close events chains into one long window. Events without a
// parseable timestamp close the current window and cannot anchor a new
// one.
func (c *Correlator) timingCorrelations(events []taggedEvent) []TimingCorrelation {
	correlations := make([]TimingCorrelation, 0)
	var window []taggedEvent

	flush := func() {
		if len(window) >= 2 {
			correlations = append(correlations, newTimingCorrelation(window))
		}
		window = window[:0]
	}

	for _, ev := range events {
		if !ev.hasTime {
			flush()
			continue
		}
		if len(window) == 0 {
			window = append(window, ev)
			continue
		}
		delta := ev.at.Sub(window[len(window)-1].at)
		if delta < 0 {
			delta = -delta
		}
		if delta <= c.opts.Window {
			window = append(window, ev)
		} else {
			flush()
			window = append(window, ev)
		}
	}
	flush()
	return correlations
}

func newTimingCorrelation(window []taggedEvent) TimingCorrelation {
	sources := make(map[string]bool)
	severities := make(map[string]bool)
	for _, ev := range window {
		sources[ev.source] = true
		severities[ev.event.Severity.String()] = true
	}
	first := window[0].event.Record.Timestamp
	last := window[len(window)-1].event.Record.Timestamp
	return TimingCorrelation{
		Timeframe:   fmt.Sprintf("%s - %s", first, last),
		EventCount:  len(window),
		Sources:     sortedKeys(sources),
		SeverityMix: sortedKeys(severities),
	}
}

// componentCorrelations groups events by component and keeps the
// components reported by at least two distinct log sources.
func componentCorrelations(events []taggedEvent) []ComponentCorrelation {
	type group struct {
		sources    map[string]bool
		severities map[string]bool
		count      int
	}

	groups := make(map[string]*group)
	for _, ev := range events {
		name := ev.event.ComponentName
		if name == "" {
			name = ev.event.Record.Component
		}
		if name == "" || name == "unknown" {
			continue
		}
		g := groups[name]
		if g == nil {
			g = &group{
				sources:    make(map[string]bool),
				severities: make(map[string]bool),
			}
			groups[name] = g
		}
		g.sources[ev.source] = true
		g.severities[ev.event.Severity.String()] = true
		g.count++
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	correlations := make([]ComponentCorrelation, 0)
	for _, name := range names {
		g := groups[name]
		if len(g.sources) < 2 {
			continue
		}
		correlations = append(correlations, ComponentCorrelation{
			Component:       name,
			AffectedSources: sortedKeys(g.sources),
			EventCount:      g.count,
			SeverityLevels:  sortedKeys(g.severities),
		})
	}
	return correlations
}

func (c *Correlator) score(timing, component int) int {
	score := c.opts.TimingWeight*timing + c.opts.ComponentWeight*component
	if score > maxScore {
		return maxScore
	}
	return score
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
