package analyzer

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/dstriage/dstriage/internal/common"
)

// Feature weights for the heuristic score. The deterministic table path
// stays authoritative; this scorer is a second opinion surfaced in the
// analysis statistics.
const (
	weightCriticality = 0.40
	weightKeywords    = 0.30
	weightEntropy     = 0.15
	weightTimeOfDay   = 0.15
)

// HeuristicScorer computes a [0,1] feature score per record from component
// criticality, error-keyword density, message entropy and time of day.
type HeuristicScorer struct {
	criticality map[string]float64
	keywords    []string
}

// NewHeuristicScorer builds a scorer from the table's criticality weights.
func NewHeuristicScorer(table *common.PatternTable) *HeuristicScorer {
	return &HeuristicScorer{
		criticality: table.Criticality,
		keywords: []string{
			"fail", "failed", "failure", "error", "timeout", "denied",
			"refused", "crash", "corrupt", "fatal", "exception", "abort",
		},
	}
}

// Score computes the weighted feature score for one record.
func (h *HeuristicScorer) Score(record *common.LogRecord, component string) float64 {
	if record == nil || !record.Parsed {
		return 0
	}

	criticality := h.criticality[component]
	density := h.keywordDensity(record.Message)
	entropy := normalizedEntropy(record.Message)
	timeOfDay := timeOfDayFactor(record)

	return weightCriticality*criticality +
		weightKeywords*density +
		weightEntropy*entropy +
		weightTimeOfDay*timeOfDay
}

// SeverityFor maps a feature score onto the severity thresholds.
func (h *HeuristicScorer) SeverityFor(score float64) common.Severity {
	switch {
	case score >= 0.8:
		return common.SeverityCritical
	case score >= 0.6:
		return common.SeverityWarning
	case score >= 0.3:
		return common.SeverityInfo
	default:
		return common.SeverityNormal
	}
}

// MeanScore reduces a score series for the statistics block.
func MeanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

// keywordDensity is the share of error vocabulary in the message, scaled so
// one keyword in four words saturates the feature.
func (h *HeuristicScorer) keywordDensity(message string) float64 {
	words := strings.Fields(strings.ToLower(message))
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, word := range words {
		for _, kw := range h.keywords {
			if strings.Contains(word, kw) {
				hits++
				break
			}
		}
	}
	density := 4 * float64(hits) / float64(len(words))
	return math.Min(density, 1)
}

// normalizedEntropy is the character entropy of the message divided by the
// maximum entropy for its alphabet. Repetitive filler scores near 0, dense
// hex dumps and stack traces score near 1.
func normalizedEntropy(message string) float64 {
	if message == "" {
		return 0
	}

	counts := make(map[rune]float64)
	total := 0.0
	for _, r := range message {
		counts[r]++
		total++
	}
	if len(counts) < 2 {
		return 0
	}

	dist := make([]float64, 0, len(counts))
	for _, c := range counts {
		dist = append(dist, c/total)
	}

	entropy := stat.Entropy(dist)
	maxEntropy := math.Log(float64(len(counts)))
	if maxEntropy == 0 {
		return 0
	}
	return math.Min(entropy/maxEntropy, 1)
}

// timeOfDayFactor weighs events by when they happened: off-hours activity
// is more suspicious than business-hours noise. Records without a
// parseable timestamp sit in the middle.
func timeOfDayFactor(record *common.LogRecord) float64 {
	t, ok := record.Time()
	if !ok {
		return 0.5
	}
	hour := t.Hour()
	switch {
	case hour >= 22 || hour < 6:
		return 1.0
	case hour >= 8 && hour < 18:
		return 0.3
	default:
		return 0.6
	}
}
