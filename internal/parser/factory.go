package parser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dstriage/dstriage/internal/common"
)

// DefaultFactory is the default parser factory.
var DefaultFactory = NewFactory()

// detectSampleSize is how many leading lines type detection inspects.
const detectSampleSize = 50

// Factory hands out line parsers by log type and detects the type of an
// unlabeled file from a sample of its lines.
type Factory struct {
	parsers map[common.LogType]LineParser
	mu      sync.RWMutex
}

// NewFactory creates a factory with the vendor parsers and the generic
// fallback registered.
func NewFactory() *Factory {
	f := &Factory{
		parsers: make(map[common.LogType]LineParser),
	}

	f.Register(NewAgentParser())
	f.Register(NewAMSPParser())
	f.Register(NewProcessParser())
	f.Register(NewGenericParser())

	return f
}

// Register adds or replaces the parser for its log type.
func (f *Factory) Register(p LineParser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parsers[p.LogType()] = p
}

// ForType returns the parser registered for the log type.
func (f *Factory) ForType(logType common.LogType) (LineParser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if p, ok := f.parsers[common.LogType(strings.ToLower(string(logType)))]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown log type: %s", logType)
}

// Detect scores every registered parser over a sample of lines and returns
// the log type with the most matches. Vendor parsers win ties against the
// generic fallback; the generic parser is only chosen when no vendor parser
// matched at least half as many lines.
func (f *Factory) Detect(samples []string) common.LogType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(samples) > detectSampleSize {
		samples = samples[:detectSampleSize]
	}

	scores := make(map[common.LogType]int)
	nonBlank := 0
	for _, sample := range samples {
		if strings.TrimSpace(sample) == "" {
			continue
		}
		nonBlank++
		for logType, p := range f.parsers {
			if p.CanParse(sample) {
				scores[logType]++
			}
		}
	}
	if nonBlank == 0 {
		return common.LogTypeGeneric
	}

	var bestType common.LogType
	var bestScore int
	for _, logType := range []common.LogType{
		common.LogTypeAgent,
		common.LogTypeAMSP,
		common.LogTypeProcess,
	} {
		if score := scores[logType]; score > bestScore {
			bestType = logType
			bestScore = score
		}
	}

	// A vendor format must fit at least half the sample; anything weaker
	// is treated as an unknown format.
	if bestType == "" || bestScore*2 < nonBlank {
		return common.LogTypeGeneric
	}
	return bestType
}

// DetectFile reads a sample from path and detects its log type.
func (f *Factory) DetectFile(path string) (common.LogType, error) {
	lines, err := ReadLines(path, ReadOptions{MaxLines: detectSampleSize})
	if err != nil {
		return "", err
	}
	return f.Detect(lines), nil
}
