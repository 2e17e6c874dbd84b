package parser

import (
	"regexp"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// AgentParser parses security agent runtime logs (ds_agent.log and the
// error-only ds_agent-err.log variant).
type AgentParser struct {
	layouts []*agentLayout

	topNHeader *regexp.Regexp
	amspLine   *regexp.Regexp
}

// agentLayout is one line format the agent parser tries. Zero indices mean
// the layout does not carry that field.
type agentLayout struct {
	name     string
	regex    *regexp.Regexp
	tsIndex  int
	compIdx  int
	lvlIndex int
	msgIndex int
	// pipeTail splits the message group on " | " into message, location
	// and thread.
	pipeTail bool
}

// NewAgentParser creates an agent log parser.
func NewAgentParser() *AgentParser {
	p := &AgentParser{
		topNHeader: regexp.MustCompile(`^Top\s+\d+\s+Busy\s+Proc`),
		amspLine:   regexp.MustCompile(`^\[\d{4}[-/]\d{1,2}[-/]\d{1,2}[ T]\d{1,2}:\d{2}:\d{2}[^\]]*\]\s+\[\w+\]`),
	}
	p.initLayouts()
	return p
}

func (p *AgentParser) initLayouts() {
	layouts := []struct {
		name     string
		pattern  string
		tsIndex  int
		compIdx  int
		lvlIndex int
		msgIndex int
		pipeTail bool
	}{
		// Primary agent format:
		// 2024-03-11 09:15:04.123456 [+0100]: [Cmd/5] | Command session opened | cmd.c:88 | 2F04:1A30
		{
			name:     "pipe",
			pattern:  `^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:\s+\[[+-]\d{4}\])?):\s*\[([^/\]]+)/([^\]]*)\]\s*\|\s*(.*)$`,
			tsIndex:  1,
			compIdx:  2,
			lvlIndex: 3,
			msgIndex: 4,
			pipeTail: true,
		},
		// Windows Event Log export:
		// Error	3/11/2024 9:15:04 AM	Deep Security Agent	Heartbeat failed
		{
			name:     "event-export",
			pattern:  `^(Error|Warning|Information|Critical|Verbose)(?:\t+|\s{2,})(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}(?:\s*[AP]M)?)(?:\t+|\s{2,})([^\t]+?)(?:\t+|\s{2,})(.*)$`,
			tsIndex:  2,
			compIdx:  3,
			lvlIndex: 1,
			msgIndex: 4,
		},
		// Syslog relay format:
		// Mar 11 09:15:04 dshost ds_agent[4122]: policy applied
		{
			name:     "syslog",
			pattern:  `^(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+\S+\s+([\w./-]+)(?:\[\d+\])?:\s+(.*)$`,
			tsIndex:  1,
			compIdx:  2,
			msgIndex: 3,
		},
		// Timestamp-prefixed free text:
		// 2024-03-11 09:15:04: starting scheduler
		{
			name:     "timestamped",
			pattern:  `^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:\s+\[[+-]\d{4}\])?):\s+(.*)$`,
			tsIndex:  1,
			msgIndex: 2,
		},
		// Bracketed level only:
		// [ERROR] failed to open policy store
		{
			name:     "level-only",
			pattern:  `^\[(\w+)\]\s+(.*)$`,
			lvlIndex: 1,
			msgIndex: 2,
		},
	}

	for _, l := range layouts {
		re, err := regexp.Compile(l.pattern)
		if err != nil {
			continue
		}
		p.layouts = append(p.layouts, &agentLayout{
			name:     l.name,
			regex:    re,
			tsIndex:  l.tsIndex,
			compIdx:  l.compIdx,
			lvlIndex: l.lvlIndex,
			msgIndex: l.msgIndex,
			pipeTail: l.pipeTail,
		})
	}
}

// Name returns the parser name.
func (p *AgentParser) Name() string { return "agent" }

// LogType returns the agent log type.
func (p *AgentParser) LogType() common.LogType { return common.LogTypeAgent }

// ParseLine converts one agent log line into a record. Layouts are tried in
// order; the first match wins. Unmatched lines come back unparsed.
func (p *AgentParser) ParseLine(line string, lineNumber int) *common.LogRecord {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return common.Unparsed(line, lineNumber)
	}

	for _, layout := range p.layouts {
		matches := layout.regex.FindStringSubmatch(trimmed)
		if matches == nil {
			continue
		}

		record := &common.LogRecord{
			Component:  "unknown",
			LineNumber: lineNumber,
			Parsed:     true,
			Raw:        line,
		}
		if layout.tsIndex > 0 {
			record.Timestamp = strings.TrimSpace(matches[layout.tsIndex])
		}
		if layout.compIdx > 0 {
			record.Component = strings.TrimSpace(matches[layout.compIdx])
		}
		if layout.lvlIndex > 0 {
			record.Level = strings.TrimSpace(matches[layout.lvlIndex])
		}
		if layout.msgIndex > 0 {
			record.Message = strings.TrimSpace(matches[layout.msgIndex])
		}
		if layout.pipeTail {
			splitPipeTail(record)
		}
		return record
	}

	return common.Unparsed(line, lineNumber)
}

// splitPipeTail breaks "MESSAGE | LOCATION | THREAD" into its fields. Fewer
// segments leave the trailing fields empty.
func splitPipeTail(record *common.LogRecord) {
	parts := strings.SplitN(record.Message, " | ", 3)
	record.Message = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		record.Location = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		record.Thread = strings.TrimSpace(parts[2])
	}
}

// CanParse reports whether the line matches one of the agent layouts.
func (p *AgentParser) CanParse(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, layout := range p.layouts {
		if layout.regex.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// DetectForeign flags lines that unmistakably belong to process dumps or
// AMSP install logs inside a file presented as an agent log.
func (p *AgentParser) DetectForeign(line string) (common.LogType, bool) {
	trimmed := strings.TrimSpace(line)
	if p.topNHeader.MatchString(trimmed) {
		return common.LogTypeProcess, true
	}
	if p.amspLine.MatchString(trimmed) {
		return common.LogTypeAMSP, true
	}
	return "", false
}
