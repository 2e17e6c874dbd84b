package parser

import (
	"regexp"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// AMSPParser parses anti-malware solution platform install logs
// (AMSP-Inst_*.log and related installer output). Install logs come from
// several installer generations, so seven bracketed layouts are tried in
// order.
type AMSPParser struct {
	layouts []*amspLayout

	agentPipe  *regexp.Regexp
	topNHeader *regexp.Regexp
}

type amspLayout struct {
	name     string
	regex    *regexp.Regexp
	tsIndex  int
	lvlIndex int
	msgIndex int
	thrIndex int
}

// NewAMSPParser creates an AMSP install log parser.
func NewAMSPParser() *AMSPParser {
	p := &AMSPParser{
		agentPipe:  regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:\s+\[[+-]\d{4}\])?:\s*\[[^/\]]+/[^\]]*\]\s*\|`),
		topNHeader: regexp.MustCompile(`^Top\s+\d+\s+Busy\s+Proc`),
	}
	p.initLayouts()
	return p
}

func (p *AMSPParser) initLayouts() {
	layouts := []struct {
		name     string
		pattern  string
		tsIndex  int
		lvlIndex int
		msgIndex int
		thrIndex int
	}{
		// [2024-03-11 09:15:04.123] [ERROR] VSReadVirusPattern failed ret=-2
		{
			name:     "dashed-date",
			pattern:  `^\[(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?)\]\s+\[(\w+)\]\s*(.*)$`,
			tsIndex:  1,
			lvlIndex: 2,
			msgIndex: 3,
		},
		// [2024/03/11 09:15:04.123] [INFO] engine initialized
		{
			name:     "slashed-date",
			pattern:  `^\[(\d{4}/\d{1,2}/\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?)\]\s+\[(\w+)\]\s*(.*)$`,
			tsIndex:  1,
			lvlIndex: 2,
			msgIndex: 3,
		},
		// [3/11/2024 9:15:04 AM] [WARN] retrying download
		{
			name:     "us-date",
			pattern:  `^\[(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}(?:\s*[AP]M)?)\]\s+\[(\w+)\]\s*(.*)$`,
			tsIndex:  1,
			lvlIndex: 2,
			msgIndex: 3,
		},
		// 2024-03-11 09:15:04 [4122:8812] [ERROR] driver install failed
		// Level bracket is optional in this generation.
		{
			name:     "pid-tid",
			pattern:  `^(\d{4}[-/]\d{1,2}[-/]\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?)\s+\[(\d+:\d+)\]\s*(?:\[(\w+)\]\s*)?(.*)$`,
			tsIndex:  1,
			thrIndex: 2,
			lvlIndex: 3,
			msgIndex: 4,
		},
		// [2024-03-11T09:15:04.123Z] [INFO] service started
		{
			name:     "iso8601",
			pattern:  `^\[?(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:Z|[+-]\d{2}:?\d{2})?)\]?\s+\[(\w+)\]\s*(.*)$`,
			tsIndex:  1,
			lvlIndex: 2,
			msgIndex: 3,
		},
		// [09:15:04.123] [DEBUG] pattern update check
		{
			name:     "time-only",
			pattern:  `^\[(\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?)\]\s+\[(\w+)\]\s*(.*)$`,
			tsIndex:  1,
			lvlIndex: 2,
			msgIndex: 3,
		},
		// [ERROR] rollback initiated
		{
			name:     "level-first",
			pattern:  `^\[(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\]\s*(.*)$`,
			lvlIndex: 1,
			msgIndex: 2,
		},
	}

	for _, l := range layouts {
		re, err := regexp.Compile(`(?i)` + l.pattern)
		if err != nil {
			continue
		}
		p.layouts = append(p.layouts, &amspLayout{
			name:     l.name,
			regex:    re,
			tsIndex:  l.tsIndex,
			lvlIndex: l.lvlIndex,
			msgIndex: l.msgIndex,
			thrIndex: l.thrIndex,
		})
	}
}

// Name returns the parser name.
func (p *AMSPParser) Name() string { return "amsp" }

// LogType returns the AMSP log type.
func (p *AMSPParser) LogType() common.LogType { return common.LogTypeAMSP }

// ParseLine converts one install log line into a record. Install logs carry
// no component token, so Component stays "unknown" and the component
// identifier resolves it later.
func (p *AMSPParser) ParseLine(line string, lineNumber int) *common.LogRecord {
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
		if layout.lvlIndex > 0 {
			record.Level = strings.TrimSpace(matches[layout.lvlIndex])
		}
		if layout.thrIndex > 0 {
			record.Thread = strings.TrimSpace(matches[layout.thrIndex])
		}
		if layout.msgIndex > 0 {
			record.Message = strings.TrimSpace(matches[layout.msgIndex])
		}
		return record
	}

	return common.Unparsed(line, lineNumber)
}

// CanParse reports whether the line matches one of the install log layouts.
func (p *AMSPParser) CanParse(line string) bool {
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

// DetectForeign flags agent log lines and process dump headers inside a
// file presented as an install log.
func (p *AMSPParser) DetectForeign(line string) (common.LogType, bool) {
	trimmed := strings.TrimSpace(line)
	if p.agentPipe.MatchString(trimmed) {
		return common.LogTypeAgent, true
	}
	if p.topNHeader.MatchString(trimmed) {
		return common.LogTypeProcess, true
	}
	return "", false
}
