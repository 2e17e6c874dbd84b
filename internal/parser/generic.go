package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/yildizm/go-logparser"

	"github.com/dstriage/dstriage/internal/common"
)

// GenericParser is the fallback for log files outside the vendor formats.
// It routes each line to a go-logparser format parser (JSON, logfmt or
// text) and keeps the raw timestamp token from the line where one exists.
type GenericParser struct {
	jsonParser   logparser.Parser
	logfmtParser logparser.Parser
	textParser   logparser.Parser

	leadingTS  *regexp.Regexp
	jsonTSKey  *regexp.Regexp
	logfmtTS   *regexp.Regexp
	levelToken *regexp.Regexp
}

// NewGenericParser creates the fallback parser.
func NewGenericParser() *GenericParser {
	return &GenericParser{
		jsonParser:   logparser.NewWithFormat(logparser.FormatJSON),
		logfmtParser: logparser.NewWithFormat(logparser.FormatLogfmt),
		textParser:   logparser.NewWithFormat(logparser.FormatText),
		leadingTS:    regexp.MustCompile(`^\[?(\d{4}[-/]\d{1,2}[-/]\d{1,2}[ T]\d{1,2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:Z|[+-]\d{2}:?\d{2})?|\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}|\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?)\]?`),
		jsonTSKey:    regexp.MustCompile(`"(?:time|timestamp|ts|@timestamp)"\s*:`),
		logfmtTS:     regexp.MustCompile(`\b(?:time|timestamp|ts)=`),
		levelToken:   regexp.MustCompile(`(?i)\b(?:TRACE|DEBUG|INFO|NOTICE|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`),
	}
}

// Name returns the parser name.
func (p *GenericParser) Name() string { return "generic" }

// LogType returns the generic log type.
func (p *GenericParser) LogType() common.LogType { return common.LogTypeGeneric }

// ParseLine routes the line to the matching go-logparser format and maps
// the result onto a record. The timestamp field keeps the raw token from
// the line itself; library-synthesized timestamps are discarded so parsing
// the same line twice yields the same record.
func (p *GenericParser) ParseLine(line string, lineNumber int) *common.LogRecord {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return common.Unparsed(line, lineNumber)
	}

	var (
		sel   logparser.Parser
		hasTS bool
	)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		sel = p.jsonParser
		hasTS = p.jsonTSKey.MatchString(trimmed)
	case looksLikeLogfmt(trimmed):
		sel = p.logfmtParser
		hasTS = p.logfmtTS.MatchString(trimmed)
	default:
		sel = p.textParser
		hasTS = p.leadingTS.MatchString(trimmed)
	}

	entries, err := sel.ParseString(trimmed)
	if err != nil || len(entries) == 0 {
		return common.Unparsed(line, lineNumber)
	}
	entry := entries[0]

	record := &common.LogRecord{
		Component:  "unknown",
		Level:      strings.TrimSpace(entry.Level),
		Message:    strings.TrimSpace(entry.Message),
		LineNumber: lineNumber,
		Parsed:     true,
		Raw:        line,
	}
	if record.Message == "" {
		record.Message = trimmed
	}
	if hasTS {
		if token := p.leadingTS.FindString(trimmed); token != "" {
			record.Timestamp = strings.Trim(token, "[]")
		} else if !entry.Timestamp.IsZero() {
			record.Timestamp = entry.Timestamp.UTC().Format(time.RFC3339)
		}
	}

	// A text line with neither timestamp nor level token gave the
	// classifier nothing structured to work with.
	if sel == p.textParser && record.Timestamp == "" && record.Level == "" {
		return common.Unparsed(line, lineNumber)
	}
	return record
}

func looksLikeLogfmt(line string) bool {
	if !strings.Contains(line, "=") {
		return false
	}
	first := strings.Fields(line)
	return len(first) > 0 && strings.Contains(first[0], "=")
}

// CanParse reports whether the line carries enough structure for the
// fallback formats.
func (p *GenericParser) CanParse(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") || looksLikeLogfmt(trimmed) {
		return true
	}
	return p.leadingTS.MatchString(trimmed) || p.levelToken.MatchString(trimmed)
}

// DetectForeign never fires for the generic parser; it accepts any file.
func (p *GenericParser) DetectForeign(string) (common.LogType, bool) {
	return "", false
}
