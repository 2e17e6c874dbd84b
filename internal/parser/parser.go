// Package parser converts vendor diagnostic log lines into structured
// records. Each log type has its own parser trying an ordered list of
// layouts; the first layout that matches a line wins. A line matching no
// layout is returned as an unparsed record, never an error.
package parser

import (
	"github.com/dstriage/dstriage/internal/common"
)

// LineParser parses one log line at a time.
type LineParser interface {
	// Name returns the parser name for logs and diagnostics.
	Name() string

	// LogType returns the log family this parser handles.
	LogType() common.LogType

	// ParseLine converts a raw line (trailing newline already stripped)
	// into a record. Lines matching no known layout come back with
	// Parsed=false and the raw line preserved.
	ParseLine(line string, lineNumber int) *common.LogRecord

	// CanParse reports whether the line looks like this parser's format.
	// Used for log-type detection over a sample, not for parsing.
	CanParse(line string) bool

	// DetectForeign reports whether the line unmistakably belongs to a
	// different log type. Callers escalate a hit to a FileTypeError so a
	// wrongly uploaded file is rejected instead of silently misread.
	DetectForeign(line string) (common.LogType, bool)
}

// FileParser is an optional upgrade for parsers that need whole-file
// context, such as XML process dumps and sectioned key=value reports.
// Engines prefer it over the line loop when implemented.
type FileParser interface {
	ParseFile(path string, maxRecords int) ([]*common.LogRecord, error)
}
