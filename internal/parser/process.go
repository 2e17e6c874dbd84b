package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// ProcessParser parses running-process dumps: the plain-text
// TopNBusyProcess.txt report and the RunningProcesses.xml host metadata
// dump. The XML variant needs whole-file context, so this parser also
// implements FileParser.
type ProcessParser struct {
	header    *regexp.Regexp
	keyValue  *regexp.Regexp
	agentPipe *regexp.Regexp
	amspLine  *regexp.Regexp
}

// NewProcessParser creates a process dump parser.
func NewProcessParser() *ProcessParser {
	return &ProcessParser{
		header:    regexp.MustCompile(`^Top\s+\d+\s+Busy\s+Proc`),
		keyValue:  regexp.MustCompile(`^([A-Za-z_][\w.()-]*)\s*=\s*(.*)$`),
		agentPipe: regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:\s+\[[+-]\d{4}\])?:\s*\[[^/\]]+/[^\]]*\]\s*\|`),
		amspLine:  regexp.MustCompile(`^\[\d{4}[-/]\d{1,2}[-/]\d{1,2}[ T]\d{1,2}:\d{2}:\d{2}[^\]]*\]\s+\[\w+\]`),
	}
}

// Name returns the parser name.
func (p *ProcessParser) Name() string { return "process" }

// LogType returns the process dump log type.
func (p *ProcessParser) LogType() common.LogType { return common.LogTypeProcess }

// ParseLine handles the plain-text report line by line: section headers and
// key=value attribute lines parse, everything else is report chrome and
// comes back unparsed. Whole-entry grouping happens in ParseFile.
func (p *ProcessParser) ParseLine(line string, lineNumber int) *common.LogRecord {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return common.Unparsed(line, lineNumber)
	}

	if p.header.MatchString(trimmed) {
		return &common.LogRecord{
			Component:  "unknown",
			Message:    trimmed,
			LineNumber: lineNumber,
			Parsed:     true,
			Raw:        line,
		}
	}

	if matches := p.keyValue.FindStringSubmatch(trimmed); matches != nil {
		record := &common.LogRecord{
			Component:  "unknown",
			Message:    trimmed,
			LineNumber: lineNumber,
			Parsed:     true,
			Raw:        line,
		}
		if strings.EqualFold(matches[1], "name") {
			record.Component = strings.TrimSpace(matches[2])
		}
		return record
	}

	return common.Unparsed(line, lineNumber)
}

// CanParse reports whether the line looks like part of a process report.
func (p *ProcessParser) CanParse(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	return p.header.MatchString(trimmed) || p.keyValue.MatchString(trimmed)
}

// DetectForeign flags agent and install log lines inside a file presented
// as a process dump.
func (p *ProcessParser) DetectForeign(line string) (common.LogType, bool) {
	trimmed := strings.TrimSpace(line)
	if p.agentPipe.MatchString(trimmed) {
		return common.LogTypeAgent, true
	}
	if p.amspLine.MatchString(trimmed) {
		return common.LogTypeAMSP, true
	}
	return "", false
}

// ParseFile reads a whole process dump and emits one record per process
// entry. XML dumps are detected by content, not extension. maxRecords <= 0
// falls back to DefaultMaxLines.
func (p *ProcessParser) ParseFile(path string, maxRecords int) ([]*common.LogRecord, error) {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxLines
	}

	data, err := os.ReadFile(path) // #nosec G304 - callers validate the path
	if err != nil {
		return nil, &common.ReadError{Path: path, Err: err}
	}

	if looksLikeXML(data) {
		return p.parseXMLDump(path, data, maxRecords)
	}
	return p.parseBusyProcessReport(data, maxRecords), nil
}

func looksLikeXML(data []byte) bool {
	head := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")
	return len(head) > 0 && head[0] == '<'
}

// parseXMLDump walks RunningProcesses.xml and extracts every
// HostMetaData/Attribute element whose name attribute is "process". The
// process name comes from the value attribute, or from element text when
// the attribute is absent.
func (p *ProcessParser) parseXMLDump(path string, data []byte, maxRecords int) ([]*common.LogRecord, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	records := make([]*common.LogRecord, 0, 64)
	hostDepth := 0

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(records) > 0 {
				// Truncated dumps are common; keep what parsed.
				break
			}
			return nil, &common.FileTypeError{
				Path:     path,
				Expected: common.LogTypeProcess,
				Detected: common.LogTypeGeneric,
			}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "HostMetaData":
				hostDepth++
			case hostDepth > 0 && t.Name.Local == "Attribute":
				name := processAttributeValue(t, decoder)
				if name == "" {
					continue
				}
				records = append(records, &common.LogRecord{
					Component:  name,
					Message:    "name=" + name,
					LineNumber: len(records) + 1,
					Parsed:     true,
				})
				if len(records) >= maxRecords {
					return records, nil
				}
			}
		case xml.EndElement:
			if t.Name.Local == "HostMetaData" && hostDepth > 0 {
				hostDepth--
			}
		}
	}

	return records, nil
}

// processAttributeValue returns the process name carried by an Attribute
// element, or "" when the element describes something other than a process.
func processAttributeValue(el xml.StartElement, decoder *xml.Decoder) string {
	var name, value string
	for _, a := range el.Attr {
		switch strings.ToLower(a.Name.Local) {
		case "name":
			name = a.Value
		case "value":
			value = a.Value
		}
	}
	if !strings.EqualFold(name, "process") {
		return ""
	}
	if value == "" {
		var body struct {
			Text string `xml:",chardata"`
		}
		if err := decoder.DecodeElement(&body, &el); err == nil {
			value = strings.TrimSpace(body.Text)
		}
	}
	return strings.TrimSpace(value)
}

// parseBusyProcessReport groups the TopNBusyProcess.txt report into one
// record per process entry. A name= line opens an entry; following
// key=value lines fold into it; headers, blank lines and the next name=
// line close it. The record message is the joined key=value pairs so the
// cpu/handle severity patterns can match it.
func (p *ProcessParser) parseBusyProcessReport(data []byte, maxRecords int) []*common.LogRecord {
	lines := strings.Split(string(data), "\n")
	records := make([]*common.LogRecord, 0, 32)

	var pairs []string
	var name string
	startLine := 0

	flush := func() {
		if name == "" {
			pairs, name = nil, ""
			return
		}
		records = append(records, &common.LogRecord{
			Component:  name,
			Message:    strings.Join(pairs, " "),
			LineNumber: startLine,
			Parsed:     true,
		})
		pairs, name = nil, ""
	}

	for i, raw := range lines {
		if len(records) >= maxRecords {
			break
		}
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if line == "" || p.header.MatchString(line) {
			flush()
			continue
		}
		matches := p.keyValue.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		key, value := matches[1], strings.TrimSpace(matches[2])
		if strings.EqualFold(key, "name") {
			flush()
			name = value
			startLine = i + 1
		}
		pairs = append(pairs, key+"="+value)
	}
	if len(records) < maxRecords {
		flush()
	}

	return records
}
