package parser

import (
	"bufio"
	"os"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

const (
	// DefaultMaxLines bounds how many physical lines one file contributes.
	// Lines beyond the cap are neither read nor counted.
	DefaultMaxLines = 10000

	// DefaultMaxLineLength is the scanner token limit.
	DefaultMaxLineLength = 1024 * 1024
)

// ReadOptions tunes the capped file reader.
type ReadOptions struct {
	MaxLines      int
	MaxLineLength int
}

func (o ReadOptions) withDefaults() ReadOptions {
	if o.MaxLines <= 0 {
		o.MaxLines = DefaultMaxLines
	}
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = DefaultMaxLineLength
	}
	return o
}

// ReadLines reads up to opts.MaxLines physical lines from path. Blank lines
// are kept: they count toward total lines and surface as unparsed records.
// Open and scan failures come back as *common.ReadError.
func ReadLines(path string, opts ReadOptions) ([]string, error) {
	opts = opts.withDefaults()

	file, err := os.Open(path) // #nosec G304 - callers validate the path
	if err != nil {
		return nil, &common.ReadError{Path: path, Err: err}
	}
	defer func() { _ = file.Close() }()

	lines := make([]string, 0, 256)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), opts.MaxLineLength)

	for scanner.Scan() {
		if len(lines) >= opts.MaxLines {
			break
		}
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, &common.ReadError{Path: path, Err: err}
	}
	return lines, nil
}
