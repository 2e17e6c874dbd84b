// Package formatter renders standardized analysis envelopes for humans
// and machines. Every formatter consumes the same envelope, so a bundle
// result and a single-log result print through identical code paths.
package formatter

import (
	"fmt"

	"github.com/dstriage/dstriage/internal/common"
)

// Formatter renders one standardized envelope.
type Formatter interface {
	Format(output *common.StandardizedOutput) ([]byte, error)
}

// New returns the formatter for a format name. The color flag only
// affects the terminal format.
func New(format string, color bool) (Formatter, error) {
	switch format {
	case "terminal", "":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	case "markdown":
		return NewMarkdown(), nil
	case "csv":
		return NewCSV(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
}
