package formatter

import (
	"encoding/json"

	"github.com/dstriage/dstriage/internal/common"
)

// jsonFormatter emits the envelope verbatim as indented JSON.
type jsonFormatter struct{}

// NewJSON creates a new JSON formatter.
func NewJSON() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Format(output *common.StandardizedOutput) ([]byte, error) {
	return json.MarshalIndent(output, "", "  ")
}
