package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/dstriage/dstriage/internal/common"
)

// csvFormatter formats component statistics and notable events as CSV.
// The two tables are separated by a blank line, each with its own header
// row.
type csvFormatter struct{}

// NewCSV creates a new CSV formatter
func NewCSV() Formatter {
	return &csvFormatter{}
}

func (f *csvFormatter) Format(output *common.StandardizedOutput) ([]byte, error) {
	var b bytes.Buffer

	if err := f.writeComponents(&b, ComponentRows(output.Details)); err != nil {
		return nil, err
	}

	b.WriteString("\n")

	if err := f.writeEvents(&b, EventRows(output)); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func (f *csvFormatter) writeComponents(b *bytes.Buffer, rows []ComponentRow) error {
	writer := csv.NewWriter(b)

	headers := []string{
		"Component",
		"Total Entries",
		"Errors",
		"Warnings",
		"Health Score",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Name,
			fmt.Sprintf("%d", row.Entries),
			fmt.Sprintf("%d", row.Errors),
			fmt.Sprintf("%d", row.Warning),
			fmt.Sprintf("%.1f", row.Health),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

func (f *csvFormatter) writeEvents(b *bytes.Buffer, rows []EventRow) error {
	writer := csv.NewWriter(b)

	headers := []string{
		"Severity",
		"Component",
		"Timestamp",
		"Line",
		"Source",
		"Known Issue",
		"Message",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Severity,
			row.Component,
			row.Timestamp,
			fmt.Sprintf("%d", row.Line),
			row.Source,
			row.KnownIssue,
			escapeTableCell(row.Message),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}
