package analyzer

import (
	"fmt"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/parser"
)

// Engines builds one engine per embedded pattern table, each paired with
// the registered parser for its log type. This is the standard analyzer
// set used by the CLI and the bundle orchestrator.
func Engines(opts Options) (map[common.LogType]*Engine, error) {
	tables, err := common.LoadDefaultTables()
	if err != nil {
		return nil, err
	}

	engines := make(map[common.LogType]*Engine, len(tables))
	for logType, table := range tables {
		lineParser, err := parser.DefaultFactory.ForType(logType)
		if err != nil {
			return nil, fmt.Errorf("no parser for table %s: %w", logType, err)
		}
		engine, err := NewEngine(table, lineParser, opts)
		if err != nil {
			return nil, err
		}
		engines[logType] = engine
	}
	return engines, nil
}
