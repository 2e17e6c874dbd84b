package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/emoji"
)

var patternsTables string

func newPatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and validate pattern tables",
		Long: `Inspect the pattern tables driving severity classification, component
attribution and known-issue matching, or validate a custom table file
before pointing an analysis at it.`,
	}

	cmd.AddCommand(newPatternsListCommand())
	cmd.AddCommand(newPatternsValidateCommand())

	return cmd
}

func newPatternsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded pattern tables and their sizes",
		Example: `  dstriage patterns list
  dstriage patterns list --tables custom-tables.yaml
  dstriage patterns list --verbose`,
		RunE: runPatternsList,
	}

	cmd.Flags().StringVar(&patternsTables, "tables", "", "custom pattern table file (YAML)")

	return cmd
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	var tables map[common.LogType]*common.PatternTable
	var err error
	if patternsTables != "" {
		tables, err = common.LoadTablesFromFile(patternsTables)
	} else {
		tables, err = common.LoadDefaultTables()
	}
	if err != nil {
		return fmt.Errorf("failed to load pattern tables: %w", err)
	}

	source := "embedded"
	if patternsTables != "" {
		source = patternsTables
	}
	fmt.Printf("%s Pattern tables: %d (%s)\n\n", emoji.GetEmoji("pattern"), len(tables), source)

	for _, logType := range sortedTableTypes(tables) {
		table := tables[logType]
		fmt.Printf("%s\n", logType)
		fmt.Printf("   critical patterns: %d (%d known-critical)\n",
			len(table.KnownCritical)+len(table.Critical), len(table.KnownCritical))
		fmt.Printf("   warning patterns:  %d\n", len(table.Warning))
		fmt.Printf("   component rules:   %d (default %q)\n", len(table.Components), table.ComponentDefault)
		fmt.Printf("   known issues:      %d\n", len(table.KnownIssues))

		if isVerbose() {
			for _, issue := range table.KnownIssues {
				fmt.Printf("      %s %s [%s]: %s\n",
					emoji.GetEmoji("issue"), issue.IssueType, issue.Severity, issue.Signature)
			}
		}
		fmt.Println()
	}

	return nil
}

func sortedTableTypes(tables map[common.LogType]*common.PatternTable) []common.LogType {
	types := make([]common.LogType, 0, len(tables))
	for logType := range tables {
		types = append(types, logType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func newPatternsValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Validate custom pattern table files",
		Long: `Validate one or more pattern table files: YAML structure, required
fields and every regular expression. Tables are checked exactly the way
the analyzer loads them, so a file that validates here will load there.`,
		Example: `  dstriage patterns validate custom-tables.yaml
  dstriage patterns validate tables/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPatternsValidate,
	}
}

func runPatternsValidate(cmd *cobra.Command, args []string) error {
	invalid := 0
	for _, path := range args {
		tables, err := common.LoadTablesFromFile(path)
		if err != nil {
			fmt.Printf("%s %s: %v\n", emoji.GetEmoji("error"), path, err)
			invalid++
			continue
		}

		types := sortedTableTypes(tables)
		names := make([]string, len(types))
		for i, logType := range types {
			names[i] = string(logType)
		}
		fmt.Printf("%s %s: %d table(s) valid (%s)\n",
			emoji.GetEmoji("success"), path, len(tables), strings.Join(names, ", "))
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d pattern file(s) invalid", invalid, len(args))
	}
	return nil
}
