package cli

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/config"
	"github.com/dstriage/dstriage/internal/emoji"
	"github.com/dstriage/dstriage/internal/history"
	"github.com/dstriage/dstriage/internal/logging"
)

var (
	historyType   string
	historyLimit  int
	historyOffset int
	historyKeep   int
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage recorded analysis runs",
		Long: `Browse the local archive of analysis runs. Runs are recorded after each
analysis when history is enabled in the configuration; list, show, delete
and prune operate on the archive whether or not recording is currently on.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Example: `  dstriage history list
  dstriage history list --type agent_log --limit 10`,
		RunE: runHistoryList,
	}

	cmd.Flags().StringVarP(&historyType, "type", "t", "", "filter by analysis type (e.g. agent_log)")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&historyOffset, "offset", 0, "skip this many runs")

	return cmd
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	runs, err := store.List(historyType, historyLimit, historyOffset)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}

	total, err := store.Count()
	if err != nil {
		return err
	}

	fmt.Printf("%s Recorded runs: %d of %d\n\n", emoji.GetEmoji("statistics"), len(runs), total)
	fmt.Printf("%-5s %-16s %-20s %-10s %-9s %s\n", "ID", "AGE", "TYPE", "STATUS", "SEVERITY", "TARGET")
	for _, run := range runs {
		fmt.Printf("%-5d %-16s %-20s %-10s %-9s %s\n",
			run.ID, humanize.Time(run.CreatedAt), run.AnalysisType,
			run.Status, run.Severity, run.Target)
		if isVerbose() && run.Summary != "" {
			fmt.Printf("      %s\n", clip(run.Summary, 120))
		}
	}

	return nil
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Render one recorded run",
		Long: `Render a recorded run's full report again. The stored envelope goes
through the same output pipeline as a fresh analysis, so --output json or
--output markdown re-export old runs too.`,
		Example: `  dstriage history show 12
  dstriage history show 12 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryShow,
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	run, err := store.Get(id)
	if err != nil {
		return err
	}

	return outputEnvelope(run.Envelope, "", false)
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [id]",
		Short:   "Delete one recorded run",
		Example: `  dstriage history delete 12`,
		Args:    cobra.ExactArgs(1),
		RunE:    runHistoryDelete,
	}
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	deleted, err := store.Delete(id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("run %d not found", id)
	}

	fmt.Printf("%s Deleted run %d\n", emoji.GetEmoji("success"), id)
	return nil
}

func newHistoryPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prune",
		Short:   "Drop all but the most recent runs",
		Example: `  dstriage history prune --keep 50`,
		RunE:    runHistoryPrune,
	}

	cmd.Flags().IntVar(&historyKeep, "keep", 0, "runs to keep (default: history.keep from config)")

	return cmd
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	keep := historyKeep
	if keep <= 0 {
		keep = GetGlobalConfig().History.Keep
	}
	if keep <= 0 {
		return fmt.Errorf("no keep count: pass --keep or set history.keep in the config")
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	removed, err := store.Prune(keep)
	if err != nil {
		return err
	}

	fmt.Printf("%s Pruned %d run(s), keeping the latest %d\n", emoji.GetEmoji("success"), removed, keep)
	return nil
}

// openHistory opens the run archive at the configured path. The enabled
// switch only gates recording, not browsing.
func openHistory() (*history.Store, error) {
	cfg := GetGlobalConfig()
	path := config.ExpandPath(cfg.History.Path)
	if path == "" {
		return nil, fmt.Errorf("history path not configured (set history.path)")
	}
	return history.Open(path)
}

func closeHistory(store *history.Store) {
	if err := store.Close(); err != nil {
		logging.L().Warn("history close failed", zap.Error(err))
	}
}
