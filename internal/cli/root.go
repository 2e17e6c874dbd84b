// Package cli wires the analysis pipeline to the command line: flag and
// config resolution, collaborator setup (LLM, knowledge base, history),
// envelope output and the interactive views. Analysis semantics live in
// the domain packages; this package only orchestrates them.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dstriage/dstriage/internal/config"
	"github.com/dstriage/dstriage/internal/emoji"
	"github.com/dstriage/dstriage/internal/logging"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	noEmoji   bool
	outputFmt string
)

var (
	configOnce   sync.Once
	globalConfig *config.Config
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dstriage",
		Short: "Security Agent Diagnostic Log Triage",
		Long: `dstriage analyzes security agent diagnostic logs and diagnostic ZIP
packages: it parses each log family with its own format rules, classifies
events by severity, attributes them to agent components, matches known
issues, and reports component health with actionable recommendations.

Single files are analyzed directly; diagnostic packages are extracted,
analyzed per log type, and correlated across sources.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := GetGlobalConfig()
			// Without an explicit flag, the config decides; Windows
			// consoles auto-disable emojis either way.
			if !cmd.Flag("no-emoji").Changed {
				noEmoji = runtime.GOOS == "windows" || !cfg.Output.Emoji
			}
			emoji.SetEmojiDisabled(noEmoji)
			setupLogging(cfg)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noEmoji, "no-emoji", false, "disable emoji output (useful for Windows terminals)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "output format (terminal, json, markdown, csv)")

	// Add subcommands
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newBundleCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newPatternsCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version number, build commit, date, and runtime information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			displayCommit := commit
			displayDate := date

			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			if commit == "none" || commit == "" {
				displayCommit = "local-build"
			}
			if date == "unknown" || date == "" {
				displayDate = "local-build"
			}

			fmt.Printf("dstriage %s (%s) built on %s\n", displayVersion, displayCommit, displayDate)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// GetGlobalConfig loads the effective configuration once per process. A
// broken config file degrades to the defaults with a warning instead of
// blocking every command.
func GetGlobalConfig() *config.Config {
	configOnce.Do(func() {
		loader := config.NewLoader()
		cfg, err := loader.LoadConfig(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
			cfg = config.DefaultConfig()
		}
		globalConfig = cfg
	})
	return globalConfig
}

// setupLogging initializes the diagnostic logger from config. The logger
// carries the tool's own diagnostics; analysis results never go through it.
func setupLogging(cfg *config.Config) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	err := logging.Setup(&logging.Config{
		Level:         level,
		LogDir:        cfg.Logging.Dir,
		LogFile:       cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxBackups:    cfg.Logging.MaxBackups,
		MaxAgeDays:    cfg.Logging.MaxAgeDays,
		EnableConsole: cfg.Logging.Console || verbose,
		EnableFile:    true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set up logging: %v\n", err)
	}
}

// Capabilities are the optional collaborators resolved once at startup.
// Business logic receives no-op defaults for anything switched off, so
// nothing downstream checks availability inline.
type Capabilities struct {
	LLM      bool
	History  bool
	KB       bool
	Sessions bool
}

func capabilitiesFrom(cfg *config.Config) Capabilities {
	return Capabilities{
		LLM:      cfg.LLM.Enabled && cfg.LLM.Provider != "",
		History:  cfg.History.Enabled && cfg.History.Path != "",
		KB:       cfg.KB.Path != "",
		Sessions: cfg.Output.ShowProgress,
	}
}

// Global helpers
func isVerbose() bool {
	return verbose
}

func getOutputFormat() string {
	return outputFmt
}

// notifyContext returns a context cancelled on Ctrl+C or SIGTERM.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
