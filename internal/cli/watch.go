package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/analyzer"
	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/emoji"
	"github.com/dstriage/dstriage/internal/logging"
	"github.com/dstriage/dstriage/internal/parser"
)

// detectSampleLines caps how many live lines buffer up before auto
// detection commits to a log type.
const detectSampleLines = 8

var (
	watchType   string
	watchTables string
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Follow a live log and flag findings as lines arrive",
		Long: `Follow a log file the way tail -f does and run each new line through the
single-line pipeline: parse, classify, attribute to a component and match
against known issues. Warning and worse findings print immediately; the
file's existing content is skipped.

With --type auto the first few live lines pick the log type.

Examples:
  dstriage watch /var/log/agent/ds_agent.log
  dstriage watch --type amsp AMSPInstallDebuglog.log`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().StringVarP(&watchType, "type", "t", "auto", "log type: auto, agent, amsp, process or generic")
	cmd.Flags().StringVar(&watchTables, "tables", "", "custom pattern table file (YAML)")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := validateInputFile(path); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	cfg := GetGlobalConfig()
	opts := analysisOptions(cfg)

	var pipeline *watchPipeline
	var pending []watchLine
	if watchType != "auto" {
		logType, err := resolveLogType(watchType, path)
		if err != nil {
			return err
		}
		pipeline, err = newWatchPipeline(logType, watchTables, opts)
		if err != nil {
			return err
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail file: %w", err)
	}
	defer func() {
		if err := t.Stop(); err != nil && isVerbose() {
			fmt.Fprintf(os.Stderr, "Warning: failed to stop tailer: %v\n", err)
		}
		t.Cleanup()
	}()

	ctx, stop := notifyContext()
	defer stop()

	fmt.Printf("%s Watching %s (Ctrl+C to stop)\n", emoji.GetEmoji("watch"), path)
	if pipeline != nil {
		fmt.Printf("   log type: %s\n", pipeline.logType)
	}

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching")
			return nil

		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				logging.L().Warn("tail read error", logging.Path(path), zap.Error(line.Err))
				continue
			}
			lineNo++

			if pipeline == nil {
				pending = append(pending, watchLine{text: line.Text, number: lineNo})
				pipeline, err = detectPipeline(pending, opts)
				if err != nil {
					return err
				}
				if pipeline == nil {
					continue
				}
				fmt.Printf("   log type: %s\n", pipeline.logType)
				for _, buffered := range pending {
					pipeline.report(ctx, buffered.text, buffered.number)
				}
				pending = nil
				continue
			}

			pipeline.report(ctx, line.Text, lineNo)
		}
	}
}

type watchLine struct {
	text   string
	number int
}

// detectPipeline commits to a log type once enough sample lines buffered
// up. Returns nil while detection still wants more input.
func detectPipeline(pending []watchLine, opts analyzer.Options) (*watchPipeline, error) {
	samples := make([]string, 0, len(pending))
	for _, line := range pending {
		samples = append(samples, line.text)
	}
	if len(samples) < detectSampleLines {
		// Commit early only on a confident non-generic match.
		logType := parser.DefaultFactory.Detect(samples)
		if logType == common.LogTypeGeneric {
			return nil, nil
		}
		return newWatchPipeline(logType, watchTables, opts)
	}
	return newWatchPipeline(parser.DefaultFactory.Detect(samples), watchTables, opts)
}

// watchPipeline is the single-line slice of the analysis pipeline: parse,
// classify, attribute, match. Nothing aggregates; findings print as they
// happen.
type watchPipeline struct {
	logType     common.LogType
	parser      parser.LineParser
	classifier  *analyzer.Classifier
	components  *analyzer.ComponentIdentifier
	knownIssues *analyzer.KnownIssueMatcher
}

func newWatchPipeline(logType common.LogType, tablesPath string, opts analyzer.Options) (*watchPipeline, error) {
	table, err := loadTable(logType, tablesPath)
	if err != nil {
		return nil, err
	}
	classifier, err := analyzer.NewClassifier(table)
	if err != nil {
		return nil, err
	}
	components, err := analyzer.NewComponentIdentifier(table)
	if err != nil {
		return nil, err
	}
	lineParser, err := parser.DefaultFactory.ForType(logType)
	if err != nil {
		return nil, err
	}

	return &watchPipeline{
		logType:     logType,
		parser:      lineParser,
		classifier:  classifier,
		components:  components,
		knownIssues: analyzer.NewKnownIssueMatcher(table, opts),
	}, nil
}

// report runs one line through the pipeline and prints the finding when it
// classifies at warning or worse.
func (p *watchPipeline) report(ctx context.Context, line string, lineNo int) {
	record := p.parser.ParseLine(line, lineNo)
	severity := p.classifier.Classify(record)
	if severity < common.SeverityWarning {
		return
	}

	component := p.components.Identify(record)
	stamp := record.Timestamp
	if stamp == "" {
		stamp = time.Now().Format("15:04:05")
	}
	message := record.Message
	if message == "" {
		message = record.Raw
	}

	fmt.Printf("%s %s [%s] %s\n",
		emoji.GetEmoji(severity.String()), stamp, component, clip(message, 160))

	if match := p.knownIssues.Match(ctx, record, severity); match != nil {
		fmt.Printf("   %s %s: %s\n", emoji.GetEmoji("issue"), match.IssueType, match.Resolution)
	}
}

// clip shortens a message to at most max runes for one-line output.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
