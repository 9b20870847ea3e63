package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a log file and show per-line results",
	Long: `Parse every line of a WoW, FF14 or Hearthstone log file.

The game is taken from --partition when given, otherwise from --game.`,
	Example: `  combatlog parse WoWCombatLog.txt --game wow
  combatlog parse Network_2021.log --game ff14 --errors -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().String("game", "wow", "log format: wow, ff14, hs")
	parseCmd.Flags().String("partition", "", "partition id (default: a new id for --game)")
	parseCmd.Flags().Bool("errors", false, "only show lines that failed to parse")
	parseCmd.Flags().String("ref", "", "reference time for timestamps without a date or year (RFC3339, default now)")
}

// LineResult is the printable form of a parser.Result.
type LineResult struct {
	Line   int            `json:"line" yaml:"line"`
	Raw    string         `json:"raw" yaml:"raw"`
	Event  string         `json:"event,omitempty" yaml:"event,omitempty"`
	Time   *time.Time     `json:"time,omitempty" yaml:"time,omitempty"`
	Error  string         `json:"error,omitempty" yaml:"error,omitempty"`
	Packet *parser.Packet `json:"packet,omitempty" yaml:"-"`
}

// ParseSummary counts the outcome of a parse run.
type ParseSummary struct {
	PartitionID string       `json:"partition_id" yaml:"partition_id"`
	Lines       int          `json:"lines" yaml:"lines"`
	Parsed      int          `json:"parsed" yaml:"parsed"`
	Failed      int          `json:"failed" yaml:"failed"`
	Results     []LineResult `json:"results" yaml:"results"`
}

func runParse(cmd *cobra.Command, args []string) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}
	partitionID, err := partitionFlag(cmd)
	if err != nil {
		return err
	}
	ref, err := refFlag(cmd)
	if err != nil {
		return err
	}
	errorsOnly, _ := cmd.Flags().GetBool("errors")

	lines, err := readLines(args[0])
	if err != nil {
		return err
	}
	results, err := parser.ParseAt(partitionID, ref, lines)
	if err != nil {
		return err
	}

	sum := summarize(partitionID, results, errorsOnly)
	return p.Print(sum, func() *output.Table {
		table := output.NewTable("LINE", "TIME", "EVENT", "ERROR")
		for _, r := range sum.Results {
			ts := ""
			if r.Time != nil {
				ts = r.Time.Format("15:04:05.000")
			}
			table.AddRow(strconv.Itoa(r.Line), ts, r.Event, r.Error)
		}
		return table
	})
}

func summarize(partitionID string, results []parser.Result, errorsOnly bool) *ParseSummary {
	sum := &ParseSummary{PartitionID: partitionID, Lines: len(results), Results: []LineResult{}}
	for i, r := range results {
		row := LineResult{Line: i + 1, Raw: r.Raw}
		if r.Err != nil {
			sum.Failed++
			row.Error = r.Err.Error()
		} else {
			sum.Parsed++
			if errorsOnly {
				continue
			}
			pkt := r.Packet
			row.Event = pkt.EventName()
			row.Time = &pkt.Time
			row.Packet = &pkt
		}
		sum.Results = append(sum.Results, row)
	}
	return sum
}

func partitionFlag(cmd *cobra.Command) (string, error) {
	if id, _ := cmd.Flags().GetString("partition"); id != "" {
		if _, err := parser.GameOf(id); err != nil {
			return "", err
		}
		return id, nil
	}
	game, _ := cmd.Flags().GetString("game")
	if !parser.Game(game).Valid() {
		return "", fmt.Errorf("%w: unknown game %q", parser.ErrUnsupportedPartition, game)
	}
	return parser.NewPartitionID(parser.Game(game)), nil
}

func refFlag(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("ref")
	if s == "" {
		return time.Now(), nil
	}
	ref, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --ref: %w", err)
	}
	return ref, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
