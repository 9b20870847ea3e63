package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/pipeline"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Generate the reports of a log file",
	Long: `Parse a log file as one partition, run the report generators of its game
and publish the report files to an object store.

With the default file store the reports land under
<out>/<bucket>/form=Report/partition=<id>/canonical=<type>/<file>.`,
	Example: `  combatlog report WoWCombatLog.txt --game wow --out ./reports
  combatlog report Power.log --game hs --store s3 --bucket my-reports`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("game", "wow", "log format: wow, ff14, hs")
	reportCmd.Flags().String("partition", "", "partition id (default: a new id for --game)")
	reportCmd.Flags().String("ref", "", "reference time for timestamps without a date or year (RFC3339, default now)")
	reportCmd.Flags().String("work-dir", "", "scratch directory for report files (default from cli.yaml)")
	addStoreFlags(reportCmd)
}

// ReportRun is the result of the report command.
type ReportRun struct {
	PartitionID string              `json:"partition_id" yaml:"partition_id"`
	Game        parser.Game         `json:"game" yaml:"game"`
	Events      int                 `json:"events" yaml:"events"`
	Failed      int                 `json:"failed_lines" yaml:"failed_lines"`
	Bucket      string              `json:"bucket" yaml:"bucket"`
	Reports     []blob.StoredReport `json:"reports" yaml:"reports"`
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
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

	lines, err := readLines(args[0])
	if err != nil {
		return err
	}
	results, err := parser.ParseAt(partitionID, ref, lines)
	if err != nil {
		return err
	}
	packets := parser.Packets(results)

	workDir, _ := cmd.Flags().GetString("work-dir")
	if workDir == "" {
		workDir = cli().WorkDir
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	out, err := pipeline.Generate(ctx, partitionID, packets, workDir)
	if err != nil {
		return err
	}
	defer out.Cleanup()

	storeCfg, bucket := storeFlags(cmd)
	store, err := newObjectStore(ctx, storeCfg)
	if err != nil {
		return err
	}
	stored, err := blob.NewPublisher(store, blob.DefaultOptions()).StoreReports(ctx, out, bucket, partitionID)
	if err != nil {
		return err
	}

	run := ReportRun{
		PartitionID: partitionID,
		Game:        out.Game,
		Events:      out.Events,
		Failed:      len(results) - len(packets),
		Bucket:      bucket,
		Reports:     stored,
	}
	p.Info("Partition %s: %d events, %d lines skipped", run.PartitionID, run.Events, run.Failed)
	return p.Print(run, storedTable(stored))
}
