package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/csgoreports"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/demo"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
)

var demoCmd = &cobra.Command{
	Use:   "demo <file>",
	Short: "Inspect a CS:GO demo",
	Long: `Read a CS:GO demo file and show its header, server classes or game events.

With --publish the game event and class reports are written to the report
store under a new csgo_<uuid> partition.`,
	Example: `  combatlog demo match.dem
  combatlog demo match.dem --classes -o json
  combatlog demo match.dem --events --name player_death
  combatlog demo match.dem --publish --out ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Bool("classes", false, "list server classes")
	demoCmd.Flags().Bool("events", false, "list game events")
	demoCmd.Flags().String("name", "", "only list game events with this name")
	demoCmd.Flags().Bool("publish", false, "publish the demo reports")
	addStoreFlags(demoCmd)
}

// DemoSummary is the default view of a demo.
type DemoSummary struct {
	Header  *demo.Header `json:"header" yaml:"header"`
	Stats   demo.Stats   `json:"stats" yaml:"stats"`
	Classes int          `json:"classes" yaml:"classes"`
	Events  int          `json:"game_events" yaml:"game_events"`
}

func runDemo(cmd *cobra.Command, args []string) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}
	d, err := demo.ParseFile(args[0])
	switch {
	case errors.Is(err, demo.ErrTruncated):
		slog.Warn("demo ends mid-command, using the commands read so far",
			logging.Error(err), slog.Int("commands", d.Stats.Commands))
	case err != nil:
		return err
	}

	if publish, _ := cmd.Flags().GetBool("publish"); publish {
		return publishDemo(cmd, p, d)
	}
	if classes, _ := cmd.Flags().GetBool("classes"); classes {
		return printClasses(p, d)
	}
	if events, _ := cmd.Flags().GetBool("events"); events {
		name, _ := cmd.Flags().GetString("name")
		return printEvents(p, d, name)
	}

	sum := DemoSummary{Header: d.Header, Stats: d.Stats, Events: len(d.GameEvents)}
	if d.DataTable != nil {
		sum.Classes = len(d.DataTable.Classes)
	}
	return p.Print(sum, func() *output.Table {
		h := d.Header
		table := output.NewTable("FIELD", "VALUE")
		table.AddRow("server", h.ServerName)
		table.AddRow("client", h.ClientName)
		table.AddRow("map", h.MapName)
		table.AddRow("game", h.GameDirectory)
		table.AddRow("protocol", fmt.Sprintf("%d/%d", h.DemoProtocol, h.NetworkProtocol))
		table.AddRow("playback", fmt.Sprintf("%.2fs, %d ticks, %d frames", h.PlaybackTime, h.PlaybackTicks, h.PlaybackFrames))
		table.AddRow("commands", strconv.Itoa(sum.Stats.Commands))
		table.AddRow("packets", strconv.Itoa(sum.Stats.Packets))
		table.AddRow("last tick", strconv.Itoa(int(sum.Stats.LastTick)))
		table.AddRow("classes", strconv.Itoa(sum.Classes))
		table.AddRow("game events", strconv.Itoa(sum.Events))
		return table
	})
}

func printClasses(p *output.Printer, d *demo.Demo) error {
	rows := []csgoreports.ClassRow{}
	if d.DataTable != nil {
		for _, c := range d.DataTable.Classes {
			row := csgoreports.ClassRow{ID: c.ID, Name: c.Name, DTName: c.DTName, Props: make([]string, 0, len(c.Props))}
			for _, prop := range c.Props {
				row.Props = append(row.Props, prop.Name)
			}
			rows = append(rows, row)
		}
	}
	return p.Print(rows, func() *output.Table {
		table := output.NewTable("ID", "CLASS", "TABLE", "PROPS")
		for _, r := range rows {
			table.AddRow(strconv.Itoa(r.ID), r.Name, r.DTName, strconv.Itoa(len(r.Props)))
		}
		return table
	})
}

func printEvents(p *output.Printer, d *demo.Demo, name string) error {
	events := []demo.GameEvent{}
	for _, ev := range d.GameEvents {
		if name == "" || ev.Name == name {
			events = append(events, ev)
		}
	}
	return p.Print(events, func() *output.Table {
		table := output.NewTable("TICK", "EVENT", "KEYS")
		for _, ev := range events {
			table.AddRow(strconv.Itoa(int(ev.Tick)), ev.Name, formatKeys(ev.Keys))
		}
		return table
	})
}

func formatKeys(keys map[string]string) string {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + keys[k]
	}
	return strings.Join(parts, " ")
}

func publishDemo(cmd *cobra.Command, p *output.Printer, d *demo.Demo) error {
	ctx := commandContext(cmd)
	partitionID := "csgo_" + uuid.Must(uuid.NewV7()).String()

	dir, err := os.MkdirTemp(cli().WorkDir, partitionID)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	gen := csgoreports.New()
	if err := gen.InitializeWorkDir(dir); err != nil {
		return err
	}
	if err := gen.Handle(d); err != nil {
		return err
	}
	if err := gen.Finalize(); err != nil {
		if reports, rerr := gen.Reports(); rerr == nil {
			_ = report.CloseAll(reports)
		}
		return err
	}

	storeCfg, bucket := storeFlags(cmd)
	store, err := newObjectStore(ctx, storeCfg)
	if err != nil {
		return err
	}
	stored, err := blob.NewPublisher(store, blob.DefaultOptions()).StoreReports(ctx, gen, bucket, partitionID)
	if err != nil {
		return err
	}
	p.Info("Published %d reports for %s", len(stored), partitionID)
	return p.Print(stored, storedTable(stored))
}
