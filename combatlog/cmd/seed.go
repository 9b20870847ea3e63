package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/seeder"
	"github.com/telhawk-systems/telhawk-combatlog/common/messaging"
	natsclient "github.com/telhawk-systems/telhawk-combatlog/common/messaging/nats"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic combat log batches",
	Long: `Generate synthetic WoW, FF14 or Hearthstone matches and publish them as
batch messages, the same way a log uploader would.

Settings cascade from flags over ./seeder.yaml, ~/.combatlog/seeder.yaml and
SEEDER_* environment variables. With --file the batch messages are written
as JSON lines instead of being published to NATS.`,
	Example: `  combatlog seed --game wow --matches 3 --events 2000
  combatlog seed --game hs --file batches.jsonl`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("config", "", "seeder config file")
	seedCmd.Flags().String("game", "", "game to generate: wow, ff14, hs")
	seedCmd.Flags().Int("matches", 0, "number of partitions")
	seedCmd.Flags().Int("events", 0, "events per partition")
	seedCmd.Flags().Int("players", 0, "players per match")
	seedCmd.Flags().Int("batch-size", 0, "lines per batch message")
	seedCmd.Flags().Duration("interval", 0, "pause between batch messages")
	seedCmd.Flags().Int64("seed", 0, "random seed (default: time based)")
	seedCmd.Flags().String("owner", "", "owner id stamped on every batch")
	seedCmd.Flags().String("nats-url", "nats://localhost:4222", "NATS server URL")
	seedCmd.Flags().String("file", "", "write batch messages to this file instead of NATS")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := seeder.LoadConfig(configPath)
	if err != nil {
		return err
	}
	applySeedFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	pub, err := seedPublisher(cmd)
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx := commandContext(cmd)
	sum, err := seeder.NewRunner(cfg, pub).Run(ctx)
	if err != nil {
		return err
	}
	return p.Print(sum, func() *output.Table {
		table := output.NewTable("PARTITION")
		for _, id := range sum.Partitions {
			table.AddRow(id)
		}
		return table
	})
}

func applySeedFlags(cmd *cobra.Command, cfg *seeder.Config) {
	flags := cmd.Flags()
	if flags.Changed("game") {
		cfg.Game, _ = flags.GetString("game")
	}
	if flags.Changed("matches") {
		cfg.Matches, _ = flags.GetInt("matches")
	}
	if flags.Changed("events") {
		cfg.Events, _ = flags.GetInt("events")
	}
	if flags.Changed("players") {
		cfg.Players, _ = flags.GetInt("players")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("interval") {
		cfg.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("owner") {
		cfg.OwnerID, _ = flags.GetString("owner")
	}
}

func seedPublisher(cmd *cobra.Command) (messaging.Publisher, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return &linePublisher{w: f}, nil
	}

	url, _ := cmd.Flags().GetString("nats-url")
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = url
	natsCfg.Name = "combatlog-seeder"
	js, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.BatchesStream); err != nil {
		js.Close()
		return nil, err
	}
	return js, nil
}

// linePublisher writes each message body as one line.
type linePublisher struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func (l *linePublisher) Publish(_ context.Context, _ string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.w, "%s\n", data); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (l *linePublisher) Close() error {
	return l.w.Close()
}
