package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/worker"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
	"github.com/telhawk-systems/telhawk-combatlog/common/messaging"
)

// Runner publishes generated matches as batch messages.
type Runner struct {
	cfg *Config
	pub messaging.Publisher
}

func NewRunner(cfg *Config, pub messaging.Publisher) *Runner {
	return &Runner{cfg: cfg, pub: pub}
}

// Summary reports what a run published.
type Summary struct {
	Partitions []string `json:"partitions" yaml:"partitions"`
	Batches    int      `json:"batches" yaml:"batches"`
	Lines      int      `json:"lines" yaml:"lines"`
}

// Run publishes cfg.Matches partitions. The last batch of every partition is
// marked final.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	game := parser.Game(r.cfg.Game)
	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sum := &Summary{}
	for m := range r.cfg.Matches {
		gen := NewGenerator(seed+int64(m), time.Now().Add(-time.Hour), r.cfg.Players)
		lines, err := gen.Lines(game, r.cfg.Events)
		if err != nil {
			return sum, err
		}

		partitionID := parser.NewPartitionID(game)
		msgs, err := Batches(partitionID, r.cfg.OwnerID, lines, r.cfg.BatchSize)
		if err != nil {
			return sum, err
		}
		for _, msg := range msgs {
			body, err := json.Marshal(msg)
			if err != nil {
				return sum, fmt.Errorf("encode batch: %w", err)
			}
			if err := r.pub.Publish(ctx, messaging.BatchSubject(string(game)), body); err != nil {
				return sum, fmt.Errorf("publish batch %s: %w", msg.BatchID, err)
			}
			sum.Batches++

			if r.cfg.Interval > 0 {
				select {
				case <-ctx.Done():
					return sum, ctx.Err()
				case <-time.After(r.cfg.Interval):
				}
			}
		}
		sum.Partitions = append(sum.Partitions, partitionID)
		sum.Lines += len(lines)
		slog.InfoContext(ctx, "Seeded partition",
			logging.Partition(partitionID),
			logging.Game(string(game)),
			slog.Int("lines", len(lines)),
			slog.Int("batches", len(msgs)))
	}
	return sum, nil
}

// Batches splits lines into batch messages of at most size lines each.
func Batches(partitionID, ownerID string, lines []string, size int) ([]worker.BatchMessage, error) {
	size = max(size, 1)
	var msgs []worker.BatchMessage
	for start := 0; start < len(lines) || start == 0; start += size {
		end := min(start+size, len(lines))
		data, err := worker.EncodeLines(lines[start:end])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, worker.BatchMessage{
			PartitionID: partitionID,
			BatchID:     fmt.Sprintf("%s-%06d", partitionID, len(msgs)),
			OwnerID:     ownerID,
			Data:        data,
		})
		if end == len(lines) {
			break
		}
	}
	msgs[len(msgs)-1].Final = true
	return msgs, nil
}
