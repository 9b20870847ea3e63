// Package pipeline turns the buffered packets of a partition into report
// files.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14reports"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/hearthstone"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/hsreports"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/metrics"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wowreports"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
)

// Output holds the finished reports of one partition. Reports hands them out
// once; Cleanup removes the work directory afterwards.
type Output struct {
	source report.Source
	Dir    string
	Game   parser.Game
	Events int
}

func (o *Output) Reports() ([]*report.Report, error) {
	return o.source.Reports()
}

// Cleanup removes the work directory and anything left in it.
func (o *Output) Cleanup() error {
	return os.RemoveAll(o.Dir)
}

// Generate feeds packets, in order, through the report generators of the
// partition's game. Flush packets are skipped. The generators write under
// workDir/<partitionID>.
func Generate(ctx context.Context, partitionID string, packets []parser.Packet, workDir string) (*Output, error) {
	game, err := parser.GameOf(partitionID)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(workDir, partitionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	started := time.Now()
	out := &Output{Dir: dir, Game: game}
	switch game {
	case parser.GameWoW:
		events := collect(packets, func(p parser.Packet) *wow.Event { return p.WoW })
		out.source, err = run[*wow.Event](ctx, wowreports.New(startOf(packets)), dir, events)
		out.Events = len(events)
	case parser.GameFF14:
		events := collect(packets, func(p parser.Packet) *ff14.Event { return p.FF14 })
		out.source, err = run[*ff14.Event](ctx, ff14reports.New(startOf(packets)), dir, events)
		out.Events = len(events)
	case parser.GameHearthstone:
		lines := make([]hearthstone.RawLogLine, 0, len(packets))
		for _, l := range collect(packets, func(p parser.Packet) *hearthstone.RawLogLine { return p.Hearthstone }) {
			lines = append(lines, *l)
		}
		out.source, err = run[hearthstone.RawLogLine](ctx, hsreports.New(), dir, lines)
		out.Events = len(lines)
	}
	if err != nil {
		_ = out.Cleanup()
		return nil, err
	}

	metrics.GenerateDuration.Observe(time.Since(started).Seconds())
	logging.Default().DebugContext(ctx, "Generated reports",
		logging.Partition(partitionID),
		logging.Game(string(game)),
		slog.Int("events", out.Events),
		logging.Duration(time.Since(started)))
	return out, nil
}

// run drives g over events. On failure any reports already produced are
// closed.
func run[T any](ctx context.Context, g report.Generator[T], dir string, events []T) (report.Source, error) {
	if err := g.InitializeWorkDir(dir); err != nil {
		return nil, fmt.Errorf("initialize work dir: %w", err)
	}

	var err error
	for i, ev := range events {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = g.Handle(ev); err != nil {
			err = fmt.Errorf("event %d: %w", i, err)
			break
		}
	}
	if ferr := g.Finalize(); err == nil && ferr != nil {
		err = fmt.Errorf("finalize: %w", ferr)
	}
	if err != nil {
		if reports, rerr := g.Reports(); rerr == nil {
			_ = report.CloseAll(reports)
		}
		return nil, err
	}
	return g, nil
}

func collect[T any](packets []parser.Packet, get func(parser.Packet) *T) []*T {
	events := make([]*T, 0, len(packets))
	for _, p := range packets {
		if p.Flush() {
			continue
		}
		if ev := get(p); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

// startOf returns the time of the first real event; window based reports
// start their first range there.
func startOf(packets []parser.Packet) time.Time {
	for _, p := range packets {
		if !p.Flush() && !p.Time.IsZero() {
			return p.Time
		}
	}
	return time.Now().UTC()
}
