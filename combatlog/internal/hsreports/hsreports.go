// Package hsreports turns Hearthstone Power.log lines into the match action
// history and per-turn snapshots.
package hsreports

import (
	"log/slog"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/hearthstone"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
)

// Canonical report types.
const (
	Actions   = 0
	Snapshots = 1
)

// Generator feeds every line through a hearthstone.Parser and writes the
// resulting game log once the match is finalized.
type Generator struct {
	parser    *hearthstone.Parser
	actions   *codec.JSONWriter
	snapshots *codec.JSONWriter
	finalized bool
}

// New returns a generator with a fresh parser.
func New(opts ...hearthstone.Option) *Generator {
	return &Generator{parser: hearthstone.NewParser(opts...)}
}

// Parser exposes the underlying parser, mostly for its GameState.
func (g *Generator) Parser() *hearthstone.Parser {
	return g.parser
}

func (g *Generator) InitializeWorkDir(dir string) error {
	actions, err := codec.NewJSONWriter(dir)
	if err != nil {
		return err
	}
	snapshots, err := codec.NewJSONWriter(dir)
	if err != nil {
		if r, cerr := report.FromWriter("actions.json", Actions, actions); cerr == nil {
			_ = r.Close()
		}
		return err
	}
	g.actions, g.snapshots = actions, snapshots
	return nil
}

func (g *Generator) Handle(line hearthstone.RawLogLine) error {
	g.parser.Feed(line)
	return nil
}

func (g *Generator) Finalize() error {
	if g.finalized {
		return nil
	}
	g.finalized = true
	g.parser.Finalize()

	game := g.parser.Game
	if g.actions != nil {
		for _, a := range game.Actions {
			if err := g.actions.Write(a); err != nil {
				return err
			}
		}
	}
	if g.snapshots != nil {
		for _, s := range game.Snapshots {
			if err := g.snapshots.Write(s); err != nil {
				return err
			}
		}
	}

	slog.Debug("hearthstone game finalized",
		slog.Int("actions", len(game.Actions)),
		slog.Int("snapshots", len(game.Snapshots)),
		slog.Int("unresolved", game.Unresolved()),
		slog.Int("skipped", g.parser.Skipped()))
	return nil
}

func (g *Generator) Reports() ([]*report.Report, error) {
	var out []*report.Report
	for _, f := range []struct {
		w         **codec.JSONWriter
		key       string
		canonical int
	}{
		{&g.actions, "actions.json", Actions},
		{&g.snapshots, "snapshots.json", Snapshots},
	} {
		if *f.w == nil {
			continue
		}
		r, err := report.FromWriter(f.key, f.canonical, *f.w)
		*f.w = nil
		if err != nil {
			_ = report.CloseAll(out)
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
