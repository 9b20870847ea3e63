// Package ff14reports builds the Final Fantasy XIV match reports.
package ff14reports

import (
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/agg"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
)

// Canonical report types.
const (
	Deaths     = 0
	LimitBreak = 1
)

const limitBreakWindow = 5 * time.Second

var deathSchema = codec.MustSchema(`{
	"type": "record",
	"name": "ff14_death_event",
	"fields": [
		{"name": "tm", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "targetId", "type": "long"},
		{"name": "targetName", "type": "string"},
		{"name": "sourceId", "type": "long"},
		{"name": "sourceName", "type": "string"}
	]
}`)

var limitBreakSchema = codec.MustSchema(`{
	"type": "record",
	"name": "ff14_limit_break",
	"fields": [
		{"name": "start", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "end", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "value", "type": "long"}
	]
}`)

// DeathRow is one NetworkDeath line.
type DeathRow struct {
	Tm         time.Time `avro:"tm"`
	TargetID   int64     `avro:"targetId"`
	TargetName string    `avro:"targetName"`
	SourceID   int64     `avro:"sourceId"`
	SourceName string    `avro:"sourceName"`
}

// LimitBreakRow is the average limit break gauge over a window.
type LimitBreakRow struct {
	Start time.Time `avro:"start"`
	End   time.Time `avro:"end"`
	Value int64     `avro:"value"`
}

// New returns every FF14 generator. start anchors the limit break windows.
func New(start time.Time) *report.Composite[*ff14.Event] {
	return report.NewComposite[*ff14.Event](NewDeathGenerator(), NewLimitBreakGenerator(start))
}

// DeathGenerator writes deaths.avro.
type DeathGenerator struct {
	w *codec.AvroWriter
}

func NewDeathGenerator() *DeathGenerator {
	return &DeathGenerator{}
}

func (g *DeathGenerator) InitializeWorkDir(dir string) error {
	w, err := codec.NewAvroWriter(dir, deathSchema)
	if err != nil {
		return err
	}
	g.w = w
	return nil
}

func (g *DeathGenerator) Handle(ev *ff14.Event) error {
	if ev.Death == nil || g.w == nil {
		return nil
	}
	return g.w.Write(DeathRow{
		Tm:         ev.Time,
		TargetID:   ev.Death.Target.ID,
		TargetName: ev.Death.Target.Name,
		SourceID:   ev.Death.Source.ID,
		SourceName: ev.Death.Source.Name,
	})
}

func (g *DeathGenerator) Finalize() error { return nil }

func (g *DeathGenerator) Reports() ([]*report.Report, error) {
	return take(&g.w, "deaths.avro", Deaths)
}

// LimitBreakGenerator averages the limit break gauge over five second windows.
type LimitBreakGenerator struct {
	w      *codec.AvroWriter
	window *agg.SlidingWindow[int64]
}

func NewLimitBreakGenerator(start time.Time) *LimitBreakGenerator {
	return &LimitBreakGenerator{
		window: agg.NewSlidingWindow[int64](agg.Average(), limitBreakWindow, start),
	}
}

func (g *LimitBreakGenerator) InitializeWorkDir(dir string) error {
	w, err := codec.NewAvroWriter(dir, limitBreakSchema)
	if err != nil {
		return err
	}
	g.w = w
	return nil
}

func (g *LimitBreakGenerator) Handle(ev *ff14.Event) error {
	if ev.LimitBreak == nil {
		return nil
	}
	if out, ok := g.window.Handle(agg.Input[int64]{Time: ev.Time, Value: ev.LimitBreak.Value}); ok {
		return g.write(out)
	}
	return nil
}

func (g *LimitBreakGenerator) write(out agg.Output[int64]) error {
	if g.w == nil {
		return nil
	}
	return g.w.Write(LimitBreakRow{Start: out.Start, End: out.End, Value: out.Value})
}

func (g *LimitBreakGenerator) Finalize() error {
	if out, ok := g.window.Flush(); ok {
		return g.write(out)
	}
	return nil
}

func (g *LimitBreakGenerator) Reports() ([]*report.Report, error) {
	return take(&g.w, "limit_break.avro", LimitBreak)
}

func take(w **codec.AvroWriter, key string, canonical int) ([]*report.Report, error) {
	if *w == nil {
		return nil, nil
	}
	r, err := report.FromWriter(key, canonical, *w)
	*w = nil
	if err != nil {
		return nil, err
	}
	return []*report.Report{r}, nil
}
